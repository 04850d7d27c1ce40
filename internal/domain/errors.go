package domain

import "errors"

var (
	ErrInvalidDateRange     = errors.New("invalid date range")
	ErrInvalidPlan          = errors.New("invalid room plan selection")
	ErrExpiredSession       = errors.New("no active reservation draft")
	ErrOrderCreationFailed  = errors.New("gateway order creation failed")
	ErrVerificationFailed   = errors.New("payment verification failed")
	ErrBookingConflict      = errors.New("booking conflict after payment")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("dates already booked")
	ErrSerializationFailure = errors.New("serialization failure")
)
