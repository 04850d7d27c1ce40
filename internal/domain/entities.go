package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentPending = "Pending"
	PaymentPaid    = "Paid"

	BookingConfirmed = "Confirmed"
)

type RoomPlan struct {
	Name       string
	ExtraPrice int64
}

// Listing is collaborator state; this service never mutates it beyond the
// owner-initiated cascade delete.
type Listing struct {
	ID            string
	Title         string
	PricePerNight int64
	RoomPlans     []RoomPlan
	OwnerID       string
	Capacity      int
}

type PriceBreakdown struct {
	BasePrice   int64
	PlatformFee int64
	Tax         int64
	TotalPrice  int64
}

// ReservationDraft is an unconfirmed booking intent. One slot per principal,
// last write wins. ExpiresAt is checked on read, not only via the store's TTL.
type ReservationDraft struct {
	ListingID   string    `json:"listing_id"`
	FromDate    time.Time `json:"from_date"`
	ToDate      time.Time `json:"to_date"`
	Guests      int       `json:"guests"`
	PlanName    string    `json:"plan_name"`
	Nights      int       `json:"nights"`
	BasePrice   int64     `json:"base_price"`
	PlatformFee int64     `json:"platform_fee"`
	Tax         int64     `json:"tax"`
	TotalPrice  int64     `json:"total_price"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (d ReservationDraft) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

type Booking struct {
	ID               uuid.UUID
	ListingID        string
	UserID           string
	FromDate         time.Time
	ToDate           time.Time
	Guests           int
	RoomPlan         string
	BasePrice        int64
	PlatformFee      int64
	Tax              int64
	TotalPrice       int64
	PaymentID        string
	GatewayOrderID   string
	PaymentSignature string
	PaymentStatus    string
	Status           string
	CreatedAt        time.Time
}
