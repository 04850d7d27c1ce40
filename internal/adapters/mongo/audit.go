package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stayhaven/reservations/internal/domain"
	"github.com/stayhaven/reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    string    `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, userID string, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogBookingConfirmed(ctx context.Context, b domain.Booking) error {
	data := map[string]interface{}{
		"booking_id":       b.ID,
		"listing_id":       b.ListingID,
		"gateway_order_id": b.GatewayOrderID,
		"payment_id":       b.PaymentID,
		"total_price":      b.TotalPrice,
		"from_date":        b.FromDate.Format(time.RFC3339),
		"to_date":          b.ToDate.Format(time.RFC3339),
	}
	return a.LogEvent(ctx, "booking.confirmed", b.UserID, data)
}

func (a *AuditLogger) LogBookingCancelled(ctx context.Context, b domain.Booking, cancelledBy string) error {
	data := map[string]interface{}{
		"booking_id": b.ID,
		"listing_id": b.ListingID,
		"owner":      b.UserID,
	}
	return a.LogEvent(ctx, "booking.cancelled", cancelledBy, data)
}
