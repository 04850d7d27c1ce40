package reservation

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/stayhaven/reservations/internal/domain"
	"github.com/stayhaven/reservations/internal/gateway"
	"github.com/stayhaven/reservations/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Ledger is the persisted store of confirmed bookings.
type Ledger interface {
	InsertConfirmed(ctx context.Context, b domain.Booking) (domain.Booking, error)
	FindOverlapping(ctx context.Context, listingID string, from, to time.Time) ([]domain.Booking, error)
	FindByUser(ctx context.Context, userID string) ([]domain.Booking, error)
	FindByListing(ctx context.Context, listingID string) ([]domain.Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteByListing(ctx context.Context, listingID string) error
	RecordEvent(ctx context.Context, aggregateID uuid.UUID, eventType string, payload []byte) error
}

// Catalog is read-only listing collaborator state, plus the owner-initiated
// delete used by the cascade orchestration.
type Catalog interface {
	GetListing(ctx context.Context, id string) (*domain.Listing, error)
	DeleteListing(ctx context.Context, id string) (*domain.Listing, error)
}

// DraftStore holds the single reservation draft slot per principal.
type DraftStore interface {
	Save(ctx context.Context, principalID string, draft domain.ReservationDraft) error
	Get(ctx context.Context, principalID string) (domain.ReservationDraft, error)
	Delete(ctx context.Context, principalID string) error
}

// Audit records business events out-of-band; failures are logged, not fatal.
type Audit interface {
	LogBookingConfirmed(ctx context.Context, b domain.Booking) error
	LogBookingCancelled(ctx context.Context, b domain.Booking, cancelledBy string) error
}

type Service struct {
	ledger   Ledger
	catalog  Catalog
	drafts   DraftStore
	gw       gateway.Client
	audit    Audit
	logger   observability.Logger
	draftTTL time.Duration
	currency string
}

func NewService(ledger Ledger, catalog Catalog, drafts DraftStore, gw gateway.Client, audit Audit, logger observability.Logger, draftTTL time.Duration, currency string) *Service {
	return &Service{
		ledger:   ledger,
		catalog:  catalog,
		drafts:   drafts,
		gw:       gw,
		audit:    audit,
		logger:   logger,
		draftTTL: draftTTL,
		currency: currency,
	}
}

// Quote prices a stay, checks availability and stores the draft in the
// principal's slot, replacing any earlier draft. The availability answer here
// is advisory; the ledger insert at settlement is the authoritative gate.
func (s *Service) Quote(ctx context.Context, principalID, listingID string, from, to time.Time, guests int, planName string) (domain.ReservationDraft, error) {
	if !from.Before(to) {
		return domain.ReservationDraft{}, domain.ErrInvalidDateRange
	}

	var listing *domain.Listing
	var overlapping []domain.Booking

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listing, err = s.catalog.GetListing(gctx, listingID)
		return err
	})
	g.Go(func() error {
		var err error
		overlapping, err = s.ledger.FindOverlapping(gctx, listingID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ReservationDraft{}, err
	}
	if len(overlapping) > 0 {
		return domain.ReservationDraft{}, domain.ErrConflict
	}

	draft, err := domain.NewDraft(listing, planName, from, to, guests, s.draftTTL, time.Now())
	if err != nil {
		return domain.ReservationDraft{}, err
	}

	if err := s.drafts.Save(ctx, principalID, draft); err != nil {
		return domain.ReservationDraft{}, err
	}
	observability.QuotesTotal.Inc()
	return draft, nil
}

// CreateOrder opens a gateway order for the principal's current draft. The
// full draft rides along as order notes: the only record of intent that
// survives until the payment callback. The draft slot is left intact so a
// gateway failure can be retried.
func (s *Service) CreateOrder(ctx context.Context, principalID string) (*gateway.Order, error) {
	draft, err := s.drafts.Get(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if draft.TotalPrice <= 0 {
		return nil, domain.ErrOrderCreationFailed
	}

	receipt := "booking_" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	order, err := s.gw.CreateOrder(ctx, draft.TotalPrice*100, s.currency, receipt, notesFromDraft(principalID, draft))
	if err != nil {
		return nil, err
	}

	observability.OrdersCreatedTotal.Inc()
	s.logger.WithField("order_id", order.ID).Info("gateway order created")
	return order, nil
}

func (s *Service) MyBookings(ctx context.Context, principalID string) ([]domain.Booking, error) {
	return s.ledger.FindByUser(ctx, principalID)
}

// ListingBookings is the host view: only the listing owner may read it.
func (s *Service) ListingBookings(ctx context.Context, principalID, listingID string) ([]domain.Booking, error) {
	listing, err := s.catalog.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != principalID {
		return nil, domain.ErrUnauthorized
	}
	return s.ledger.FindByListing(ctx, listingID)
}

// Cancel deletes a booking. The guest who made it or the host who owns the
// listing may cancel; no refund is initiated here, a booking.cancelled event
// is emitted for downstream handling.
func (s *Service) Cancel(ctx context.Context, principalID string, bookingID uuid.UUID) error {
	booking, err := s.ledger.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if booking.UserID != principalID {
		listing, err := s.catalog.GetListing(ctx, booking.ListingID)
		if err != nil || listing.OwnerID != principalID {
			return domain.ErrUnauthorized
		}
	}

	if err := s.ledger.DeleteByID(ctx, bookingID); err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"booking_id":   booking.ID,
		"listing_id":   booking.ListingID,
		"user_id":      booking.UserID,
		"payment_id":   booking.PaymentID,
		"total_price":  booking.TotalPrice,
		"cancelled_by": principalID,
	})
	if err := s.ledger.RecordEvent(ctx, booking.ID, "booking.cancelled", payload); err != nil {
		s.logger.Error("failed to record cancellation event", err)
	}
	if s.audit != nil {
		if err := s.audit.LogBookingCancelled(ctx, booking, principalID); err != nil {
			s.logger.Error("audit log failed", err)
		}
	}
	return nil
}

// DeleteListing is the explicit cascade orchestration: the owner removes the
// listing, its reviews go with it, and this listing's ledger rows are swept.
// Bookings on other listings are never touched.
func (s *Service) DeleteListing(ctx context.Context, principalID, listingID string) error {
	listing, err := s.catalog.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.OwnerID != principalID {
		return domain.ErrUnauthorized
	}

	if _, err := s.catalog.DeleteListing(ctx, listingID); err != nil {
		return err
	}
	return s.ledger.DeleteByListing(ctx, listingID)
}
