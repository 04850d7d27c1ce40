package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stayhaven/reservations/internal/domain"
	"github.com/stayhaven/reservations/internal/gateway"
	"github.com/stayhaven/reservations/internal/observability"
)

// Verifier is the sole gate between a payment callback and a durable booking.
// It fails closed: nothing is persisted unless the signature checks out and
// the gateway's own record of the order agrees.
type Verifier struct {
	secret string
	gw     gateway.Client
	ledger Ledger
	drafts DraftStore
	audit  Audit
	logger observability.Logger
}

func NewVerifier(secret string, gw gateway.Client, ledger Ledger, drafts DraftStore, audit Audit, logger observability.Logger) *Verifier {
	return &Verifier{
		secret: secret,
		gw:     gw,
		ledger: ledger,
		drafts: drafts,
		audit:  audit,
		logger: logger,
	}
}

// Verify authenticates a gateway payment callback and settles the booking.
//
// The caller supplies only the gateway's identifiers and signature; every
// amount and reservation detail is taken from the order re-fetched from the
// gateway. Calling Verify again for an already-settled order returns the
// existing booking.
func (v *Verifier) Verify(ctx context.Context, orderID, paymentID, signature string) (domain.Booking, error) {
	if !gateway.VerifySignature(v.secret, orderID, paymentID, signature) {
		observability.VerificationsTotal.WithLabelValues("signature_mismatch").Inc()
		v.logger.WithField("order_id", orderID).Warn("payment signature mismatch")
		return domain.Booking{}, domain.ErrVerificationFailed
	}

	order, err := v.gw.FetchOrder(ctx, orderID)
	if err != nil {
		observability.VerificationsTotal.WithLabelValues("gateway_error").Inc()
		return domain.Booking{}, err
	}

	principalID, draft, err := draftFromNotes(order.Notes)
	if err != nil {
		observability.VerificationsTotal.WithLabelValues("bad_metadata").Inc()
		v.logger.WithField("order_id", orderID).Error("unusable order notes", err)
		return domain.Booking{}, domain.ErrVerificationFailed
	}
	if order.Amount != draft.TotalPrice*100 {
		observability.VerificationsTotal.WithLabelValues("amount_mismatch").Inc()
		return domain.Booking{}, domain.ErrVerificationFailed
	}

	// Advisory fast-fail; the conditional insert below is the real gate.
	overlapping, err := v.ledger.FindOverlapping(ctx, draft.ListingID, draft.FromDate, draft.ToDate)
	if err != nil {
		return domain.Booking{}, err
	}
	for _, b := range overlapping {
		if b.GatewayOrderID == orderID {
			observability.VerificationsTotal.WithLabelValues("duplicate").Inc()
			return b, nil
		}
	}
	if len(overlapping) > 0 {
		observability.BookingConflictsTotal.Inc()
		observability.VerificationsTotal.WithLabelValues("conflict").Inc()
		return domain.Booking{}, domain.ErrBookingConflict
	}

	booking := domain.Booking{
		ID:               uuid.New(),
		ListingID:        draft.ListingID,
		UserID:           principalID,
		FromDate:         draft.FromDate,
		ToDate:           draft.ToDate,
		Guests:           draft.Guests,
		RoomPlan:         draft.PlanName,
		BasePrice:        draft.BasePrice,
		PlatformFee:      draft.PlatformFee,
		Tax:              draft.Tax,
		TotalPrice:       draft.TotalPrice,
		PaymentID:        paymentID,
		GatewayOrderID:   orderID,
		PaymentSignature: signature,
		PaymentStatus:    domain.PaymentPaid,
		Status:           domain.BookingConfirmed,
		CreatedAt:        time.Now(),
	}

	settled, err := v.ledger.InsertConfirmed(ctx, booking)
	if err != nil {
		if errors.Is(err, domain.ErrBookingConflict) {
			observability.BookingConflictsTotal.Inc()
			observability.VerificationsTotal.WithLabelValues("conflict").Inc()
		}
		return domain.Booking{}, err
	}

	observability.VerificationsTotal.WithLabelValues("ok").Inc()

	// Consumed draft; best effort, the notes were the durable copy.
	if err := v.drafts.Delete(ctx, principalID); err != nil {
		v.logger.Error("failed to clear draft slot", err)
	}
	if v.audit != nil {
		if err := v.audit.LogBookingConfirmed(ctx, settled); err != nil {
			v.logger.Error("audit log failed", err)
		}
	}
	return settled, nil
}
