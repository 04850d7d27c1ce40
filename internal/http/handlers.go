package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stayhaven/reservations/internal/config"
	"github.com/stayhaven/reservations/internal/domain"
	"github.com/stayhaven/reservations/internal/idempotency"
	"github.com/stayhaven/reservations/internal/reservation"
)

const dateLayout = "2006-01-02"

type Handlers struct {
	cfg      *config.Config
	svc      *reservation.Service
	verifier *reservation.Verifier
	idemp    *idempotency.Idempotency
}

func NewHandlers(cfg *config.Config, svc *reservation.Service, verifier *reservation.Verifier, idemp *idempotency.Idempotency) *Handlers {
	return &Handlers{
		cfg:      cfg,
		svc:      svc,
		verifier: verifier,
		idemp:    idemp,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) []byte {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidDateRange), errors.Is(err, domain.ErrInvalidPlan):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrExpiredSession):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrVerificationFailed):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrBookingConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrOrderCreationFailed):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, domain.ErrInvalidDateRange
	}
	return t, nil
}

func (h *Handlers) QuoteStay(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	listingID := chi.URLParam(r, "id")

	var req struct {
		FromDate string `json:"from_date"`
		ToDate   string `json:"to_date"`
		Guests   int    `json:"guests"`
		RoomPlan string `json:"room_plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	from, err := parseDate(req.FromDate)
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseDate(req.ToDate)
	if err != nil {
		writeError(w, err)
		return
	}

	draft, err := h.svc.Quote(r.Context(), principal, listingID, from, to, req.Guests, req.RoomPlan)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"listing_id":   draft.ListingID,
		"from_date":    draft.FromDate.Format(dateLayout),
		"to_date":      draft.ToDate.Format(dateLayout),
		"nights":       draft.Nights,
		"room_plan":    draft.PlanName,
		"base_price":   draft.BasePrice,
		"platform_fee": draft.PlatformFee,
		"tax":          draft.Tax,
		"total_price":  draft.TotalPrice,
		"expires_at":   draft.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	principal := PrincipalFromContext(r.Context())
	order, err := h.svc.CreateOrder(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, map[string]interface{}{
		"order_id": order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
	})
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID   string `json:"gateway_order_id"`
		PaymentID string `json:"gateway_payment_id"`
		Signature string `json:"gateway_signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	booking, err := h.verifier.Verify(r.Context(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"booking_id":     booking.ID,
		"listing_id":     booking.ListingID,
		"from_date":      booking.FromDate.Format(dateLayout),
		"to_date":        booking.ToDate.Format(dateLayout),
		"total_price":    booking.TotalPrice,
		"payment_status": booking.PaymentStatus,
		"status":         booking.Status,
	})
}

func bookingView(b domain.Booking) map[string]interface{} {
	return map[string]interface{}{
		"booking_id":     b.ID,
		"listing_id":     b.ListingID,
		"user_id":        b.UserID,
		"from_date":      b.FromDate.Format(dateLayout),
		"to_date":        b.ToDate.Format(dateLayout),
		"guests":         b.Guests,
		"room_plan":      b.RoomPlan,
		"total_price":    b.TotalPrice,
		"payment_status": b.PaymentStatus,
		"status":         b.Status,
		"created_at":     b.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handlers) MyBookings(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	bookings, err := h.svc.MyBookings(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]map[string]interface{}, len(bookings))
	for i, b := range bookings {
		views[i] = bookingView(b)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bookings": views})
}

func (h *Handlers) ListingBookings(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	listingID := chi.URLParam(r, "id")

	bookings, err := h.svc.ListingBookings(r.Context(), principal, listingID)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]map[string]interface{}, len(bookings))
	for i, b := range bookings {
		views[i] = bookingView(b)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bookings": views})
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.svc.Cancel(r.Context(), principal, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DeleteListing(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	listingID := chi.URLParam(r, "id")

	if err := h.svc.DeleteListing(r.Context(), principal, listingID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
