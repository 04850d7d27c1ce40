package reservation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stayhaven/reservations/internal/domain"
	"github.com/stayhaven/reservations/internal/gateway"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeLedger struct {
	mu       sync.Mutex
	bookings []domain.Booking
	events   []string
}

func (f *fakeLedger) InsertConfirmed(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.bookings {
		if existing.GatewayOrderID == b.GatewayOrderID {
			return existing, nil
		}
	}
	for _, existing := range f.bookings {
		if existing.ListingID == b.ListingID && existing.Status == domain.BookingConfirmed &&
			domain.Overlaps(existing.FromDate, existing.ToDate, b.FromDate, b.ToDate) {
			return domain.Booking{}, domain.ErrBookingConflict
		}
	}
	f.bookings = append(f.bookings, b)
	f.events = append(f.events, "booking.confirmed")
	return b, nil
}

func (f *fakeLedger) FindOverlapping(ctx context.Context, listingID string, from, to time.Time) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.ListingID == listingID && b.Status == domain.BookingConfirmed &&
			domain.Overlaps(b.FromDate, b.ToDate, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLedger) FindByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLedger) FindByListing(ctx context.Context, listingID string) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.ListingID == listingID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLedger) GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Booking{}, domain.ErrNotFound
}

func (f *fakeLedger) DeleteByID(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.bookings {
		if b.ID == id {
			f.bookings = append(f.bookings[:i], f.bookings[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeLedger) DeleteByListing(ctx context.Context, listingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.bookings[:0]
	for _, b := range f.bookings {
		if b.ListingID != listingID {
			kept = append(kept, b)
		}
	}
	f.bookings = kept
	return nil
}

func (f *fakeLedger) RecordEvent(ctx context.Context, aggregateID uuid.UUID, eventType string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bookings)
}

type fakeCatalog struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing
	reviews  map[string][]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{listings: map[string]*domain.Listing{}, reviews: map[string][]string{}}
}

func (f *fakeCatalog) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return l, nil
}

func (f *fakeCatalog) DeleteListing(ctx context.Context, id string) (*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(f.listings, id)
	delete(f.reviews, id)
	return l, nil
}

type fakeDrafts struct {
	mu    sync.Mutex
	slots map[string]domain.ReservationDraft
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{slots: map[string]domain.ReservationDraft{}}
}

func (f *fakeDrafts) Save(ctx context.Context, principalID string, draft domain.ReservationDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[principalID] = draft
	return nil
}

func (f *fakeDrafts) Get(ctx context.Context, principalID string) (domain.ReservationDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft, ok := f.slots[principalID]
	if !ok || draft.Expired(time.Now()) {
		return domain.ReservationDraft{}, domain.ErrExpiredSession
	}
	return draft, nil
}

func (f *fakeDrafts) Delete(ctx context.Context, principalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.slots, principalID)
	return nil
}

type fakeGateway struct {
	mu         sync.Mutex
	orders     map[string]*gateway.Order
	nextID     int
	failCreate bool
	fetchCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: map[string]*gateway.Order{}}
}

func (f *fakeGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*gateway.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, domain.ErrOrderCreationFailed
	}
	f.nextID++
	order := &gateway.Order{
		ID:       fmt.Sprintf("order_%d", f.nextID),
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeGateway) FetchOrder(ctx context.Context, orderID string) (*gateway.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	order, ok := f.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeAudit) LogBookingConfirmed(ctx context.Context, b domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, "booking.confirmed")
	return nil
}

func (f *fakeAudit) LogBookingCancelled(ctx context.Context, b domain.Booking, cancelledBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, "booking.cancelled")
	return nil
}
