package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stayhaven/reservations/internal/domain"
	"github.com/stayhaven/reservations/internal/observability"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	listing_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	from_date DATE NOT NULL,
	to_date DATE NOT NULL,
	guests INT NOT NULL,
	room_plan TEXT NOT NULL,
	base_price BIGINT NOT NULL,
	platform_fee BIGINT NOT NULL,
	tax BIGINT NOT NULL,
	total_price BIGINT NOT NULL,
	payment_id TEXT NOT NULL,
	gateway_order_id TEXT NOT NULL UNIQUE,
	payment_signature TEXT NOT NULL,
	payment_status TEXT NOT NULL CHECK (payment_status IN ('Pending', 'Paid')),
	status TEXT NOT NULL CHECK (status IN ('Confirmed')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS bookings_listing_dates ON bookings (listing_id, from_date, to_date);
CREATE INDEX IF NOT EXISTS bookings_user ON bookings (user_id);
CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	payload_json BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
	dedupe_key TEXT NOT NULL
);
`

// Ledger is the durable store of confirmed bookings and the single source of
// truth for availability.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, schema)
	return err
}

func (l *Ledger) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
	}
	return err
}

// InsertConfirmed persists a booking if and only if no confirmed booking
// overlaps its half-open date range. The overlap predicate runs inside the
// same SERIALIZABLE transaction as the insert, so this is the authoritative
// gate against double-booking; the earlier availability check is advisory.
// A booking already settled under the same gateway order id is returned
// as-is, making the caller's verify idempotent.
func (l *Ledger) InsertConfirmed(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	var out domain.Booking
	err := l.WithTx(ctx, func(tx pgx.Tx) error {
		existing, err := getByGatewayOrderTx(ctx, tx, b.GatewayOrderID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		result, err := tx.Exec(ctx, `
			INSERT INTO bookings (
				id, listing_id, user_id, from_date, to_date, guests, room_plan,
				base_price, platform_fee, tax, total_price,
				payment_id, gateway_order_id, payment_signature, payment_status, status, created_at
			)
			SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
			WHERE NOT EXISTS (
				SELECT 1 FROM bookings
				WHERE listing_id = $2 AND status = 'Confirmed'
				AND from_date < $5 AND to_date > $4
			)
		`, b.ID, b.ListingID, b.UserID, b.FromDate, b.ToDate, b.Guests, b.RoomPlan,
			b.BasePrice, b.PlatformFee, b.Tax, b.TotalPrice,
			b.PaymentID, b.GatewayOrderID, b.PaymentSignature, b.PaymentStatus, b.Status, b.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == UniqueViolationCode {
				// Concurrent verify settled the same order first.
				out, err = getByGatewayOrderTx(ctx, tx, b.GatewayOrderID)
				return err
			}
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrBookingConflict
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"booking_id":       b.ID,
			"listing_id":       b.ListingID,
			"user_id":          b.UserID,
			"gateway_order_id": b.GatewayOrderID,
			"total_price":      b.TotalPrice,
		})
		if err := l.InsertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   b.ID,
			EventType:     "booking.confirmed",
			Payload:       payload,
			DedupeKey:     b.GatewayOrderID,
		}); err != nil {
			return err
		}
		out = b
		return nil
	})
	if errors.Is(err, domain.ErrSerializationFailure) {
		return domain.Booking{}, domain.ErrBookingConflict
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

const bookingColumns = `
	id, listing_id, user_id, from_date, to_date, guests, room_plan,
	base_price, platform_fee, tax, total_price,
	payment_id, gateway_order_id, payment_signature, payment_status, status, created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(&b.ID, &b.ListingID, &b.UserID, &b.FromDate, &b.ToDate, &b.Guests, &b.RoomPlan,
		&b.BasePrice, &b.PlatformFee, &b.Tax, &b.TotalPrice,
		&b.PaymentID, &b.GatewayOrderID, &b.PaymentSignature, &b.PaymentStatus, &b.Status, &b.CreatedAt)
	return b, err
}

func getByGatewayOrderTx(ctx context.Context, tx pgx.Tx, orderID string) (domain.Booking, error) {
	b, err := scanBooking(tx.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE gateway_order_id = $1
	`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, err
}

func (l *Ledger) GetByGatewayOrder(ctx context.Context, orderID string) (domain.Booking, error) {
	b, err := scanBooking(l.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE gateway_order_id = $1
	`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, err
}

func (l *Ledger) GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	b, err := scanBooking(l.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, err
}

func (l *Ledger) queryBookings(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// FindOverlapping returns confirmed bookings whose half-open date range
// intersects [from, to) on the given listing.
func (l *Ledger) FindOverlapping(ctx context.Context, listingID string, from, to time.Time) ([]domain.Booking, error) {
	return l.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE listing_id = $1 AND status = 'Confirmed'
		AND from_date < $3 AND to_date > $2
	`, listingID, from, to)
}

func (l *Ledger) FindByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return l.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
}

func (l *Ledger) FindByListing(ctx context.Context, listingID string) ([]domain.Booking, error) {
	return l.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE listing_id = $1 ORDER BY from_date ASC
	`, listingID)
}

func (l *Ledger) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result, err := l.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteByListing removes every booking on a listing. Used by the listing
// deletion cascade; bookings on other listings are untouched.
func (l *Ledger) DeleteByListing(ctx context.Context, listingID string) error {
	_, err := l.pool.Exec(ctx, `DELETE FROM bookings WHERE listing_id = $1`, listingID)
	return err
}
