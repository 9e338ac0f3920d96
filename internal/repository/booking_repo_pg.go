package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AdmitFunc decides, inside the insert transaction, whether the booking still
// fits. item is locked FOR UPDATE; usage is read after the lock.
type AdmitFunc func(item *domain.ItemRecord, usage []domain.SlotUsage) error

// RescheduleFunc re-checks a reschedule against the locked booking and item.
type RescheduleFunc func(booking *domain.Booking, item *domain.ItemRecord, usage []domain.SlotUsage) error

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking, admit AdmitFunc) (created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) (*domain.Booking, error)
	Reschedule(ctx context.Context, id string, newDate time.Time, actor string, check RescheduleFunc) (*domain.Booking, *domain.RescheduleLogEntry, error)
	RescheduleLog(ctx context.Context, bookingID string) ([]domain.RescheduleLogEntry, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const (
	bookingColumns = `id, user_id, booking_type, item_id, visit_date, total_amount, slots_booked, status, payment_status,
	payment_method, payment_phone, is_guest_booking, guest_name, guest_email, guest_phone, booking_details,
	checkout_request_id, referral_tracking_id, created_at, updated_at`

	serializationFailure = "40001"
	maxTxAttempts        = 3
)

// Create inserts the booking. When CheckoutRequestID is set and a booking for
// it already exists, that booking is loaded into b and created is false.
func (r *PGBookingRepository) Create(ctx context.Context, b *domain.Booking, admit AdmitFunc) (bool, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	details, err := json.Marshal(b.Details)
	if err != nil {
		return false, fmt.Errorf("encode booking_details: %w", err)
	}

	var created bool
	err = r.serializable(ctx, func(tx pgx.Tx) error {
		created = false
		if b.CheckoutRequestID != nil {
			existing, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE checkout_request_id=$1`, *b.CheckoutRequestID))
			if err == nil {
				*b = *existing
				return nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
		}

		if admit != nil {
			item, err := lockItem(ctx, tx, b.ItemID)
			if err != nil {
				return err
			}
			usage, err := querySlotUsage(ctx, tx, b.ItemID)
			if err != nil {
				return err
			}
			if err := admit(item, usage); err != nil {
				return err
			}
		}

		err := tx.QueryRow(ctx, `INSERT INTO bookings (id, user_id, booking_type, item_id, visit_date, total_amount, slots_booked,
			status, payment_status, payment_method, payment_phone, is_guest_booking, guest_name, guest_email, guest_phone,
			booking_details, checkout_request_id, referral_tracking_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (checkout_request_id) DO NOTHING
		RETURNING created_at, updated_at`,
			b.ID, b.UserID, b.BookingType, b.ItemID, b.VisitDate, b.TotalAmount, b.SlotsBooked,
			b.Status, b.PaymentStatus, b.PaymentMethod, b.PaymentPhone, b.IsGuestBooking, b.GuestName, b.GuestEmail, b.GuestPhone,
			details, b.CheckoutRequestID, b.ReferralTrackingID).
			Scan(&b.CreatedAt, &b.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) && b.CheckoutRequestID != nil {
			existing, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE checkout_request_id=$1`, *b.CheckoutRequestID))
			if err != nil {
				return err
			}
			*b = *existing
			return nil
		}
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (r *PGBookingRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE checkout_request_id=$1`, checkoutRequestID))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (r *PGBookingRepository) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE id=$2 RETURNING `+bookingColumns, status, id))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (r *PGBookingRepository) Reschedule(ctx context.Context, id string, newDate time.Time, actor string, check RescheduleFunc) (*domain.Booking, *domain.RescheduleLogEntry, error) {
	var (
		booking *domain.Booking
		entry   *domain.RescheduleLogEntry
	)
	err := r.serializable(ctx, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err)
		}
		item, err := lockItem(ctx, tx, b.ItemID)
		if err != nil {
			return err
		}
		usage, err := querySlotUsage(ctx, tx, b.ItemID)
		if err != nil {
			return err
		}
		if err := check(b, item, usage); err != nil {
			return err
		}

		oldDate := b.VisitDate
		if err := tx.QueryRow(ctx, `UPDATE bookings SET visit_date=$1, updated_at=now() WHERE id=$2 RETURNING visit_date, updated_at`, newDate, id).
			Scan(&b.VisitDate, &b.UpdatedAt); err != nil {
			return err
		}

		e := &domain.RescheduleLogEntry{ID: uuid.NewString(), BookingID: id, Actor: actor, OldDate: oldDate, NewDate: newDate}
		if err := tx.QueryRow(ctx, `INSERT INTO reschedule_log (id, booking_id, actor, old_date, new_date) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
			e.ID, e.BookingID, e.Actor, e.OldDate, e.NewDate).Scan(&e.CreatedAt); err != nil {
			return err
		}

		booking, entry = b, e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return booking, entry, nil
}

func (r *PGBookingRepository) RescheduleLog(ctx context.Context, bookingID string) ([]domain.RescheduleLogEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, booking_id, actor, old_date, new_date, created_at FROM reschedule_log WHERE booking_id=$1 ORDER BY created_at`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.RescheduleLogEntry, 0)
	for rows.Next() {
		var e domain.RescheduleLogEntry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Actor, &e.OldDate, &e.NewDate, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// serializable runs fn in a SERIALIZABLE transaction, retrying on
// serialization failures. Errors returned by fn roll back and are returned as is.
func (r *PGBookingRepository) serializable(ctx context.Context, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = r.runTx(ctx, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

func (r *PGBookingRepository) runTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b       domain.Booking
		details []byte
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.BookingType, &b.ItemID, &b.VisitDate, &b.TotalAmount, &b.SlotsBooked,
		&b.Status, &b.PaymentStatus, &b.PaymentMethod, &b.PaymentPhone, &b.IsGuestBooking, &b.GuestName, &b.GuestEmail,
		&b.GuestPhone, &details, &b.CheckoutRequestID, &b.ReferralTrackingID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(details, &b.Details); err != nil {
		return nil, fmt.Errorf("booking %s: decode booking_details: %w", b.ID, err)
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
