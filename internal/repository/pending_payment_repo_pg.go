package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PendingPaymentRepository interface {
	Create(ctx context.Context, payment *domain.PendingPayment) error
	GetByCheckoutID(ctx context.Context, checkoutRequestID string) (*domain.PendingPayment, error)
	// Resolve moves a pending payment to its terminal status. A payment that
	// was already resolved is returned unchanged with ErrAlreadyResolved.
	Resolve(ctx context.Context, result domain.PaymentResult) (*domain.PendingPayment, error)
	ListStale(ctx context.Context, createdBefore time.Time, limit int) ([]domain.PendingPayment, error)
	// ListUnmaterialized returns completed payments resolved before the cutoff
	// that have no booking row yet.
	ListUnmaterialized(ctx context.Context, resolvedBefore time.Time, limit int) ([]domain.PendingPayment, error)
}

type PGPendingPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPendingPaymentRepository(db *pgxpool.Pool) PendingPaymentRepository {
	return &PGPendingPaymentRepository{db: db}
}

const pendingPaymentColumns = `checkout_request_id, merchant_request_id, phone_number, amount, booking_data, payment_status,
	result_code, result_desc, mpesa_receipt_number, created_at, updated_at`

const qualifiedPendingPaymentColumns = `p.checkout_request_id, p.merchant_request_id, p.phone_number, p.amount, p.booking_data, p.payment_status,
	p.result_code, p.result_desc, p.mpesa_receipt_number, p.created_at, p.updated_at`

func (r *PGPendingPaymentRepository) Create(ctx context.Context, p *domain.PendingPayment) error {
	data, err := json.Marshal(p.BookingData)
	if err != nil {
		return fmt.Errorf("encode booking_data: %w", err)
	}
	if p.PaymentStatus == "" {
		p.PaymentStatus = domain.PendingStatusPending
	}

	return r.db.QueryRow(ctx, `INSERT INTO pending_payments (checkout_request_id, merchant_request_id, phone_number, amount, booking_data, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		p.CheckoutRequestID, p.MerchantRequestID, p.PhoneNumber, p.Amount, data, p.PaymentStatus).
		Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *PGPendingPaymentRepository) GetByCheckoutID(ctx context.Context, checkoutRequestID string) (*domain.PendingPayment, error) {
	p, err := scanPendingPayment(r.db.QueryRow(ctx, `SELECT `+pendingPaymentColumns+` FROM pending_payments WHERE checkout_request_id=$1`, checkoutRequestID))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *PGPendingPaymentRepository) Resolve(ctx context.Context, result domain.PaymentResult) (*domain.PendingPayment, error) {
	var receipt *string
	if result.ReceiptNumber != "" {
		receipt = &result.ReceiptNumber
	}

	p, err := scanPendingPayment(r.db.QueryRow(ctx, `UPDATE pending_payments
		SET payment_status=$1, result_code=$2, result_desc=$3, mpesa_receipt_number=$4,
			merchant_request_id=COALESCE(NULLIF($5, ''), merchant_request_id), updated_at=now()
		WHERE checkout_request_id=$6 AND payment_status=$7
		RETURNING `+pendingPaymentColumns,
		result.Status(), result.ResultCode, result.ResultDesc, receipt, result.MerchantRequestID,
		result.CheckoutRequestID, domain.PendingStatusPending))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	current, err := r.GetByCheckoutID(ctx, result.CheckoutRequestID)
	if err != nil {
		return nil, err
	}
	return current, domain.ErrAlreadyResolved
}

func (r *PGPendingPaymentRepository) ListStale(ctx context.Context, createdBefore time.Time, limit int) ([]domain.PendingPayment, error) {
	return r.list(ctx, `SELECT `+pendingPaymentColumns+` FROM pending_payments
		WHERE payment_status=$1 AND created_at < $2 ORDER BY created_at LIMIT $3`,
		domain.PendingStatusPending, createdBefore, limit)
}

func (r *PGPendingPaymentRepository) ListUnmaterialized(ctx context.Context, resolvedBefore time.Time, limit int) ([]domain.PendingPayment, error) {
	return r.list(ctx, `SELECT `+qualifiedPendingPaymentColumns+` FROM pending_payments p
		LEFT JOIN bookings b ON b.checkout_request_id = p.checkout_request_id
		WHERE p.payment_status=$1 AND p.updated_at < $2 AND b.id IS NULL
		ORDER BY p.updated_at LIMIT $3`,
		domain.PendingStatusCompleted, resolvedBefore, limit)
}

func (r *PGPendingPaymentRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.PendingPayment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.PendingPayment, 0)
	for rows.Next() {
		p, err := scanPendingPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func scanPendingPayment(row pgx.Row) (*domain.PendingPayment, error) {
	var (
		p    domain.PendingPayment
		data []byte
	)
	if err := row.Scan(&p.CheckoutRequestID, &p.MerchantRequestID, &p.PhoneNumber, &p.Amount, &data, &p.PaymentStatus,
		&p.ResultCode, &p.ResultDesc, &p.MpesaReceiptNumber, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &p.BookingData); err != nil {
		return nil, fmt.Errorf("pending payment %s: decode booking_data: %w", p.CheckoutRequestID, err)
	}
	return &p, nil
}

var _ PendingPaymentRepository = (*PGPendingPaymentRepository)(nil)
