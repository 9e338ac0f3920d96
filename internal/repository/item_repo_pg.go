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

type ItemRepository interface {
	List(ctx context.Context) ([]domain.ItemRecord, error)
	GetByID(ctx context.Context, id string) (*domain.ItemRecord, error)
	SlotUsage(ctx context.Context, itemID string) ([]domain.SlotUsage, error)
}

type PGItemRepository struct {
	db *pgxpool.Pool
}

func NewItemRepository(db *pgxpool.Pool) ItemRepository {
	return &PGItemRepository{db: db}
}

const itemColumns = `id, kind, name, created_by, contact_email, capacity, slot_limit_type, date_type, fixed_date,
	entry_fee_type, adult_price, child_price, working_days, facilities, activities, created_at, updated_at`

func (r *PGItemRepository) List(ctx context.Context) ([]domain.ItemRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM items ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ItemRecord, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *PGItemRepository) GetByID(ctx context.Context, id string) (*domain.ItemRecord, error) {
	item, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

func (r *PGItemRepository) SlotUsage(ctx context.Context, itemID string) ([]domain.SlotUsage, error) {
	return querySlotUsage(ctx, r.db, itemID)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func querySlotUsage(ctx context.Context, q querier, itemID string) ([]domain.SlotUsage, error) {
	rows, err := q.Query(ctx, `SELECT id, visit_date, slots_booked, status FROM bookings WHERE item_id=$1 AND status NOT IN ($2, $3)`,
		itemID, domain.BookingStatusCancelled, domain.BookingStatusRejected)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := make([]domain.SlotUsage, 0)
	for rows.Next() {
		var u domain.SlotUsage
		if err := rows.Scan(&u.BookingID, &u.VisitDate, &u.SlotsBooked, &u.Status); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

// lockItem reads the item row FOR UPDATE so concurrent admissions on the
// same item serialize behind each other.
func lockItem(ctx context.Context, q querier, itemID string) (*domain.ItemRecord, error) {
	item, err := scanItem(q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1 FOR UPDATE`, itemID))
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

func scanItem(row pgx.Row) (*domain.ItemRecord, error) {
	var (
		item        domain.ItemRecord
		workingDays []int32
		facilities  []byte
		activities  []byte
	)
	if err := row.Scan(&item.ID, &item.Kind, &item.Name, &item.CreatedBy, &item.ContactEmail, &item.Capacity,
		&item.SlotLimitType, &item.DateType, &item.FixedDate, &item.EntryFeeType, &item.AdultPrice, &item.ChildPrice,
		&workingDays, &facilities, &activities, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeItemJSON(&item, workingDays, facilities, activities); err != nil {
		return nil, err
	}
	return &item, nil
}

func decodeItemJSON(item *domain.ItemRecord, workingDays []int32, facilities, activities []byte) error {
	for _, d := range workingDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("item %s: invalid working day %d", item.ID, d)
		}
		item.WorkingDays = append(item.WorkingDays, time.Weekday(d))
	}
	if len(facilities) > 0 {
		if err := json.Unmarshal(facilities, &item.Facilities); err != nil {
			return fmt.Errorf("item %s: decode facilities: %w", item.ID, err)
		}
	}
	if len(activities) > 0 {
		if err := json.Unmarshal(activities, &item.Activities); err != nil {
			return fmt.Errorf("item %s: decode activities: %w", item.ID, err)
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

var _ ItemRepository = (*PGItemRepository)(nil)
