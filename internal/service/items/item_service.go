package items

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/Domenick1991/travelbooking/internal/service/capacity"
	"go.uber.org/zap"
)

const maxCalendarDays = 366

type ItemUseCase interface {
	List(ctx context.Context) ([]domain.ItemRecord, error)
	GetByID(ctx context.Context, id string) (*domain.ItemRecord, error)
	SlotUsage(ctx context.Context, itemID string) ([]domain.SlotUsage, error)
	Capacity(ctx context.Context, id string) (*CapacityView, error)
	Calendar(ctx context.Context, id string, from, to time.Time, guests int) ([]capacity.DateCheck, error)
}

type Cache interface {
	GetItem(ctx context.Context, id string) (*domain.ItemRecord, error)
	SetItem(ctx context.Context, item *domain.ItemRecord) error
}

// ItemService fronts the item repository with the redis item cache. Slot
// usage is never cached; capacity is always derived from fresh rows.
type ItemService struct {
	repo   repository.ItemRepository
	cache  Cache
	ledger *capacity.Ledger
	clock  domain.Clock
	logger *zap.Logger
}

func NewItemService(repo repository.ItemRepository, cache Cache, ledger *capacity.Ledger, clock domain.Clock, logger *zap.Logger) *ItemService {
	if clock == nil {
		clock = domain.SystemClock
	}
	return &ItemService{repo: repo, cache: cache, ledger: ledger, clock: clock, logger: logger}
}

type CapacityView struct {
	ItemID string          `json:"item_id"`
	Kind   domain.ItemKind `json:"kind"`
	Name   string          `json:"name"`
	capacity.Snapshot
}

func (s *ItemService) List(ctx context.Context) ([]domain.ItemRecord, error) {
	return s.repo.List(ctx)
}

func (s *ItemService) GetByID(ctx context.Context, id string) (*domain.ItemRecord, error) {
	if s.cache != nil {
		cached, err := s.cache.GetItem(ctx, id)
		if err != nil {
			s.logger.Warn("item cache read failed", zap.String("item_id", id), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetItem(ctx, item); err != nil {
			s.logger.Warn("item cache write failed", zap.String("item_id", id), zap.Error(err))
		}
	}
	return item, nil
}

func (s *ItemService) SlotUsage(ctx context.Context, itemID string) ([]domain.SlotUsage, error) {
	return s.repo.SlotUsage(ctx, itemID)
}

// Capacity reports item-level remaining capacity and its display state.
func (s *ItemService) Capacity(ctx context.Context, id string) (*CapacityView, error) {
	item, usage, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CapacityView{
		ItemID:   item.ItemID(),
		Kind:     item.Kind(),
		Name:     item.Name(),
		Snapshot: s.ledger.Snapshot(item, usage),
	}, nil
}

// Calendar reports per-date availability for a party of guests.
func (s *ItemService) Calendar(ctx context.Context, id string, from, to time.Time, guests int) ([]capacity.DateCheck, error) {
	if guests < 1 {
		guests = 1
	}
	if from.IsZero() {
		from = s.clock.Now()
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, 30)
	}
	if to.Before(from) {
		return nil, domain.NewValidationError("to", "must not be before from")
	}
	if to.Sub(from) > maxCalendarDays*24*time.Hour {
		return nil, domain.NewValidationError("to", fmt.Sprintf("range is limited to %d days", maxCalendarDays))
	}

	item, usage, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ledger.Calendar(item, usage, from, to, guests, "", s.clock.Now()), nil
}

func (s *ItemService) load(ctx context.Context, id string) (domain.BookableItem, []domain.SlotUsage, error) {
	record, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	item, err := record.Item()
	if err != nil {
		return nil, nil, err
	}
	usage, err := s.repo.SlotUsage(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load slot usage: %w", err)
	}
	return item, usage, nil
}

var (
	_ ItemUseCase               = (*ItemService)(nil)
	_ repository.ItemRepository = (*ItemService)(nil)
)
