package payment

import (
	"context"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/mpesa"
	"github.com/stretchr/testify/mock"
)

type MockPendingPaymentRepository struct {
	mock.Mock
}

func (m *MockPendingPaymentRepository) Create(ctx context.Context, p *domain.PendingPayment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPendingPaymentRepository) GetByCheckoutID(ctx context.Context, id string) (*domain.PendingPayment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PendingPayment), args.Error(1)
}

func (m *MockPendingPaymentRepository) Resolve(ctx context.Context, result domain.PaymentResult) (*domain.PendingPayment, error) {
	args := m.Called(ctx, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PendingPayment), args.Error(1)
}

func (m *MockPendingPaymentRepository) ListStale(ctx context.Context, createdBefore time.Time, limit int) ([]domain.PendingPayment, error) {
	args := m.Called(ctx, createdBefore, limit)
	return args.Get(0).([]domain.PendingPayment), args.Error(1)
}

func (m *MockPendingPaymentRepository) ListUnmaterialized(ctx context.Context, resolvedBefore time.Time, limit int) ([]domain.PendingPayment, error) {
	args := m.Called(ctx, resolvedBefore, limit)
	return args.Get(0).([]domain.PendingPayment), args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mpesa.STKPushResponse), args.Error(1)
}

func (m *MockProvider) QueryStatus(ctx context.Context, id string) (*mpesa.QueryResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mpesa.QueryResponse), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetPaymentStatus(ctx context.Context, id string) (*domain.PaymentStatusSnapshot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentStatusSnapshot), args.Error(1)
}

func (m *MockCache) SetPaymentStatus(ctx context.Context, snap domain.PaymentStatusSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockCache) AcquireInitiationLock(ctx context.Context, phone, itemID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, phone, itemID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) ReleaseInitiationLock(ctx context.Context, phone, itemID string) error {
	args := m.Called(ctx, phone, itemID)
	return args.Error(0)
}

type MockMaterializer struct {
	mock.Mock
}

func (m *MockMaterializer) CreateFromPayment(ctx context.Context, pending *domain.PendingPayment, receipt string) (*domain.Booking, error) {
	args := m.Called(ctx, pending, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
