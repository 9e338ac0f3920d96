package api

import (
	"context"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/mpesa"
	"github.com/Domenick1991/travelbooking/internal/service/booking"
	"github.com/Domenick1991/travelbooking/internal/service/capacity"
	"github.com/Domenick1991/travelbooking/internal/service/items"
	"github.com/Domenick1991/travelbooking/internal/service/payment"
	"github.com/stretchr/testify/mock"
)

type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) Checkout(ctx context.Context, input booking.CheckoutInput) (*booking.CheckoutResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.CheckoutResult), args.Error(1)
}

func (m *MockBookingUseCase) CreateDirect(ctx context.Context, draft domain.BookingDraft) (*domain.Booking, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CreateFromPayment(ctx context.Context, pending *domain.PendingPayment, receipt string) (*domain.Booking, error) {
	args := m.Called(ctx, pending, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockRescheduleUseCase struct {
	mock.Mock
}

func (m *MockRescheduleUseCase) Eligibility(ctx context.Context, bookingID string) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockRescheduleUseCase) AvailableDates(ctx context.Context, bookingID string, from, to time.Time) ([]capacity.DateCheck, error) {
	args := m.Called(ctx, bookingID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]capacity.DateCheck), args.Error(1)
}

func (m *MockRescheduleUseCase) Reschedule(ctx context.Context, bookingID string, newDate time.Time, actor string) (*domain.Booking, *domain.RescheduleLogEntry, error) {
	args := m.Called(ctx, bookingID, newDate, actor)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Booking), args.Get(1).(*domain.RescheduleLogEntry), args.Error(2)
}

func (m *MockRescheduleUseCase) History(ctx context.Context, bookingID string) ([]domain.RescheduleLogEntry, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).([]domain.RescheduleLogEntry), args.Error(1)
}

type MockItemUseCase struct {
	mock.Mock
}

func (m *MockItemUseCase) List(ctx context.Context) ([]domain.ItemRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.ItemRecord), args.Error(1)
}

func (m *MockItemUseCase) GetByID(ctx context.Context, id string) (*domain.ItemRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ItemRecord), args.Error(1)
}

func (m *MockItemUseCase) SlotUsage(ctx context.Context, itemID string) ([]domain.SlotUsage, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).([]domain.SlotUsage), args.Error(1)
}

func (m *MockItemUseCase) Capacity(ctx context.Context, id string) (*items.CapacityView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*items.CapacityView), args.Error(1)
}

func (m *MockItemUseCase) Calendar(ctx context.Context, id string, from, to time.Time, guests int) ([]capacity.DateCheck, error) {
	args := m.Called(ctx, id, from, to, guests)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]capacity.DateCheck), args.Error(1)
}

type MockPaymentUseCase struct {
	mock.Mock
}

func (m *MockPaymentUseCase) Initiate(ctx context.Context, req payment.PaymentRequest) (*payment.Initiation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Initiation), args.Error(1)
}

func (m *MockPaymentUseCase) Await(ctx context.Context, id string) (*payment.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Attempt), args.Error(1)
}

func (m *MockPaymentUseCase) Status(ctx context.Context, id string) (*domain.PendingPayment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PendingPayment), args.Error(1)
}

type MockCallbackHandler struct {
	mock.Mock
}

func (m *MockCallbackHandler) Handle(ctx context.Context, body []byte) mpesa.CallbackAck {
	args := m.Called(ctx, body)
	return args.Get(0).(mpesa.CallbackAck)
}
