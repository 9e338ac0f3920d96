package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/mpesa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

const successBody = `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":3700},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},{"Name":"PhoneNumber","Value":254712345678}]}}}}`

const cancelledBody = `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`

func completedPending() *domain.PendingPayment {
	return &domain.PendingPayment{
		CheckoutRequestID:  "ws_CO_1",
		PhoneNumber:        "254712345678",
		Amount:             3700,
		BookingData:        draft(),
		PaymentStatus:      domain.PendingStatusCompleted,
		ResultCode:         intPtr(0),
		ResultDesc:         strPtr("The service request is processed successfully."),
		MpesaReceiptNumber: strPtr("NLJ7RT61SV"),
	}
}

type callbackFixture struct {
	repo     *MockPendingPaymentRepository
	bookings *MockMaterializer
	cache    *MockCache
	producer *MockProducer
	proc     *CallbackProcessor
}

func newCallbackFixture() *callbackFixture {
	f := &callbackFixture{
		repo:     &MockPendingPaymentRepository{},
		bookings: &MockMaterializer{},
		cache:    &MockCache{},
		producer: &MockProducer{},
	}
	f.cache.On("SetPaymentStatus", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.cache.On("ReleaseInitiationLock", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.proc = NewCallbackProcessor(f.repo, f.bookings, f.cache, f.producer, "notifications", zap.NewNop())
	return f
}

func TestCallbackProcessor_Success(t *testing.T) {
	f := newCallbackFixture()
	pending := completedPending()

	f.repo.On("Resolve", mock.Anything, domain.PaymentResult{
		CheckoutRequestID: "ws_CO_1",
		MerchantRequestID: "m-1",
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		ReceiptNumber:     "NLJ7RT61SV",
	}).Return(pending, nil).Once()
	f.bookings.On("CreateFromPayment", mock.Anything, pending, "NLJ7RT61SV").
		Return(&domain.Booking{ID: "b-1", Status: domain.BookingStatusConfirmed}, nil).Once()

	ack := f.proc.Handle(context.Background(), []byte(successBody))

	assert.Equal(t, mpesa.Accepted, ack)
	f.repo.AssertExpectations(t)
	f.bookings.AssertExpectations(t)
	f.cache.AssertCalled(t, "SetPaymentStatus", mock.Anything, mock.MatchedBy(func(s domain.PaymentStatusSnapshot) bool {
		return s.CheckoutRequestID == "ws_CO_1" && s.Status == domain.PendingStatusCompleted && s.ReceiptNumber == "NLJ7RT61SV"
	}))
	f.cache.AssertCalled(t, "ReleaseInitiationLock", mock.Anything, "254712345678", draft().ItemID)
	f.producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCallbackProcessor_ReplayRematerializesIdempotently(t *testing.T) {
	f := newCallbackFixture()
	pending := completedPending()

	f.repo.On("Resolve", mock.Anything, mock.Anything).Return(pending, domain.ErrAlreadyResolved).Twice()
	f.bookings.On("CreateFromPayment", mock.Anything, pending, "NLJ7RT61SV").
		Return(&domain.Booking{ID: "b-1", Status: domain.BookingStatusConfirmed}, nil).Twice()

	assert.Equal(t, mpesa.Accepted, f.proc.Handle(context.Background(), []byte(successBody)))
	assert.Equal(t, mpesa.Accepted, f.proc.Handle(context.Background(), []byte(successBody)))

	f.bookings.AssertNumberOfCalls(t, "CreateFromPayment", 2)
}

func TestCallbackProcessor_FailedPaymentNotifiesGuest(t *testing.T) {
	f := newCallbackFixture()
	failed := &domain.PendingPayment{
		CheckoutRequestID: "ws_CO_1",
		PhoneNumber:       "254712345678",
		Amount:            3700,
		BookingData:       draft(),
		PaymentStatus:     domain.PendingStatusFailed,
		ResultCode:        intPtr(1032),
		ResultDesc:        strPtr("Request cancelled by user"),
	}
	f.repo.On("Resolve", mock.Anything, mock.MatchedBy(func(r domain.PaymentResult) bool { return r.ResultCode == 1032 })).
		Return(failed, nil).Once()
	f.producer.On("Publish", mock.Anything, "notifications", "ws_CO_1", mock.MatchedBy(func(v interface{}) bool {
		e, ok := v.(kafka.NotificationEvent)
		return ok && e.Type == kafka.NotificationPaymentFailed && e.Email == "amina@example.com" && e.Message == "Request cancelled by user"
	})).Return(nil).Once()

	ack := f.proc.Handle(context.Background(), []byte(cancelledBody))

	assert.Equal(t, mpesa.Accepted, ack)
	f.bookings.AssertNotCalled(t, "CreateFromPayment", mock.Anything, mock.Anything, mock.Anything)
	f.producer.AssertExpectations(t)
}

func TestCallbackProcessor_AlwaysAcknowledges(t *testing.T) {
	testCases := []struct {
		name  string
		body  string
		setup func(f *callbackFixture)
	}{
		{name: "malformed body", body: `{"Body":`},
		{name: "unknown checkout", body: successBody, setup: func(f *callbackFixture) {
			f.repo.On("Resolve", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
		}},
		{name: "database down", body: successBody, setup: func(f *callbackFixture) {
			f.repo.On("Resolve", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
		}},
		{name: "booking insert fails", body: successBody, setup: func(f *callbackFixture) {
			f.repo.On("Resolve", mock.Anything, mock.Anything).Return(completedPending(), nil)
			f.bookings.On("CreateFromPayment", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("serialization failure"))
		}},
		{name: "cache down", body: cancelledBody, setup: func(f *callbackFixture) {
			f.cache = &MockCache{}
			f.cache.On("SetPaymentStatus", mock.Anything, mock.Anything).Return(errors.New("redis down"))
			f.cache.On("ReleaseInitiationLock", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
			f.proc.cache = f.cache
			f.repo.On("Resolve", mock.Anything, mock.Anything).Return(&domain.PendingPayment{
				CheckoutRequestID: "ws_CO_1", PaymentStatus: domain.PendingStatusFailed,
			}, nil)
			f.producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("kafka down"))
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newCallbackFixture()
			if tc.setup != nil {
				tc.setup(f)
			}
			assert.Equal(t, mpesa.Accepted, f.proc.Handle(context.Background(), []byte(tc.body)))
		})
	}
}

func TestCallbackProcessor_ApplyReturnsErrors(t *testing.T) {
	f := newCallbackFixture()
	f.repo.On("Resolve", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)

	err := f.proc.Apply(context.Background(), domain.PaymentResult{CheckoutRequestID: "ws_CO_404"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
