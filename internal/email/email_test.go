package email

import (
	"context"
	"testing"

	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSender_Render(t *testing.T) {
	sender := NewSender("bookings@example.com", "ops@example.com", zap.NewNop())

	msg, ok := sender.Render(kafka.NotificationEvent{
		Type:      kafka.NotificationRescheduled,
		Recipient: kafka.RecipientGuest,
		Email:     "guest@example.com",
		ItemName:  "Hell's Gate",
		VisitDate: "2026-11-02",
		Message:   "moved",
	})
	assert.True(t, ok)
	assert.Equal(t, "guest@example.com", msg.To)
	assert.Equal(t, "Booking for Hell's Gate moved to 2026-11-02", msg.Subject)

	admin, ok := sender.Render(kafka.NotificationEvent{Type: kafka.NotificationBookingRejected, Recipient: kafka.RecipientAdmin})
	assert.True(t, ok)
	assert.Equal(t, "ops@example.com", admin.To)

	_, ok = sender.Render(kafka.NotificationEvent{Type: kafka.NotificationNewBooking, Recipient: kafka.RecipientHost})
	assert.False(t, ok)
}

func TestSender_SendWithoutAddressIsNotAnError(t *testing.T) {
	sender := NewSender("bookings@example.com", "", zap.NewNop())
	assert.NoError(t, sender.Send(context.Background(), kafka.NotificationEvent{Recipient: kafka.RecipientHost}))
}
