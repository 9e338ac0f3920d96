package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/travelbooking/internal/kafka"
	"go.uber.org/zap"
)

// Sender renders notification events into messages. Delivery is a log line
// until an SMTP relay is configured.
type Sender struct {
	from       string
	adminEmail string
	logger     *zap.Logger
}

func NewSender(from, adminEmail string, logger *zap.Logger) *Sender {
	return &Sender{from: from, adminEmail: adminEmail, logger: logger}
}

type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

func (s *Sender) Send(ctx context.Context, event kafka.NotificationEvent) error {
	msg, ok := s.Render(event)
	if !ok {
		s.logger.Warn("notification has no address, dropping",
			zap.String("type", string(event.Type)),
			zap.String("recipient", string(event.Recipient)),
			zap.String("booking_id", event.BookingID),
		)
		return nil
	}

	s.logger.Info("send email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("booking_id", event.BookingID),
	)
	return nil
}

// Render builds the message; ok is false when there is nobody to send to.
func (s *Sender) Render(event kafka.NotificationEvent) (Message, bool) {
	to := event.Email
	if to == "" && event.Recipient == kafka.RecipientAdmin {
		to = s.adminEmail
	}
	if to == "" {
		return Message{}, false
	}

	return Message{
		From:    s.from,
		To:      to,
		Subject: subject(event),
		Body:    event.Message,
	}, true
}

func subject(event kafka.NotificationEvent) string {
	switch event.Type {
	case kafka.NotificationBookingConfirmed:
		return fmt.Sprintf("Your booking for %s is confirmed", event.ItemName)
	case kafka.NotificationNewBooking:
		return fmt.Sprintf("New booking for %s", event.ItemName)
	case kafka.NotificationBookingRejected:
		return fmt.Sprintf("Booking for %s could not be fulfilled", event.ItemName)
	case kafka.NotificationBookingCancelled:
		return fmt.Sprintf("Booking for %s cancelled", event.ItemName)
	case kafka.NotificationPaymentFailed:
		return "Payment was not completed"
	case kafka.NotificationRescheduled:
		return fmt.Sprintf("Booking for %s moved to %s", event.ItemName, event.VisitDate)
	default:
		return "Booking update"
	}
}
