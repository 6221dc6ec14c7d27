// Package notifier tells customers about their orders by SMS and email.
// Delivery is best effort: failures are logged, never returned to the
// request that triggered them.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/Keoroanthony/shopnow-api/internal/models"
)

const currency = "TND"

type Notifier interface {
	OrderPlaced(ctx context.Context, user *models.User, order *models.Order)
	CreditDecided(ctx context.Context, user *models.User, order *models.Order)
}

type smsSender interface {
	Send(ctx context.Context, to, message string) error
}

type emailSender interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// Service fans a notification out to every configured channel. Either
// sender may be nil.
type Service struct {
	sms   smsSender
	email emailSender
	log   *zap.Logger
}

func New(sms *SMSSender, email *EmailSender, log *zap.Logger) *Service {
	s := &Service{log: log}
	if sms != nil {
		s.sms = sms
	}
	if email != nil {
		s.email = email
	}
	return s
}

func (s *Service) OrderPlaced(ctx context.Context, user *models.User, order *models.Order) {
	total := order.TotalPrice.StringFixed(2)
	s.deliver(ctx, user, order,
		fmt.Sprintf("Your order #%d has been successfully placed! Total: %s %s. Thank you for shopping with us!", order.ID, currency, total),
		fmt.Sprintf("Order #%d Confirmation - Thank You for Your Purchase!", order.ID),
		fmt.Sprintf(`
        <html>
        <body>
            <p>Dear %s,</p>
            <p>Thank you for your order! Your order #%d has been successfully placed.</p>
            <ul>
                <li>Order ID: %d</li>
                <li>Total Amount: %s %s</li>
            </ul>
            <p>We'll send you another email when your order ships.</p>
        </body>
        </html>`, user.Name, order.ID, order.ID, currency, total),
		fmt.Sprintf("Dear %s,\n\nThank you for your order! Your order #%d has been successfully placed.\n\n"+
			"Order ID: %d\nTotal Amount: %s %s\n\nWe'll send you another email when your order ships.",
			user.Name, order.ID, order.ID, currency, total),
	)
}

func (s *Service) CreditDecided(ctx context.Context, user *models.User, order *models.Order) {
	var outcome string
	switch order.CreditStatus {
	case models.CreditApproved:
		outcome = "has been approved"
	case models.CreditRejected:
		outcome = "has been rejected and the order cancelled"
	case models.CreditPaid:
		outcome = "is marked as paid"
	default:
		return
	}
	if order.PaymentDueDate != nil && order.CreditStatus == models.CreditApproved {
		outcome += ", payment is due on " + order.PaymentDueDate.Format(time.DateOnly)
	}

	msg := fmt.Sprintf("The credit for your order #%d %s.", order.ID, outcome)
	s.deliver(ctx, user, order,
		msg,
		fmt.Sprintf("Order #%d - Credit update", order.ID),
		fmt.Sprintf("<html><body><p>Dear %s,</p><p>%s</p></body></html>", user.Name, msg),
		fmt.Sprintf("Dear %s,\n\n%s", user.Name, msg),
	)
}

func (s *Service) deliver(ctx context.Context, user *models.User, order *models.Order, sms, subject, html, text string) {
	if user == nil {
		return
	}
	if s.sms != nil && user.Phone != "" {
		if err := s.sms.Send(ctx, user.Phone, sms); err != nil {
			s.log.Warn("failed to send SMS", zap.Uint("order_id", order.ID), zap.String("to", user.Phone), zap.Error(err))
		}
	}
	if s.email != nil && user.Email != "" {
		if err := s.email.Send(ctx, user.Email, subject, html, text); err != nil {
			s.log.Warn("failed to send email", zap.Uint("order_id", order.ID), zap.String("to", user.Email), zap.Error(err))
		}
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) OrderPlaced(context.Context, *models.User, *models.Order) {}

func (Nop) CreditDecided(context.Context, *models.User, *models.Order) {}

func newBreaker(name string, log *zap.Logger) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}
