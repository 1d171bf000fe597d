package paynull

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	intentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pn_payment_intents_total",
			Help: "Payment intents entering each status.",
		},
		[]string{"status"},
	)
	webhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pn_webhook_deliveries_total",
			Help: "Webhook test deliveries by result.",
		},
		[]string{"result"},
	)
)

// checkoutPath is the hosted checkout page of the sandbox UI.
const checkoutPath = "/paynull/checkout?pi="

// currencyCode matches an upper-cased ISO 4217 alphabetic code.
var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Service implements the intent lifecycle.
type Service struct {
	store    Store
	notifier *Notifier
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates the service.
func NewService(store Store, notifier *Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "paynull")),
	}
}

// CreateIntent stores a new intent awaiting confirmation.
func (s *Service) CreateIntent(ctx context.Context, amount int64, currency string) (*PaymentIntent, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !currencyCode.MatchString(currency) {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
	}

	id, err := NewIntentID()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	pi := &PaymentIntent{
		ID:        id,
		Amount:    amount,
		Currency:  currency,
		Status:    StatusRequiresConfirmation,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, pi); err != nil {
		return nil, err
	}

	intentsTotal.WithLabelValues(string(StatusRequiresConfirmation)).Inc()
	s.logger.Info("Payment intent created",
		slog.String("payment_intent_id", pi.ID),
		slog.Int64("amount", pi.Amount),
		slog.String("currency", pi.Currency),
	)
	return pi, nil
}

// Confirm marks the intent succeeded. Confirming twice is idempotent.
func (s *Service) Confirm(ctx context.Context, id string) (*PaymentIntent, error) {
	return s.move(ctx, id, StatusSucceeded)
}

// Cancel marks the intent canceled. Canceling twice is idempotent.
func (s *Service) Cancel(ctx context.Context, id string) (*PaymentIntent, error) {
	return s.move(ctx, id, StatusCanceled)
}

func (s *Service) move(ctx context.Context, id string, target Status) (*PaymentIntent, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: paymentIntentId is required", ErrValidation)
	}

	changed := false
	pi, err := s.store.Update(ctx, id, func(pi *PaymentIntent) error {
		before := pi.Status
		if err := pi.transition(target, s.now().UTC()); err != nil {
			return err
		}
		changed = before != pi.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		intentsTotal.WithLabelValues(string(target)).Inc()
		s.logger.Info("Payment intent updated",
			slog.String("payment_intent_id", id),
			slog.String("status", string(target)),
		)
	}
	return pi, nil
}

// Get returns one intent.
func (s *Service) Get(ctx context.Context, id string) (*PaymentIntent, error) {
	return s.store.Get(ctx, id)
}

// List returns all live intents, newest first.
func (s *Service) List(ctx context.Context) ([]*PaymentIntent, error) {
	return s.store.List(ctx)
}

// SessionURL returns the checkout page for an existing intent.
func (s *Service) SessionURL(ctx context.Context, id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: paymentIntentId is required", ErrValidation)
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return "", err
	}
	return checkoutPath + id, nil
}

// SendTestWebhook POSTs a payment.succeeded event for id to target.
// The intent itself is not required to exist, so merchants can test
// their endpoint before creating any payment.
func (s *Service) SendTestWebhook(ctx context.Context, target, id string) error {
	if err := validateTarget(target); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: paymentIntentId is required", ErrValidation)
	}

	err := s.notifier.Notify(ctx, target, WebhookEvent{Event: EventPaymentSucceeded, PaymentIntentID: id})
	if err != nil {
		webhookDeliveriesTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Webhook test delivery failed",
			slog.String("url", target),
			slog.String("error", err.Error()),
		)
		return err
	}
	webhookDeliveriesTotal.WithLabelValues("delivered").Inc()
	return nil
}
