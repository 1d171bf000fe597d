package paynull

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"
)

// EventPaymentSucceeded is the only event the sandbox emits.
const EventPaymentSucceeded = "payment.succeeded"

// WebhookEvent is the body POSTed to a merchant webhook.
type WebhookEvent struct {
	Event           string `json:"event"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// Notifier delivers webhook events over HTTP.
type Notifier struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNotifier creates a notifier. caCertPath adds a CA for HTTPS targets
// (empty uses the system pool).
func NewNotifier(timeout time.Duration, caCertPath string, logger *slog.Logger) (*Notifier, error) {
	httpClient := &http.Client{Timeout: timeout}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("load webhook CA certificate: %w", err)
		}
		httpClient.Transport = &http.Transport{TLSClientConfig: tlsConfig}
		logger.Info("Webhook CA certificate added to the trust pool",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Notifier{
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "paynull_webhook")),
	}, nil
}

func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("no PEM certificates in %s", caCertPath)
	}

	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// validateTarget accepts absolute http(s) URLs only.
func validateTarget(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http or https URL", ErrValidation)
	}
	return nil
}

// Notify POSTs ev to target. Any non-2xx answer is an error.
func (n *Notifier) Notify(ctx context.Context, target string, ev WebhookEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook %s answered %d: %s", target, resp.StatusCode, string(snippet))
	}

	n.logger.Debug("Webhook delivered",
		slog.String("url", target),
		slog.String("event", ev.Event),
		slog.String("payment_intent_id", ev.PaymentIntentID),
	)
	return nil
}
