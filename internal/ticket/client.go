// Package ticket implements the ticket-creation collaborator used by alert
// correlation. The client wraps any TicketCreator with a circuit breaker and
// an outbound rate limit so a struggling ticketing system cannot stall or be
// hammered by the pipeline.
package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/surveypulse/surveypulse/internal/domain"
	"golang.org/x/time/rate"
)

// Client decorates a TicketCreator with a circuit breaker and rate limiter.
type Client struct {
	inner   domain.TicketCreator
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewClient(inner domain.TicketCreator, log *slog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:    "ticket-creator",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("ticket creator circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Client{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

var _ domain.TicketCreator = (*Client)(nil)

func (c *Client) CreateTicket(ctx context.Context, alert domain.CTLAlert) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ticket rate limit wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.inner.CreateTicket(ctx, alert)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// HTTPCreator posts alerts to the host's ticketing endpoint. Requests carry
// the alert ID as an idempotency key so out-of-band retries cannot open a
// second ticket for the same alert.
type HTTPCreator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPCreator(endpoint, apiKey string) *HTTPCreator {
	return &HTTPCreator{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type ticketRequest struct {
	AlertID      string  `json:"alert_id"`
	TenantID     string  `json:"tenant_id"`
	FormID       string  `json:"form_id"`
	SubmissionID string  `json:"submission_id"`
	Level        string  `json:"level"`
	Score        float64 `json:"score"`
	Notes        string  `json:"notes"`
}

type ticketResponse struct {
	TicketID string `json:"ticket_id"`
}

func (h *HTTPCreator) CreateTicket(ctx context.Context, alert domain.CTLAlert) (string, error) {
	body, err := json.Marshal(ticketRequest{
		AlertID:      alert.ID.String(),
		TenantID:     alert.TenantID.String(),
		FormID:       alert.FormID.String(),
		SubmissionID: alert.SubmissionID.String(),
		Level:        string(alert.AlertLevel),
		Score:        alert.ScoreValue,
		Notes:        alert.Notes,
	})
	if err != nil {
		return "", fmt.Errorf("marshal ticket request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ticket request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", alert.ID.String())
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ticket request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ticket endpoint returned %d", resp.StatusCode)
	}

	var parsed ticketResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode ticket response: %w", err)
	}
	if parsed.TicketID == "" {
		return "", fmt.Errorf("ticket endpoint returned empty ticket ID")
	}
	return parsed.TicketID, nil
}

// NoopCreator is used when no ticketing endpoint is configured: alerts are
// created without tickets.
type NoopCreator struct{}

func (NoopCreator) CreateTicket(context.Context, domain.CTLAlert) (string, error) {
	return "", nil
}
