package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Doer is the part of http.Client the intake needs; tests inject a fake.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPIntake POSTs each delivery as JSON to the orchestrator's intake URL.
// Requests carry an HS256 bearer token minted from a shared secret and an
// Idempotency-Key header equal to the question id.
type HTTPIntake struct {
	url    string
	secret []byte
	client Doer
	logger *slog.Logger
	now    func() time.Time
}

// HTTPOption configures an HTTPIntake.
type HTTPOption func(*HTTPIntake)

// WithHTTPClient injects the HTTP client used for delivery.
func WithHTTPClient(c Doer) HTTPOption {
	return func(h *HTTPIntake) { h.client = c }
}

// WithHTTPClock injects the clock used for token timestamps.
func WithHTTPClock(now func() time.Time) HTTPOption {
	return func(h *HTTPIntake) { h.now = now }
}

// NewHTTP creates an HTTP intake adapter. A nil or empty secret disables
// the Authorization header (dev mode).
func NewHTTP(url string, secret []byte, timeout time.Duration, logger *slog.Logger, opts ...HTTPOption) *HTTPIntake {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	h := &HTTPIntake{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "intake", "kind", "http"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// tokenTTL bounds how long a minted delivery token stays valid. Tokens are
// minted per request, so the window only needs to cover one HTTP exchange.
const tokenTTL = time.Minute

func (h *HTTPIntake) mintToken(id string) (string, error) {
	now := h.now()
	claims := jwt.RegisteredClaims{
		Issuer:    "pigeonhole",
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}

// Deliver posts the pair to the orchestrator. Any transport error or
// non-2xx status is retryable; the question stays resolved and the
// dispatcher calls again next tick.
func (h *HTTPIntake) Deliver(ctx context.Context, d Delivery) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", d.ID)

	if len(h.secret) > 0 {
		token, err := h.mintToken(d.ID)
		if err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRetryLater, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: orchestrator returned %d", ErrRetryLater, resp.StatusCode)
	}

	h.logger.Debug("pair delivered", "id", d.ID, "status", resp.StatusCode)
	return nil
}
