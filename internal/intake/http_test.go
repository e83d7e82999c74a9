package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// fakeDoer records the last request and returns a canned response.
type fakeDoer struct {
	status int
	err    error
	last   *http.Request
	body   []byte
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.last = req
	if req.Body != nil {
		f.body, _ = io.ReadAll(req.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}, nil
}

func testDelivery() Delivery {
	return Delivery{
		ID:         "20260314T092653+0200",
		Asker:      "orchestrator",
		Question:   "Which auth scheme?",
		Answer:     "Both",
		AskedAt:    time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		AnsweredAt: time.Date(2026, 3, 14, 11, 2, 0, 0, time.UTC),
	}
}

func TestHTTPDeliverHeadersAndBody(t *testing.T) {
	doer := &fakeDoer{status: 200}
	secret := []byte("shared-secret")
	h := NewHTTP("http://orch.local/intake", secret, time.Second, testLogger(), WithHTTPClient(doer))

	d := testDelivery()
	if err := h.Deliver(context.Background(), d); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if doer.last.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", doer.last.Method)
	}
	if got := doer.last.Header.Get("Idempotency-Key"); got != d.ID {
		t.Errorf("idempotency key = %q, want question id", got)
	}
	if got := doer.last.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("content type = %q", got)
	}

	var sent Delivery
	if err := json.Unmarshal(doer.body, &sent); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if sent.ID != d.ID || sent.Answer != "Both" {
		t.Errorf("body mismatch: %+v", sent)
	}

	// The bearer token must verify against the shared secret and carry the
	// question id as subject.
	auth := doer.last.Header.Get("Authorization")
	var tokenStr string
	if _, err := fmt.Sscanf(auth, "Bearer %s", &tokenStr); err != nil {
		t.Fatalf("authorization header %q: %v", auth, err)
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims.Subject != d.ID {
		t.Errorf("token subject = %q, want question id", claims.Subject)
	}
	if claims.Issuer != "pigeonhole" {
		t.Errorf("token issuer = %q", claims.Issuer)
	}
}

func TestHTTPDeliverNoSecretSkipsAuth(t *testing.T) {
	doer := &fakeDoer{status: 204}
	h := NewHTTP("http://orch.local/intake", nil, time.Second, testLogger(), WithHTTPClient(doer))

	if err := h.Deliver(context.Background(), testDelivery()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if auth := doer.last.Header.Get("Authorization"); auth != "" {
		t.Errorf("expected no authorization header in dev mode, got %q", auth)
	}
}

func TestHTTPDeliverFailuresAreRetryable(t *testing.T) {
	tests := []struct {
		name string
		doer *fakeDoer
	}{
		{"transport error", &fakeDoer{err: errors.New("connection refused")}},
		{"server error", &fakeDoer{status: 503}},
		{"client error", &fakeDoer{status: 404}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHTTP("http://orch.local/intake", nil, time.Second, testLogger(), WithHTTPClient(tt.doer))
			err := h.Deliver(context.Background(), testDelivery())
			if !errors.Is(err, ErrRetryLater) {
				t.Errorf("expected ErrRetryLater, got %v", err)
			}
		})
	}
}

func TestFuncAdapter(t *testing.T) {
	var got Delivery
	f := Func(func(_ context.Context, d Delivery) error {
		got = d
		return nil
	})
	if err := f.Deliver(context.Background(), testDelivery()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got.ID != "20260314T092653+0200" {
		t.Errorf("delivery not forwarded: %+v", got)
	}
}
