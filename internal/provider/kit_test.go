package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestGateway(t *testing.T, baseURL string, opts KitOptions) *KitGateway {
	t.Helper()

	opts.BaseURL = baseURL
	if opts.APIKey == "" {
		opts.APIKey = "key-1"
	}
	if opts.FormID == "" {
		opts.FormID = "form-9"
	}

	g, err := NewKitGateway(opts, zap.NewNop())
	if err != nil {
		t.Fatalf("NewKitGateway() error = %v", err)
	}
	return g
}

func TestKitGatewaySubscribeSuccess(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody kitSubscribeRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subscription":{"id":1,"subscriber":{"id":42}}}`))
	}))
	defer server.Close()

	g := newTestGateway(t, server.URL, KitOptions{TagID: "tag-3"})

	id, err := g.Subscribe(context.Background(), SubscribeRequest{
		Email:    "a@example.com",
		Token:    "tok-123",
		WidgetID: "theme-1",
	})
	if err != nil {
		t.Fatalf("Subscribe() unexpected error: %v", err)
	}
	if id == nil || *id != "42" {
		t.Fatalf("subscriber id = %v, want 42", id)
	}

	if gotPath != "/forms/form-9/subscribe" {
		t.Fatalf("path = %q, want /forms/form-9/subscribe", gotPath)
	}
	if gotBody.APIKey != "key-1" || gotBody.Email != "a@example.com" {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
	if len(gotBody.Tags) != 1 || gotBody.Tags[0] != "tag-3" {
		t.Fatalf("tags = %v, want [tag-3]", gotBody.Tags)
	}
	if gotBody.Fields["widget_claim_token"] != "tok-123" {
		t.Fatalf("token field = %q, want tok-123", gotBody.Fields["widget_claim_token"])
	}
	if gotBody.Fields["widget_id"] != "theme-1" {
		t.Fatalf("widget field = %q, want theme-1", gotBody.Fields["widget_id"])
	}
}

func TestKitGatewaySubscriberIDShapes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		body string
		want *string
	}{
		{name: "numeric id", body: `{"subscription":{"subscriber":{"id":1234567}}}`, want: strPtr("1234567")},
		{name: "string id", body: `{"subscription":{"subscriber":{"id":"abc-1"}}}`, want: strPtr("abc-1")},
		{name: "null id", body: `{"subscription":{"subscriber":{"id":null}}}`, want: nil},
		{name: "missing subscription", body: `{}`, want: nil},
		{name: "empty body", body: ``, want: nil},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			g := newTestGateway(t, server.URL, KitOptions{})
			got, err := g.Subscribe(context.Background(), SubscribeRequest{Email: "a@example.com", Token: "t", WidgetID: "w"})
			if err != nil {
				t.Fatalf("Subscribe() error = %v", err)
			}
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("subscriber id = %q, want nil", *got)
			case tc.want != nil && (got == nil || *got != *tc.want):
				t.Fatalf("subscriber id = %v, want %q", got, *tc.want)
			}
		})
	}
}

func TestKitGatewaySubscribeNon2xx(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		statusCode int
	}{
		{name: "unauthorized", statusCode: http.StatusUnauthorized},
		{name: "unprocessable", statusCode: http.StatusUnprocessableEntity},
		{name: "server error", statusCode: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte(`{"error":"Authorization Failed"}`))
			}))
			defer server.Close()

			g := newTestGateway(t, server.URL, KitOptions{})
			_, err := g.Subscribe(context.Background(), SubscribeRequest{Email: "a@example.com", Token: "t", WidgetID: "w"})
			if err == nil {
				t.Fatal("expected error")
			}

			var gatewayErr *GatewayError
			if !errors.As(err, &gatewayErr) {
				t.Fatalf("expected GatewayError, got %T", err)
			}
			if gatewayErr.StatusCode != tc.statusCode {
				t.Fatalf("StatusCode = %d, want %d", gatewayErr.StatusCode, tc.statusCode)
			}
			if gatewayErr.Body != `{"error":"Authorization Failed"}` {
				t.Fatalf("Body = %q", gatewayErr.Body)
			}
			if got := calls.Load(); got != 1 {
				t.Fatalf("calls = %d, want exactly one attempt", got)
			}
		})
	}
}

func TestKitGatewayTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	g := newTestGateway(t, server.URL, KitOptions{Timeout: 30 * time.Millisecond})

	_, err := g.Subscribe(context.Background(), SubscribeRequest{Email: "a@example.com", Token: "t", WidgetID: "w"})
	if err == nil {
		t.Fatal("expected timeout error")
	}

	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %T", err)
	}
	if gatewayErr.StatusCode != 0 || gatewayErr.Cause == nil {
		t.Fatalf("unexpected GatewayError: %+v", gatewayErr)
	}
}

func TestKitGatewayUnconfiguredIsNoop(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	core, recorded := observer.New(zapcore.WarnLevel)
	g, err := NewKitGateway(KitOptions{BaseURL: server.URL, FormID: "form-9"}, zap.New(core))
	if err != nil {
		t.Fatalf("NewKitGateway() error = %v", err)
	}
	if g.Configured() {
		t.Fatal("gateway without api key should not be configured")
	}

	id, err := g.Subscribe(context.Background(), SubscribeRequest{Email: "a@example.com", Token: "t", WidgetID: "w"})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if id != nil {
		t.Fatalf("subscriber id = %q, want nil", *id)
	}
	if calls.Load() != 0 {
		t.Fatal("unconfigured gateway must not call the provider")
	}
	if recorded.FilterMessage("kit credentials missing, skipping subscription").Len() != 1 {
		t.Fatal("expected a degraded-mode warning")
	}
}

func TestGatewayErrorMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := &GatewayError{StatusCode: 503, Body: "down", Cause: cause}
	if got, want := err.Error(), "gateway error: status=503: down: connection refused"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Fatal("GatewayError should unwrap to its cause")
	}
}

func strPtr(s string) *string {
	return &s
}
