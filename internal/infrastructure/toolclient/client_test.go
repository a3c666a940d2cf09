package toolclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/techmannih/helper-sub007/internal/domain/tool"
	"github.com/techmannih/helper-sub007/internal/infrastructure/toolclient"
)

func newTestClient() *toolclient.Client {
	return toolclient.NewClient(2*time.Second, toolclient.CircuitBreakerConfig{Enabled: false}, zerolog.Nop())
}

func TestExecute_GetSendsQueryParams(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("order_id")
		w.Write([]byte(`{"status":"shipped"}`))
	}))
	defer server.Close()

	c := newTestClient()
	result, err := c.Execute(context.Background(), tool.Tool{
		Slug:   "order-status",
		Method: "GET",
		URL:    server.URL,
	}, map[string]tool.Value{"order_id": tool.StringValue("42")})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got %q", result.Body)
	}
	if gotQuery != "42" {
		t.Errorf("order_id query param = %q, want %q", gotQuery, "42")
	}
}

func TestExecute_NonSuccessStatusIsFailedResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such order", http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient()
	result, err := c.Execute(context.Background(), tool.Tool{
		Slug:   "order-status",
		Method: "GET",
		URL:    server.URL,
	}, nil)

	if err != nil {
		t.Fatalf("non-2xx must be a result, not an error: %v", err)
	}
	if result.Success {
		t.Error("expected failed result")
	}
}

func TestExecute_SurvivesAbandonedRequestContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("done"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient()
	result, err := c.Execute(ctx, tool.Tool{
		Slug:   "refund",
		Method: "POST",
		URL:    server.URL,
	}, map[string]tool.Value{"amount": tool.NumberValue(10)})

	if err != nil {
		t.Fatalf("dispatched call must run to completion after cancellation: %v", err)
	}
	if !result.Success || result.Body != "done" {
		t.Errorf("result = %+v, want completed success", result)
	}
}
