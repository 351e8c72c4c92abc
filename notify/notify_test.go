package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dazedpro/claude-cli-proxy/types"
)

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with empty URL should error")
	}
}

func TestNew_RejectsNegativeRetries(t *testing.T) {
	if _, err := New(Config{URL: "http://example.com", Retries: -1}); err == nil {
		t.Error("New() with negative retries should error")
	}
}

func TestNotify_SkipsSuccessOutcomes(t *testing.T) {
	var called atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer srv.Close()

	a, err := New(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	err = a.Notify(context.Background(), "r1", types.Request{}, types.Response{Kind: types.KindSuccess}, 10)
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if called.Load() {
		t.Error("Notify() should not POST for a success outcome")
	}
}

func TestNotify_PublishesNonSuccessEvent(t *testing.T) {
	var gotEvent Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotEvent)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := New(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	err = a.Notify(context.Background(), "r2", types.Request{Model: "sonnet"}, types.Response{Kind: types.KindExecTimeout, Error: "timed out"}, 5000)
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if gotEvent.ReqID != "r2" || gotEvent.Kind != string(types.KindExecTimeout) || gotEvent.Model != "sonnet" {
		t.Errorf("event = %+v, unexpected fields", gotEvent)
	}
}

func TestPublish_NonRetriableOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	a, err := New(Config{URL: srv.URL, Retries: 3})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	err = a.Notify(context.Background(), "r3", types.Request{}, types.Response{Kind: types.KindProcessFailed}, 0)
	if err == nil {
		t.Fatal("Notify() should return an error for a 400 response")
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1 (4xx is non-retriable)", attempts.Load())
	}
}

func TestPublish_RetriesOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := New(Config{URL: srv.URL, Retries: 3})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	start := time.Now()
	err = a.Notify(context.Background(), "r4", types.Request{}, types.Response{Kind: types.KindProcessFailed}, 0)
	if err != nil {
		t.Fatalf("Notify() error = %v, want success on 3rd attempt", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
	if time.Since(start) < 500*time.Millisecond {
		t.Error("Notify() should have backed off between retries")
	}
}

func TestPublish_FailsAfterExhaustingRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a, err := New(Config{URL: srv.URL, Retries: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	err = a.Notify(context.Background(), "r5", types.Request{}, types.Response{Kind: types.KindProcessFailed}, 0)
	if err == nil {
		t.Fatal("Notify() should error after exhausting retries")
	}
}
