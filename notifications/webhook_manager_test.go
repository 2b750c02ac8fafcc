package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"wb-seller-stats/realtime"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestParseWebhooks(t *testing.T) {
	hooks := ParseWebhooks(" https://a.example/hook, ,https://b.example ", "run.failed, run.finished", "X-Token", "s", 3, time.Second)
	if len(hooks) != 2 {
		t.Fatalf("hooks = %d, want 2", len(hooks))
	}
	if hooks[0].URL != "https://a.example/hook" || len(hooks[1].Events) != 2 || hooks[1].Events[1] != "run.finished" {
		t.Errorf("hooks = %+v", hooks)
	}
	if len(ParseWebhooks("", "", "", "", 0, 0)) != 0 {
		t.Errorf("empty URL list should give no hooks")
	}
}

func TestBroadcastDeliversMatchingEvents(t *testing.T) {
	var mu sync.Mutex
	var got []WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "secret" {
			t.Errorf("auth header = %q", r.Header.Get("X-Token"))
		}
		var p WebhookPayload
		json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	}))
	defer srv.Close()

	wm := NewWebhookManager(ParseWebhooks(srv.URL, "run.finished", "X-Token", "secret", 1, 0), quietLogger())
	wm.Broadcast(realtime.EventRunStarted, realtime.RunEvent{RunID: "r1", Tenant: "shop"})
	wm.Broadcast(realtime.EventRunFinished, realtime.RunEvent{RunID: "r1", Tenant: "shop", Articles: 4, Attempts: 1})
	wm.Broadcast(realtime.EventRunFinished, "not a run event")
	wm.Wait()

	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	if got[0].RunID != "r1" || got[0].Articles != 4 || got[0].Message != "Sales report for shop written: 4 articles (sink attempt 1)" {
		t.Errorf("payload = %+v", got[0])
	}
}

func TestDeliverRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	wm := NewWebhookManager(nil, quietLogger())
	waits := 0
	wm.sleep = func(ctx context.Context, d time.Duration) error {
		waits++
		return nil
	}

	hook := Webhook{URL: srv.URL, RetryCount: 3, RetryDelay: time.Second}
	if err := wm.deliverWebhook(context.Background(), hook, WebhookPayload{Event: "run.failed"}); err != nil {
		t.Fatalf("deliverWebhook() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 || waits != 2 {
		t.Errorf("calls = %d waits = %d, want 3 and 2", got, waits)
	}

	hook.RetryCount = 2
	atomic.StoreInt32(&calls, -10)
	if err := wm.deliverWebhook(context.Background(), hook, WebhookPayload{}); err == nil {
		t.Errorf("deliverWebhook() should fail after exhausting retries")
	}
}
