// Package notifications delivers run lifecycle events to outbound webhooks.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"wb-seller-stats/helpers"
	"wb-seller-stats/realtime"
)

// Webhook is one outbound endpoint
type Webhook struct {
	URL        string
	Events     []string // empty means every event
	AuthHeader string
	AuthValue  string
	RetryCount int
	RetryDelay time.Duration
}

// WebhookPayload represents the JSON payload sent to webhooks
type WebhookPayload struct {
	Event    string    `json:"event"`
	RunID    string    `json:"run_id"`
	Tenant   string    `json:"tenant"`
	At       time.Time `json:"at"`
	Articles int       `json:"articles,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
	Error    string    `json:"error,omitempty"`
	Message  string    `json:"message"`
}

// WebhookManager handles webhook notifications
type WebhookManager struct {
	hooks  []Webhook
	client *resty.Client
	sleep  func(ctx context.Context, d time.Duration) error
	wg     sync.WaitGroup
	log    logrus.FieldLogger
}

// NewWebhookManager creates a new webhook manager
func NewWebhookManager(hooks []Webhook, log logrus.FieldLogger) *WebhookManager {
	return &WebhookManager{
		hooks: hooks,
		client: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "wb-seller-stats/1.0"),
		sleep: helpers.SleepContext,
		log:   log,
	}
}

// ParseWebhooks builds webhooks from a comma-separated URL list sharing the
// same event filter and auth header
func ParseWebhooks(urls, events, authHeader, authValue string, retries int, delay time.Duration) []Webhook {
	var filter []string
	for _, e := range strings.Split(events, ",") {
		if e = strings.TrimSpace(e); e != "" {
			filter = append(filter, e)
		}
	}

	var hooks []Webhook
	for _, u := range strings.Split(urls, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		hooks = append(hooks, Webhook{
			URL:        u,
			Events:     filter,
			AuthHeader: authHeader,
			AuthValue:  authValue,
			RetryCount: retries,
			RetryDelay: delay,
		})
	}
	return hooks
}

// Broadcast sends a run event to every matching webhook in the background.
// Payloads that are not run events are ignored.
func (wm *WebhookManager) Broadcast(event string, payload interface{}) {
	e, ok := payload.(realtime.RunEvent)
	if !ok || len(wm.hooks) == 0 {
		return
	}

	body := wm.CreatePayload(event, e)
	for _, hook := range wm.hooks {
		if !shouldSend(hook, event) {
			continue
		}
		wm.wg.Add(1)
		go func(h Webhook) {
			defer wm.wg.Done()
			wm.deliverWebhook(context.Background(), h, body)
		}(hook)
	}
}

// Wait blocks until in-flight deliveries are done
func (wm *WebhookManager) Wait() {
	wm.wg.Wait()
}

// CreatePayload generates the webhook payload from a run event
func (wm *WebhookManager) CreatePayload(event string, e realtime.RunEvent) WebhookPayload {
	var message string
	switch event {
	case realtime.EventRunFinished:
		message = fmt.Sprintf("Sales report for %s written: %d articles (sink attempt %d)", e.Tenant, e.Articles, e.Attempts)
	case realtime.EventRunFailed:
		message = fmt.Sprintf("Sales report for %s failed: %s", e.Tenant, e.Error)
	case realtime.EventRunSkipped:
		message = fmt.Sprintf("Sales report for %s skipped: previous run still in progress", e.Tenant)
	default:
		message = fmt.Sprintf("Sales report for %s: %s", e.Tenant, event)
	}

	return WebhookPayload{
		Event:    event,
		RunID:    e.RunID,
		Tenant:   e.Tenant,
		At:       e.At,
		Articles: e.Articles,
		Attempts: e.Attempts,
		Error:    e.Error,
		Message:  message,
	}
}

func shouldSend(hook Webhook, event string) bool {
	if len(hook.Events) == 0 {
		return true
	}
	for _, e := range hook.Events {
		if e == event {
			return true
		}
	}
	return false
}

func (wm *WebhookManager) deliverWebhook(ctx context.Context, hook Webhook, payload WebhookPayload) error {
	maxRetries := hook.RetryCount
	if maxRetries <= 0 {
		maxRetries = 1
	}
	log := wm.log.WithFields(logrus.Fields{"url": hook.URL, "event": payload.Event, "run_id": payload.RunID})

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		req := wm.client.R().SetContext(ctx).SetBody(payload)
		if hook.AuthHeader != "" && hook.AuthValue != "" {
			req.SetHeader(hook.AuthHeader, hook.AuthValue)
		}

		resp, err := req.Post(hook.URL)
		switch {
		case err != nil:
			lastErr = err
		case resp.IsSuccess():
			log.WithField("attempt", attempt).Debug("Webhook delivered")
			return nil
		default:
			lastErr = fmt.Errorf("status %d", resp.StatusCode())
		}
		log.WithField("attempt", attempt).WithError(lastErr).Warn("Webhook delivery failed")

		// Wait before retry
		if attempt < maxRetries {
			if err := wm.sleep(ctx, hook.RetryDelay); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("webhook %s: %w", hook.URL, lastErr)
}
