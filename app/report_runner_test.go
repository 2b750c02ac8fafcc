package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wb-seller-stats/cache"
	"wb-seller-stats/realtime"
	"wb-seller-stats/report"
	"wb-seller-stats/tenants"
	"wb-seller-stats/wbapi"
)

type recordingSink struct {
	fail    bool
	writes  map[string]report.Table
	targets []string
}

func (s *recordingSink) Write(ctx context.Context, target string, table report.Table) error {
	s.targets = append(s.targets, target)
	if s.fail {
		return errors.New("sheet unavailable")
	}
	if s.writes == nil {
		s.writes = make(map[string]report.Table)
	}
	s.writes[target] = table
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEvents) Broadcast(event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

const runnerTenants = `
tenants:
  - name: shop
    token: secret
    sheet: shop-sales
    articles:
      - article: 100
        seller_article: A1
      - article: 200
        seller_article: B2
  - name: empty
    token: secret
`

type runnerFixture struct {
	runner   *ReportRunner
	sink     *recordingSink
	events   *recordingEvents
	provider *fakeProvider
	lock     *cache.RunLock
}

func newRunnerFixture(t *testing.T, provider *fakeProvider, sinkFails bool) *runnerFixture {
	t.Helper()
	reg, err := tenants.Parse([]byte(runnerTenants))
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{fail: sinkFails}
	writer := report.NewWriter(sink, 2, time.Second, quietLogger())
	writer.SetSleeper(func(ctx context.Context, d time.Duration) error { return nil })
	events := &recordingEvents{}
	lock := cache.NewRunLock(nil, time.Minute)

	agg := newTestAggregator(provider, newMemStore(), 2)
	runner := NewReportRunner(reg, agg, writer, cache.NewReportCache(nil), lock, events, quietLogger())
	return &runnerFixture{runner: runner, sink: sink, events: events, provider: provider, lock: lock}
}

func TestRunWritesReport(t *testing.T) {
	provider := &fakeProvider{period: []wbapi.FunnelProduct{
		{Article: 100, OrderCount: 4, OrderSum: decimal.NewFromInt(1200), StockWB: 8},
	}}
	f := newRunnerFixture(t, provider, false)
	ctx := context.Background()

	sum, err := f.runner.Run(ctx, "shop")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Articles != 2 || sum.Attempts != 1 || !sum.Income.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("summary = %+v", sum)
	}

	table, ok := f.sink.writes["shop-sales"]
	if !ok {
		t.Fatalf("sink targets = %v, want shop-sales", f.sink.targets)
	}
	if len(table.Data()) != 2 || len(table.Rows[0]) != report.Width(2) {
		t.Errorf("table shape = %d data rows, width %d", len(table.Data()), len(table.Rows[0]))
	}

	latest, ok, err := f.runner.LatestReport(ctx, "shop")
	if err != nil || !ok || latest.RunID != sum.RunID {
		t.Errorf("LatestReport() = %+v, %v, %v", latest.RunID, ok, err)
	}

	want := []string{realtime.EventRunStarted, realtime.EventRunFinished}
	if len(f.events.events) != 2 || f.events.events[0] != want[0] || f.events.events[1] != want[1] {
		t.Errorf("events = %v, want %v", f.events.events, want)
	}

	// lock released after the run
	if ok, _ := f.lock.Acquire(ctx, "shop", "next-run"); !ok {
		t.Errorf("run lock still held after Run returned")
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name      string
		tenant    string
		provider  *fakeProvider
		sinkFails bool
		wantErr   error
		wantSink  int
	}{
		{"unknown tenant", "nope", &fakeProvider{}, false, tenants.ErrUnknownTenant, 0},
		{"missing articles", "empty", &fakeProvider{}, false, ErrMissingInput, 0},
		{"no provider data", "shop", &fakeProvider{}, false, ErrNoProviderData, 0},
		{"unauthorized", "shop", &fakeProvider{err: &wbapi.StatusError{Status: 401}}, false, wbapi.ErrUnauthorized, 0},
		{"sink exhausted", "shop", &fakeProvider{period: []wbapi.FunnelProduct{{Article: 100}}}, true, nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunnerFixture(t, tt.provider, tt.sinkFails)
			_, err := f.runner.Run(context.Background(), tt.tenant)
			if err == nil {
				t.Fatalf("Run() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if len(f.sink.targets) != tt.wantSink {
				t.Errorf("sink calls = %d, want %d", len(f.sink.targets), tt.wantSink)
			}
			if _, ok, _ := f.runner.LatestReport(context.Background(), "shop"); ok {
				t.Errorf("failed run must not replace the latest report")
			}
		})
	}
}

func TestRunSkipsWhenLocked(t *testing.T) {
	f := newRunnerFixture(t, &fakeProvider{period: []wbapi.FunnelProduct{{Article: 100}}}, false)
	ctx := context.Background()
	f.lock.Acquire(ctx, "shop", "other-run")

	if _, err := f.runner.Run(ctx, "shop"); !errors.Is(err, cache.ErrLocked) {
		t.Errorf("Run() error = %v, want cache.ErrLocked", err)
	}
	if len(f.provider.calls) != 0 {
		t.Errorf("provider called %d times while locked", len(f.provider.calls))
	}
	if len(f.events.events) != 1 || f.events.events[0] != realtime.EventRunSkipped {
		t.Errorf("events = %v", f.events.events)
	}
}

func TestStartRunsInBackground(t *testing.T) {
	provider := &fakeProvider{period: []wbapi.FunnelProduct{{Article: 100, OrderCount: 1}}}
	f := newRunnerFixture(t, provider, false)
	ctx := context.Background()

	runID, err := f.runner.Start(ctx, "shop")
	if err != nil || runID == "" {
		t.Fatalf("Start() = %q, %v", runID, err)
	}
	f.runner.Wait()

	latest, ok, _ := f.runner.LatestReport(ctx, "shop")
	if !ok || latest.RunID != runID {
		t.Errorf("LatestReport() run = %q, want %q", latest.RunID, runID)
	}
	if _, err := f.runner.Start(ctx, "nope"); !errors.Is(err, tenants.ErrUnknownTenant) {
		t.Errorf("Start(nope) error = %v", err)
	}
}

func TestRunBannerUsesRunStartDay(t *testing.T) {
	provider := &fakeProvider{period: []wbapi.FunnelProduct{{Article: 100, OrderCount: 2}}}
	f := newRunnerFixture(t, provider, false)

	// every clock read moves an hour forward, so the run crosses midnight
	clock := time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)
	f.runner.aggregator.SetClock(func() time.Time {
		now := clock
		clock = clock.Add(time.Hour)
		return now
	})

	sum, err := f.runner.Run(context.Background(), "shop")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !sum.GeneratedAt.Equal(time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)) {
		t.Errorf("GeneratedAt = %s, want the run start", sum.GeneratedAt)
	}

	table := f.sink.writes["shop-sales"]
	if table.Rows[0][0] != "Updated 2026-10-18 23:59" {
		t.Errorf("caption = %v", table.Rows[0][0])
	}
	banner := table.Rows[1]
	if banner[report.Width(2)-4] != "2 days ago" || banner[report.Width(2)-2] != "1 day ago" {
		t.Errorf("banner = %v", banner[report.Width(0):])
	}
}
