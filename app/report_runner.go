package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"wb-seller-stats/cache"
	"wb-seller-stats/helpers"
	"wb-seller-stats/models"
	"wb-seller-stats/realtime"
	"wb-seller-stats/report"
	"wb-seller-stats/wbapi"
)

// TenantSource is the tracked-article and token source. Lookups of an
// unknown tenant return an error matching tenants.ErrUnknownTenant.
type TenantSource interface {
	Names() []string
	Articles(name string) ([]models.TrackedArticle, error)
	Token(name string) (string, error)
	Sheet(name string) (string, error)
}

// runTarget is a tenant resolved for one run
type runTarget struct {
	name     string
	sheet    string
	token    string
	articles []models.TrackedArticle
}

func resolveTenant(src TenantSource, name string) (runTarget, error) {
	articles, err := src.Articles(name)
	if err != nil {
		return runTarget{}, err
	}
	token, err := src.Token(name)
	if err != nil {
		return runTarget{}, err
	}
	sheet, err := src.Sheet(name)
	if err != nil {
		return runTarget{}, err
	}
	return runTarget{name: name, sheet: sheet, token: token, articles: articles}, nil
}

// EventPublisher receives run lifecycle events
type EventPublisher interface {
	Broadcast(event string, payload interface{})
}

// RunSummary describes a finished run
type RunSummary struct {
	RunID       string
	Tenant      string
	Articles    int
	Attempts    int
	Income      decimal.Decimal
	GeneratedAt time.Time
}

// ReportRunner drives one tenant through aggregation, projection and the sink
type ReportRunner struct {
	tenants    TenantSource
	aggregator *SalesAggregator
	writer     *report.Writer
	reports    *cache.ReportCache
	lock       *cache.RunLock
	events     EventPublisher
	log        logrus.FieldLogger
	wg         sync.WaitGroup
}

// NewReportRunner creates a runner; events may be nil
func NewReportRunner(src TenantSource, aggregator *SalesAggregator, writer *report.Writer, reports *cache.ReportCache, lock *cache.RunLock, events EventPublisher, log logrus.FieldLogger) *ReportRunner {
	return &ReportRunner{
		tenants:    src,
		aggregator: aggregator,
		writer:     writer,
		reports:    reports,
		lock:       lock,
		events:     events,
		log:        log,
	}
}

// Tenants returns the names the runner can report on
func (r *ReportRunner) Tenants() []string {
	return r.tenants.Names()
}

// Run produces and writes the sales report of one tenant
func (r *ReportRunner) Run(ctx context.Context, name string) (*RunSummary, error) {
	t, runID, log, err := r.begin(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.release(name, runID, log)
	return r.execute(ctx, t, runID, log)
}

// Start takes the tenant's run lock and runs it in the background. The
// returned id identifies the run in logs and events.
func (r *ReportRunner) Start(ctx context.Context, name string) (string, error) {
	t, runID, log, err := r.begin(ctx, name)
	if err != nil {
		return "", err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(name, runID, log)
		r.execute(ctx, t, runID, log)
	}()
	return runID, nil
}

// Wait blocks until background runs started with Start have returned
func (r *ReportRunner) Wait() {
	r.wg.Wait()
}

func (r *ReportRunner) begin(ctx context.Context, name string) (runTarget, string, logrus.FieldLogger, error) {
	runID := uuid.NewString()
	log := r.log.WithFields(logrus.Fields{"run_id": runID, "tenant": name})

	t, err := resolveTenant(r.tenants, name)
	if err != nil {
		return t, "", log, err
	}

	acquired, err := r.lock.Acquire(ctx, name, runID)
	if err != nil {
		return t, "", log, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		log.Warn("Previous run still in progress, skipping")
		r.publish(realtime.EventRunSkipped, realtime.RunEvent{RunID: runID, Tenant: name})
		return t, "", log, cache.ErrLocked
	}
	return t, runID, log, nil
}

func (r *ReportRunner) release(name, runID string, log logrus.FieldLogger) {
	if err := r.lock.Release(context.Background(), name, runID); err != nil {
		log.WithError(err).Warn("Failed to release run lock")
	}
}

func (r *ReportRunner) execute(ctx context.Context, t runTarget, runID string, log logrus.FieldLogger) (*RunSummary, error) {
	name := t.name
	started := time.Now()
	log.WithField("articles", len(t.articles)).Info("Sales report run started")
	r.publish(realtime.EventRunStarted, realtime.RunEvent{RunID: runID, Tenant: name, Articles: len(t.articles)})

	res, err := r.aggregator.Aggregate(ctx, t.articles, t.token)
	if err != nil {
		r.fail(log, runID, name, err)
		return nil, err
	}

	// the banner counts days back from the day the window was computed for
	generatedAt := res.GeneratedAt
	table := report.Project(t.articles, res.Stats, res.Days, generatedAt)

	wr := r.writer.Write(ctx, t.sheet, table)
	if !wr.OK() {
		r.fail(log.WithField("attempts", wr.Attempts), runID, name, wr.Err)
		return nil, wr.Err
	}

	cached := cache.CachedReport{
		RunID:       runID,
		Tenant:      name,
		GeneratedAt: generatedAt,
		Attempts:    wr.Attempts,
		Table:       table,
	}
	if err := r.reports.SetLatest(ctx, cached); err != nil {
		log.WithError(err).Warn("Failed to cache latest report")
	}

	income := decimal.Zero
	for _, s := range res.Stats {
		income = income.Add(s.MonthIncome)
	}

	log.WithFields(logrus.Fields{
		"articles": len(res.Stats),
		"attempts": wr.Attempts,
		"income":   helpers.FormatRubles(income),
		"took":     time.Since(started).Round(time.Millisecond),
	}).Info("Sales report written")
	r.publish(realtime.EventRunFinished, realtime.RunEvent{
		RunID:    runID,
		Tenant:   name,
		Articles: len(res.Stats),
		Attempts: wr.Attempts,
	})

	return &RunSummary{
		RunID:       runID,
		Tenant:      name,
		Articles:    len(res.Stats),
		Attempts:    wr.Attempts,
		Income:      income,
		GeneratedAt: generatedAt,
	}, nil
}

// RunAll runs every tenant in name order. A failing tenant does not stop the others.
func (r *ReportRunner) RunAll(ctx context.Context) {
	for _, name := range r.tenants.Names() {
		if ctx.Err() != nil {
			return
		}
		r.Run(ctx, name)
	}
}

// LatestReport returns the last table written for a tenant
func (r *ReportRunner) LatestReport(ctx context.Context, name string) (cache.CachedReport, bool, error) {
	if _, err := r.tenants.Articles(name); err != nil {
		return cache.CachedReport{}, false, err
	}
	return r.reports.GetLatest(ctx, name)
}

func (r *ReportRunner) fail(log logrus.FieldLogger, runID, tenant string, err error) {
	entry := log.WithError(err)
	switch {
	case wbapi.IsUnauthorized(err):
		entry.Error("Provider rejected the token, a fresh token is required")
	case errors.Is(err, ErrNoProviderData), errors.Is(err, ErrMissingInput):
		entry.Error("Run aborted, previous report left untouched")
	default:
		entry.Error("Run failed")
	}
	r.publish(realtime.EventRunFailed, realtime.RunEvent{RunID: runID, Tenant: tenant, Error: err.Error()})
}

func (r *ReportRunner) publish(event string, e realtime.RunEvent) {
	if r.events == nil {
		return
	}
	e.At = time.Now().UTC()
	r.events.Broadcast(event, e)
}
