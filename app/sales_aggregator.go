package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"wb-seller-stats/helpers"
	"wb-seller-stats/models"
	"wb-seller-stats/wbapi"
)

var (
	// ErrMissingInput aborts a run that has no tracked articles or no token
	ErrMissingInput = errors.New("missing tracked articles or token")
	// ErrNoProviderData aborts a run whose period query returned nothing
	ErrNoProviderData = errors.New("provider returned no data for the period")
)

// lowStockCoverDays is the days-of-cover threshold below which stock is "low"
const lowStockCoverDays = 7

// FunnelProvider returns per-article funnel metrics for a period
type FunnelProvider interface {
	FunnelProducts(ctx context.Context, token string, ids []int64, period wbapi.Period) ([]wbapi.FunnelProduct, error)
}

// SnapshotStore keeps one stock count per article per day across runs
type SnapshotStore interface {
	Save(ctx context.Context, counts map[int64]int, day time.Time) error
	GetAll(ctx context.Context, day time.Time) (map[int64]int, error)
}

// AggregationResult is the output of one run
type AggregationResult struct {
	GeneratedAt time.Time // run start; Today is its calendar day
	Today       time.Time
	Days        []time.Time // lookback window, oldest first
	Stats       []models.AggregatedStat
}

// SalesAggregator rebuilds per-day sales and stock for tracked articles.
// A run is strictly sequential: the period query, the snapshot write and one
// query per lookback day, in that order.
type SalesAggregator struct {
	provider FunnelProvider
	store    SnapshotStore
	lookback int
	loc      *time.Location
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewSalesAggregator creates an aggregator. loc decides which calendar day
// is "today"; nil means UTC.
func NewSalesAggregator(provider FunnelProvider, store SnapshotStore, lookback int, loc *time.Location, log logrus.FieldLogger) *SalesAggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &SalesAggregator{
		provider: provider,
		store:    store,
		lookback: lookback,
		loc:      loc,
		now:      time.Now,
		log:      log,
	}
}

// SetClock replaces the time source
func (a *SalesAggregator) SetClock(now func() time.Time) {
	a.now = now
}

// Now returns the current time in the aggregator's location
func (a *SalesAggregator) Now() time.Time {
	return a.now().In(a.loc)
}

// Aggregate runs the pipeline for one tenant. It returns ErrMissingInput,
// ErrNoProviderData, an unauthorized error from the provider, or a context
// error; every other failure is logged and degrades to zeros.
func (a *SalesAggregator) Aggregate(ctx context.Context, articles []models.TrackedArticle, token string) (*AggregationResult, error) {
	if len(articles) == 0 || token == "" {
		a.log.WithFields(logrus.Fields{
			"articles":  len(articles),
			"has_token": token != "",
		}).Error("Aggregation aborted: missing input")
		return nil, ErrMissingInput
	}
	if a.lookback <= 0 {
		return nil, fmt.Errorf("%w: lookback must be positive, got %d", ErrMissingInput, a.lookback)
	}

	now := a.Now()
	today := helpers.Day(now)
	days := helpers.LookbackDays(today, a.lookback)
	ids := make([]int64, len(articles))
	for i, art := range articles {
		ids[i] = art.Article
	}

	period := wbapi.Period{Start: days[0], End: days[len(days)-1]}
	products, err := a.provider.FunnelProducts(ctx, token, ids, period)
	if err != nil {
		return nil, fmt.Errorf("period metrics %s..%s: %w", helpers.FormatDay(period.Start), helpers.FormatDay(period.End), err)
	}
	if len(products) == 0 {
		a.log.WithField("period", helpers.FormatDay(period.Start)+".."+helpers.FormatDay(period.End)).
			Error("Provider returned no period metrics, leaving previous output untouched")
		return nil, ErrNoProviderData
	}

	metrics := make(map[int64]models.PeriodMetrics, len(products))
	for _, p := range products {
		if _, seen := metrics[p.Article]; seen {
			continue
		}
		metrics[p.Article] = toPeriodMetrics(p)
	}

	a.saveTodayStock(ctx, articles, metrics, today)

	series, err := a.dailySeries(ctx, token, ids, days)
	if err != nil {
		return nil, err
	}

	stats := make([]models.AggregatedStat, len(articles))
	for i, art := range articles {
		stats[i] = assemble(art, metrics[art.Article], series[art.Article], days)
	}

	return &AggregationResult{GeneratedAt: now, Today: today, Days: days, Stats: stats}, nil
}

// saveTodayStock records today's stock for every tracked article. Articles
// without a valid id are skipped so they cannot fail the whole batch. A
// failure only costs future runs their history, so the run goes on.
func (a *SalesAggregator) saveTodayStock(ctx context.Context, articles []models.TrackedArticle, metrics map[int64]models.PeriodMetrics, today time.Time) {
	counts := make(map[int64]int, len(articles))
	for _, art := range articles {
		if art.Article <= 0 {
			a.log.WithField("article", art.Article).Warn("Skipping stock snapshot of article without a valid id")
			continue
		}
		counts[art.Article] = metrics[art.Article].Stock
	}
	if len(counts) == 0 {
		return
	}
	if err := a.store.Save(ctx, counts, today); err != nil {
		a.log.WithError(err).WithField("day", helpers.FormatDay(today)).Error("Failed to save stock snapshot")
	}
}

// dailySeries queries the provider once per lookback day and joins the
// result with that day's stored stock
func (a *SalesAggregator) dailySeries(ctx context.Context, token string, ids []int64, days []time.Time) (map[int64][]models.DayStat, error) {
	series := make(map[int64][]models.DayStat, len(ids))
	for _, id := range ids {
		series[id] = make([]models.DayStat, len(days))
	}

	for i, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dayLog := a.log.WithField("day", helpers.FormatDay(day))
		products, err := a.provider.FunnelProducts(ctx, token, ids, wbapi.Period{Start: day, End: day})
		if err != nil {
			return nil, fmt.Errorf("daily metrics %s: %w", helpers.FormatDay(day), err)
		}
		sales := make(map[int64]int, len(products))
		for _, p := range products {
			if _, seen := sales[p.Article]; !seen {
				sales[p.Article] = p.OrderCount
			}
		}

		stocks, err := a.store.GetAll(ctx, day)
		if err != nil {
			dayLog.WithError(err).Warn("Failed to read stock snapshot, using zeros")
			stocks = nil
		}

		for _, id := range ids {
			series[id][i] = models.DayStat{Day: day, Sales: sales[id], Stock: stocks[id]}
		}
		dayLog.WithField("articles_with_sales", len(sales)).Debug("Day reconstructed")
	}
	return series, nil
}

func toPeriodMetrics(p wbapi.FunnelProduct) models.PeriodMetrics {
	return models.PeriodMetrics{
		Orders:          p.OrderCount,
		AvgDailyOrders:  p.AvgOrdersPerDay,
		OrderSum:        p.OrderSum,
		DaysUnavailable: p.DeficitDays,
		Stock:           p.Stock(),
	}
}

func assemble(art models.TrackedArticle, m models.PeriodMetrics, days []models.DayStat, window []time.Time) models.AggregatedStat {
	if len(days) != len(window) {
		days = make([]models.DayStat, len(window))
		for i, d := range window {
			days[i] = models.DayStat{Day: d}
		}
	}

	total := 0
	for _, d := range days {
		total += d.Sales
	}
	mean := MeanDailySales(total, len(days))

	return models.AggregatedStat{
		Article:         art.Article,
		SellerArticle:   art.SellerArticle,
		Brand:           art.Brand,
		Category:        art.Category,
		MonthSales:      m.Orders,
		CurrentStock:    m.Stock,
		MeanDailySales:  mean,
		MonthIncome:     m.OrderSum,
		DaysUnavailable: m.DaysUnavailable,
		SaleRate:        SaleRate(m.Orders, m.Stock),
		Availability:    Availability(m.Stock, mean),
		Days:            days,
	}
}

// MeanDailySales is floor(total / max(1, days))
func MeanDailySales(total, days int) int {
	if days < 1 {
		days = 1
	}
	return total / days
}

// SaleRate is the sell-through percentage over the window:
// sold / (sold + left), rounded to 2 decimals
func SaleRate(sold, stock int) float64 {
	if sold+stock <= 0 {
		return 0
	}
	rate := float64(sold) / float64(sold+stock) * 100
	return math.Round(rate*100) / 100
}

// Availability labels stock by how many days of mean sales it covers
func Availability(stock, meanDailySales int) string {
	switch {
	case stock <= 0:
		return models.AvailabilityOut
	case meanDailySales > 0 && stock < meanDailySales*lowStockCoverDays:
		return models.AvailabilityLow
	default:
		return models.AvailabilityIn
	}
}
