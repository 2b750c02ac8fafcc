package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"wb-seller-stats/helpers"
	"wb-seller-stats/models"
	"wb-seller-stats/wbapi"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeProvider answers the first call with period and later ones from daily
type fakeProvider struct {
	period []wbapi.FunnelProduct
	daily  map[string][]wbapi.FunnelProduct
	err    error
	calls  []wbapi.Period
}

func (p *fakeProvider) FunnelProducts(ctx context.Context, token string, ids []int64, period wbapi.Period) ([]wbapi.FunnelProduct, error) {
	p.calls = append(p.calls, period)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.calls) == 1 {
		return p.period, nil
	}
	return p.daily[helpers.FormatDay(period.Start)], nil
}

type memStore struct {
	rows    map[string]map[int64]int
	saveErr error
	saves   int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]map[int64]int)}
}

func (s *memStore) Save(ctx context.Context, counts map[int64]int, day time.Time) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	key := helpers.FormatDay(day)
	if s.rows[key] == nil {
		s.rows[key] = make(map[int64]int)
	}
	for a, c := range counts {
		s.rows[key][a] = c
	}
	return nil
}

func (s *memStore) GetAll(ctx context.Context, day time.Time) (map[int64]int, error) {
	out := make(map[int64]int)
	for a, c := range s.rows[helpers.FormatDay(day)] {
		out[a] = c
	}
	return out, nil
}

var runTime = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func newTestAggregator(p FunnelProvider, s SnapshotStore, lookback int) *SalesAggregator {
	a := NewSalesAggregator(p, s, lookback, time.UTC, quietLogger())
	a.SetClock(func() time.Time { return runTime })
	return a
}

func TestAggregateScenario(t *testing.T) {
	days := helpers.LookbackDays(runTime, 3)
	provider := &fakeProvider{
		period: []wbapi.FunnelProduct{{
			Article: 100, OrderCount: 9, AvgOrdersPerDay: 3.0,
			OrderSum: decimal.NewFromInt(900), StockWB: 4, StockMP: 1,
		}},
		daily: map[string][]wbapi.FunnelProduct{
			helpers.FormatDay(days[0]): {{Article: 100, OrderCount: 3}},
			helpers.FormatDay(days[1]): {{Article: 100, OrderCount: 3}},
			helpers.FormatDay(days[2]): {{Article: 100, OrderCount: 3}},
		},
	}
	store := newMemStore()
	store.Save(context.Background(), map[int64]int{100: 5}, days[0])

	articles := []models.TrackedArticle{{Article: 100, SellerArticle: "A1", Brand: "Acme", Category: "Toys"}}
	res, err := newTestAggregator(provider, store, 3).Aggregate(context.Background(), articles, "token")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if len(res.Stats) != 1 {
		t.Fatalf("stats = %d, want 1", len(res.Stats))
	}
	got := res.Stats[0]
	if got.MonthSales != 9 || got.MeanDailySales != 3 {
		t.Errorf("month_sales = %d mean = %d, want 9 and 3", got.MonthSales, got.MeanDailySales)
	}
	if !got.MonthIncome.Equal(decimal.NewFromInt(900)) {
		t.Errorf("income = %s, want 900", got.MonthIncome)
	}
	if got.SellerArticle != "A1" || got.Brand != "Acme" || got.Category != "Toys" {
		t.Errorf("identity = %+v", got)
	}

	want := [][2]int{{3, 5}, {3, 0}, {3, 0}}
	for i, d := range got.Days {
		if d.Sales != want[i][0] || d.Stock != want[i][1] {
			t.Errorf("day %d = (%d,%d), want (%d,%d)", i, d.Sales, d.Stock, want[i][0], want[i][1])
		}
		if !d.Day.Equal(days[i]) {
			t.Errorf("day %d date = %s, want %s", i, d.Day, days[i])
		}
	}

	// today's stock is stored for the next runs
	if store.rows["2026-10-18"][100] != 5 {
		t.Errorf("today's snapshot = %v, want 100:5", store.rows["2026-10-18"])
	}

	// one period query, then one per day oldest first
	if len(provider.calls) != 4 {
		t.Fatalf("provider calls = %d, want 4", len(provider.calls))
	}
	if !provider.calls[0].Start.Equal(days[0]) || !provider.calls[0].End.Equal(days[2]) {
		t.Errorf("period call = %+v", provider.calls[0])
	}
	if !provider.calls[1].Start.Equal(days[0]) || !provider.calls[3].Start.Equal(days[2]) {
		t.Errorf("daily calls out of order: %+v", provider.calls[1:])
	}
}

func TestAggregateCompletenessAndSeriesLength(t *testing.T) {
	articles := make([]models.TrackedArticle, 5)
	for i := range articles {
		articles[i] = models.TrackedArticle{Article: int64(5 - i), SellerArticle: fmt.Sprintf("S%d", 5-i)}
	}

	for _, lookback := range []int{1, 7, 10} {
		t.Run(fmt.Sprintf("lookback %d", lookback), func(t *testing.T) {
			// the fake answers its first call with period data, so each run needs its own
			provider := &fakeProvider{
				period: []wbapi.FunnelProduct{
					{Article: 2, OrderCount: 4, StockWB: 10},
					{Article: 999, OrderCount: 50},
				},
			}
			res, err := newTestAggregator(provider, newMemStore(), lookback).Aggregate(context.Background(), articles, "t")
			if err != nil {
				t.Fatalf("Aggregate() error = %v", err)
			}
			if len(res.Stats) != len(articles) {
				t.Fatalf("stats = %d, want %d", len(res.Stats), len(articles))
			}
			for i, s := range res.Stats {
				if s.Article != articles[i].Article {
					t.Errorf("stat %d article = %d, want %d (input order)", i, s.Article, articles[i].Article)
				}
				if len(s.Days) != lookback {
					t.Errorf("article %d has %d days, want %d", s.Article, len(s.Days), lookback)
				}
				for _, d := range s.Days {
					if d.Sales != 0 || d.Stock != 0 {
						t.Errorf("article %d day %s = %+v, want zeros", s.Article, d.Day, d)
					}
				}
			}
			if len(provider.calls) != 1+lookback {
				t.Errorf("provider calls = %d, want %d", len(provider.calls), 1+lookback)
			}
			absent := res.Stats[0]
			if absent.MonthSales != 0 || absent.CurrentStock != 0 || absent.Availability != models.AvailabilityOut {
				t.Errorf("absent article = %+v, want zeroed record", absent)
			}
		})
	}
}

func TestAggregateAborts(t *testing.T) {
	articles := []models.TrackedArticle{{Article: 1}}
	unauthorized := &wbapi.StatusError{URL: "u", Status: 401}

	tests := []struct {
		name      string
		articles  []models.TrackedArticle
		token     string
		provider  *fakeProvider
		wantErr   error
		wantSaves int
	}{
		{"no articles", nil, "t", &fakeProvider{}, ErrMissingInput, 0},
		{"no token", articles, "", &fakeProvider{}, ErrMissingInput, 0},
		{"empty provider result", articles, "t", &fakeProvider{}, ErrNoProviderData, 0},
		{"unauthorized", articles, "t", &fakeProvider{err: unauthorized}, wbapi.ErrUnauthorized, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			res, err := newTestAggregator(tt.provider, store, 3).Aggregate(context.Background(), tt.articles, tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Aggregate() error = %v, want %v", err, tt.wantErr)
			}
			if res != nil {
				t.Errorf("Aggregate() result = %+v, want nil", res)
			}
			if store.saves != tt.wantSaves {
				t.Errorf("snapshot saves = %d, want %d", store.saves, tt.wantSaves)
			}
		})
	}
}

func TestAggregateContinuesWhenSnapshotSaveFails(t *testing.T) {
	provider := &fakeProvider{period: []wbapi.FunnelProduct{{Article: 1, OrderCount: 2, StockWB: 3}}}
	store := newMemStore()
	store.saveErr = errors.New("disk full")

	res, err := newTestAggregator(provider, store, 2).Aggregate(context.Background(), []models.TrackedArticle{{Article: 1}}, "t")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if res.Stats[0].MonthSales != 2 || res.Stats[0].CurrentStock != 3 {
		t.Errorf("stat = %+v", res.Stats[0])
	}
}

func TestDerivedFields(t *testing.T) {
	if got := MeanDailySales(10, 3); got != 3 {
		t.Errorf("MeanDailySales(10,3) = %d, want 3", got)
	}
	if got := MeanDailySales(10, 0); got != 10 {
		t.Errorf("MeanDailySales(10,0) = %d, want 10", got)
	}

	rates := []struct {
		sold, stock int
		want        float64
	}{
		{0, 0, 0},
		{9, 0, 100},
		{9, 5, 64.29},
		{1, 2, 33.33},
	}
	for _, r := range rates {
		if got := SaleRate(r.sold, r.stock); got != r.want {
			t.Errorf("SaleRate(%d,%d) = %v, want %v", r.sold, r.stock, got, r.want)
		}
	}

	labels := []struct {
		stock, mean int
		want        string
	}{
		{0, 3, models.AvailabilityOut},
		{20, 3, models.AvailabilityLow},
		{21, 3, models.AvailabilityIn},
		{5, 0, models.AvailabilityIn},
	}
	for _, l := range labels {
		if got := Availability(l.stock, l.mean); got != l.want {
			t.Errorf("Availability(%d,%d) = %q, want %q", l.stock, l.mean, got, l.want)
		}
	}
}

func TestAggregateSkipsInvalidArticleInSnapshot(t *testing.T) {
	provider := &fakeProvider{period: []wbapi.FunnelProduct{{Article: 100, StockWB: 6}}}
	store := newMemStore()
	articles := []models.TrackedArticle{{Article: 100}, {Article: 0, SellerArticle: "no id"}}

	res, err := newTestAggregator(provider, store, 2).Aggregate(context.Background(), articles, "t")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Stats) != 2 {
		t.Errorf("stats = %d, want 2", len(res.Stats))
	}

	today := store.rows[helpers.FormatDay(runTime)]
	if today[100] != 6 {
		t.Errorf("snapshot of article 100 = %v, want 6", today)
	}
	if _, ok := today[0]; ok {
		t.Errorf("article without id must not be stored: %v", today)
	}
}

func TestAggregateReadsClockOnce(t *testing.T) {
	// each read of the clock moves an hour forward, crossing midnight
	clock := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)
	agg := NewSalesAggregator(&fakeProvider{period: []wbapi.FunnelProduct{{Article: 1}}}, newMemStore(), 3, time.UTC, quietLogger())
	agg.SetClock(func() time.Time {
		now := clock
		clock = clock.Add(time.Hour)
		return now
	})

	res, err := agg.Aggregate(context.Background(), []models.TrackedArticle{{Article: 1}}, "t")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if !helpers.Day(res.GeneratedAt).Equal(res.Today) {
		t.Errorf("GeneratedAt %s is not on Today %s", res.GeneratedAt, res.Today)
	}
	if last := res.Days[len(res.Days)-1]; !last.Equal(helpers.AddDays(res.Today, -1)) {
		t.Errorf("last window day = %s, want the day before %s", last, res.Today)
	}
}
