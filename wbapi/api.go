package wbapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// MaxIDsPerRequest is the provider's cap on article ids in one funnel request
	MaxIDsPerRequest = 1000
	funnelTimezone   = "Europe/Moscow"
)

// Endpoints holds the provider URLs used by API
type Endpoints struct {
	Funnel        string // sales-funnel products, offset/limit pagination
	FunnelLegacy  string // nm-report detail, page-number pagination
	RegionSale    string
	FinanceReport string // realization report, GET with dateFrom/dateTo
}

// API exposes the typed provider endpoints
type API struct {
	client    *Client
	endpoints Endpoints
	pager     Pager
	log       logrus.FieldLogger

	financeAttempts int
	financeWait     time.Duration
}

// NewAPI creates a new provider API
func NewAPI(client *Client, endpoints Endpoints, pager Pager, log logrus.FieldLogger) *API {
	pager.Log = log
	return &API{
		client:    client,
		endpoints: endpoints,
		pager:     pager,
		log:       log,

		financeAttempts: FinanceReportAttempts,
		financeWait:     FinanceReportWait,
	}
}

// FunnelProducts returns sales-funnel rows for ids over period.
// Ids are sent in batches of at most MaxIDsPerRequest, each batch paginated.
// An empty ids slice asks for every product of the seller.
func (a *API) FunnelProducts(ctx context.Context, token string, ids []int64, period Period) ([]FunnelProduct, error) {
	var all []FunnelProduct
	for _, batch := range chunkIDs(ids, MaxIDsPerRequest) {
		products, err := a.funnelBatch(ctx, token, batch, period)
		all = append(all, products...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

func (a *API) funnelBatch(ctx context.Context, token string, ids []int64, period Period) ([]FunnelProduct, error) {
	p := a.pager
	p.Style = OffsetLimit

	return FetchAll(ctx, p, func(ctx context.Context, req PageRequest) (Page[FunnelProduct], error) {
		body := funnelRequest{
			NmIDs:          ids,
			Timezone:       funnelTimezone,
			SelectedPeriod: period,
			OrderBy:        orderBy{Field: "orderSum", Mode: "asc"},
			Limit:          req.Limit,
			Offset:         req.Offset,
		}
		raw, err := a.client.Post(ctx, a.endpoints.Funnel, token, body)
		if err != nil {
			return Page[FunnelProduct]{}, err
		}

		var env funnelEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return Page[FunnelProduct]{}, fmt.Errorf("decode funnel page: %w", err)
		}
		if env.Data == nil {
			return Page[FunnelProduct]{Missing: true}, nil
		}

		page := Page[FunnelProduct]{Items: make([]FunnelProduct, 0, len(env.Data.Products))}
		for _, card := range env.Data.Products {
			page.Items = append(page.Items, decodeFunnelCard(card))
		}
		return page, nil
	})
}

// LegacyFunnelCards returns funnel rows from the page-numbered nm-report endpoint
func (a *API) LegacyFunnelCards(ctx context.Context, token string, ids []int64, period Period) ([]FunnelProduct, error) {
	p := a.pager
	p.Style = PageNumber

	return FetchAll(ctx, p, func(ctx context.Context, req PageRequest) (Page[FunnelProduct], error) {
		body := legacyRequest{
			NmIDs:    ids,
			Timezone: funnelTimezone,
			Period: legacyPeriod{
				Begin: period.Start.Format(dayLayout) + " 00:00:00",
				End:   period.End.Format(dayLayout) + " 23:59:00",
			},
			OrderBy: orderBy{Field: "ordersSumRub", Mode: "asc"},
			Page:    req.Page,
		}
		raw, err := a.client.Post(ctx, a.endpoints.FunnelLegacy, token, body)
		if err != nil {
			return Page[FunnelProduct]{}, err
		}

		var env legacyEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return Page[FunnelProduct]{}, fmt.Errorf("decode legacy funnel page: %w", err)
		}
		if env.Data == nil {
			return Page[FunnelProduct]{Missing: true}, nil
		}

		page := Page[FunnelProduct]{HasMore: env.Data.IsNextPage}
		for _, card := range env.Data.Cards {
			page.Items = append(page.Items, decodeLegacyCard(card))
		}
		return page, nil
	})
}

// RegionSales returns the region-sale report for period.
// The endpoint is not paginated; an exhausted request yields no rows.
func (a *API) RegionSales(ctx context.Context, token string, period Period) ([]RegionSale, error) {
	q := url.Values{}
	q.Set("dateFrom", period.Start.Format(dayLayout))
	q.Set("dateTo", period.End.Format(dayLayout))

	raw, err := a.client.Get(ctx, a.endpoints.RegionSale+"?"+q.Encode(), token)
	if err != nil {
		if IsExhausted(err) {
			return nil, nil
		}
		return nil, err
	}

	var env regionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode region sales: %w", err)
	}

	rows := make([]RegionSale, 0, len(env.Report))
	for _, r := range env.Report {
		rows = append(rows, decodeRegionRow(r))
	}
	return rows, nil
}

// chunkIDs splits ids into slices of at most size; an empty input yields one empty batch
func chunkIDs(ids []int64, size int) [][]int64 {
	if len(ids) == 0 {
		return [][]int64{nil}
	}
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
