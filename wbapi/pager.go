package wbapi

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"wb-seller-stats/helpers"
)

// PageStyle selects how the cursor advances between pages
type PageStyle int

const (
	// OffsetLimit advances offset by the page size until a short page arrives
	OffsetLimit PageStyle = iota
	// PageNumber advances a page counter while the provider reports a next page
	PageNumber
)

const (
	DefaultPageLimit = 1000
	DefaultMaxPages  = 30
	DefaultPageDelay = 20 * time.Second
)

// PageRequest is the cursor handed to a page function
type PageRequest struct {
	Offset int
	Limit  int
	Page   int // 1-based, PageNumber style only
}

// Page is one decoded provider page
type Page[T any] struct {
	Items []T
	// Missing marks a falsy result envelope (no data object at all)
	Missing bool
	// HasMore is the provider's next-page flag; nil when it is not reported
	HasMore *bool
}

// PageFunc fetches and decodes one page
type PageFunc[T any] func(ctx context.Context, req PageRequest) (Page[T], error)

// Pager holds pagination limits shared by every paginated endpoint
type Pager struct {
	Style    PageStyle
	Limit    int
	MaxPages int
	Delay    time.Duration // fixed pause after every fetched page
	Sleep    Sleeper
	Log      logrus.FieldLogger
}

func (p Pager) withDefaults() Pager {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.MaxPages <= 0 {
		p.MaxPages = DefaultMaxPages
	}
	if p.Sleep == nil {
		p.Sleep = helpers.SleepContext
	}
	if p.Log == nil {
		p.Log = logrus.StandardLogger()
	}
	return p
}

// FetchAll calls fetch page after page and accumulates every item.
//
// Per page, in order: a falsy envelope or an exhausted request stops and
// returns what was accumulated; the inter-page delay is applied; an empty page
// stops; a short page (offset style) or a missing/false next-page flag (page
// style) stops after keeping its items. MaxPages bounds the loop.
//
// Only token rejection and context cancellation are returned as errors.
func FetchAll[T any](ctx context.Context, p Pager, fetch PageFunc[T]) ([]T, error) {
	p = p.withDefaults()

	var items []T
	req := PageRequest{Offset: 0, Limit: p.Limit, Page: 1}

	for i := 0; i < p.MaxPages; i++ {
		page, err := fetch(ctx, req)
		if err != nil {
			if IsUnauthorized(err) {
				return items, err
			}
			if ctx.Err() != nil {
				return items, ctx.Err()
			}
			p.Log.WithError(err).WithField("page", i+1).Warn("page fetch failed, keeping accumulated items")
			return items, nil
		}
		if page.Missing {
			p.Log.WithField("page", i+1).Warn("provider returned empty result envelope")
			return items, nil
		}

		if err := p.Sleep(ctx, p.Delay); err != nil {
			return items, err
		}

		if len(page.Items) == 0 {
			break
		}
		items = append(items, page.Items...)

		switch p.Style {
		case PageNumber:
			if page.HasMore == nil || !*page.HasMore {
				return items, nil
			}
			req.Page++
		default:
			if len(page.Items) < p.Limit {
				return items, nil
			}
			req.Offset += p.Limit
		}

		if i == p.MaxPages-1 {
			p.Log.WithField("max_pages", p.MaxPages).Warn("page ceiling reached, stopping pagination")
		}
	}

	return items, nil
}
