// Package models holds the domain records shared by the aggregation, projection and API layers.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackedArticle identifies a product under observation
type TrackedArticle struct {
	Article       int64  `json:"article" yaml:"article"`
	SellerArticle string `json:"seller_article" yaml:"seller_article"`
	Brand         string `json:"brand" yaml:"brand"`
	Category      string `json:"category" yaml:"category"`
}

// PeriodMetrics is the provider's view of one article over a date range.
// It only lives for the duration of a run.
type PeriodMetrics struct {
	Orders          int             `json:"orders"`
	AvgDailyOrders  float64         `json:"avg_daily_orders"`
	OrderSum        decimal.Decimal `json:"order_sum"`
	DaysUnavailable int             `json:"days_unavailable"`
	Stock           int             `json:"stock"`
}

// DayStat is one day of sales and stock for an article
type DayStat struct {
	Day   time.Time `json:"day"`
	Sales int       `json:"sales"`
	Stock int       `json:"stock"`
}

// Availability labels
const (
	AvailabilityOut = "out of stock"
	AvailabilityLow = "low"
	AvailabilityIn  = "in stock"
)

// AggregatedStat is the per-article output record of a run
type AggregatedStat struct {
	Article       int64  `json:"article"`
	SellerArticle string `json:"seller_article"`
	Brand         string `json:"brand"`
	Category      string `json:"category"`

	MonthSales      int             `json:"month_sales"`
	CurrentStock    int             `json:"current_stock"`
	MeanDailySales  int             `json:"mean_daily_sales"`
	MonthIncome     decimal.Decimal `json:"month_income"`
	DaysUnavailable int             `json:"days_unavailable"`
	SaleRate        float64         `json:"sale_rate"`
	Availability    string          `json:"availability"`

	Days []DayStat `json:"days"`
}
