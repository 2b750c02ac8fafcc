package wbapi

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const dayLayout = "2006-01-02"

// Period is an inclusive calendar-day range
type Period struct {
	Start time.Time
	End   time.Time
}

// MarshalJSON renders the period the way the funnel endpoint expects it
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"start": p.Start.Format(dayLayout),
		"end":   p.End.Format(dayLayout),
	})
}

// FunnelProduct is one decoded sales-funnel row
type FunnelProduct struct {
	Article       int64  `json:"article"`
	SellerArticle string `json:"seller_article"`
	Brand         string `json:"brand"`
	Category      string `json:"category"`

	StockWB int `json:"stock_wb"`
	StockMP int `json:"stock_mp"`

	OpenCount       int             `json:"card_opens"`
	CartCount       int             `json:"to_cart"`
	OrderCount      int             `json:"orders_count"`
	OrderSum        decimal.Decimal `json:"orders_sum"`
	AvgOrdersPerDay float64         `json:"middle_in_day_sales"`
	BuyoutPercent   float64         `json:"buyout_percent"`
	BuyoutCount     int             `json:"buyout_count"`
	BuyoutSum       decimal.Decimal `json:"buyout_sum"`
	CancelCount     int             `json:"lost_orders_count"`
	CancelSum       decimal.Decimal `json:"lost_orders_sum"`
	DeficitDays     int             `json:"deficit_days"`
}

// Stock is the total of marketplace and seller warehouse stock
func (p FunnelProduct) Stock() int {
	return p.StockWB + p.StockMP
}

// CTR is add-to-cart over card opens, 0 when the card was never opened
func (p FunnelProduct) CTR() float64 {
	if p.OpenCount == 0 {
		return 0
	}
	return float64(p.CartCount) / float64(p.OpenCount)
}

// RegionSale is one decoded region-sale row
type RegionSale struct {
	Article             int64           `json:"article"`
	SellerArticle       string          `json:"seller_article"`
	Brand               string          `json:"brand"`
	CityName            string          `json:"city_name"`
	RegionName          string          `json:"region_name"`
	CountryName         string          `json:"country_name"`
	FederalDistrict     string          `json:"federal_district"`
	SaleInvoiceCost     decimal.Decimal `json:"sale_invoice_cost_price"`
	SaleInvoiceCostPerc float64         `json:"sale_invoice_cost_price_perc"`
	SaleItemInvoiceQty  int             `json:"sale_item_invoice_qty"`
}

// ============================================================================
// Wire shapes. Every field is optional on the wire; decode* functions below
// are the only place that turns missing fields into zero values.
// ============================================================================

type funnelRequest struct {
	NmIDs          []int64 `json:"nmIds,omitempty"`
	Timezone       string  `json:"timezone"`
	SelectedPeriod Period  `json:"selectedPeriod"`
	OrderBy        orderBy `json:"orderBy"`
	Limit          int     `json:"limit"`
	Offset         int     `json:"offset"`
}

type orderBy struct {
	Field string `json:"field"`
	Mode  string `json:"mode"`
}

type funnelEnvelope struct {
	Data *struct {
		Products []funnelCard `json:"products"`
	} `json:"data"`
}

type funnelCard struct {
	Product *struct {
		NmID        *int64  `json:"nmId"`
		VendorCode  *string `json:"vendorCode"`
		BrandName   *string `json:"brandName"`
		SubjectName *string `json:"subjectName"`
		Stocks      *struct {
			WB *int `json:"wb"`
			MP *int `json:"mp"`
		} `json:"stocks"`
	} `json:"product"`
	Statistic *struct {
		Selected *funnelSelected `json:"selected"`
	} `json:"statistic"`
}

type funnelSelected struct {
	OpenCount            *int             `json:"openCount"`
	CartCount            *int             `json:"cartCount"`
	OrderCount           *int             `json:"orderCount"`
	OrderSum             *decimal.Decimal `json:"orderSum"`
	AvgOrdersCountPerDay *float64         `json:"avgOrdersCountPerDay"`
	BuyoutCount          *int             `json:"buyoutCount"`
	BuyoutSum            *decimal.Decimal `json:"buyoutSum"`
	CancelCount          *int             `json:"cancelCount"`
	CancelSum            *decimal.Decimal `json:"cancelSum"`
	StockDeficitDays     *int             `json:"stockDeficitDays"`
	Conversions          *struct {
		BuyoutPercent *float64 `json:"buyoutPercent"`
	} `json:"conversions"`
}

// legacy page-numbered report (nm-report/detail)
type legacyRequest struct {
	NmIDs    []int64      `json:"nmIDs,omitempty"`
	Timezone string       `json:"timezone"`
	Period   legacyPeriod `json:"period"`
	OrderBy  orderBy      `json:"orderBy"`
	Page     int          `json:"page"`
}

type legacyPeriod struct {
	Begin string `json:"begin"`
	End   string `json:"end"`
}

type legacyEnvelope struct {
	Data *struct {
		Cards      []legacyCard `json:"cards"`
		IsNextPage *bool        `json:"isNextPage"`
	} `json:"data"`
}

type legacyCard struct {
	NmID       *int64  `json:"nmID"`
	VendorCode *string `json:"vendorCode"`
	BrandName  *string `json:"brandName"`
	Object     *struct {
		Name *string `json:"name"`
	} `json:"object"`
	Stocks *struct {
		StocksMp *int `json:"stocksMp"`
		StocksWb *int `json:"stocksWb"`
	} `json:"stocks"`
	Statistics *struct {
		SelectedPeriod *struct {
			OpenCardCount        *int             `json:"openCardCount"`
			AddToCartCount       *int             `json:"addToCartCount"`
			OrdersCount          *int             `json:"ordersCount"`
			OrdersSumRub         *decimal.Decimal `json:"ordersSumRub"`
			AvgOrdersCountPerDay *float64         `json:"avgOrdersCountPerDay"`
			BuyoutsCount         *int             `json:"buyoutsCount"`
			BuyoutsSumRub        *decimal.Decimal `json:"buyoutsSumRub"`
			CancelCount          *int             `json:"cancelCount"`
			CancelSumRub         *decimal.Decimal `json:"cancelSumRub"`
			Conversions          *struct {
				BuyoutsPercent *float64 `json:"buyoutsPercent"`
			} `json:"conversions"`
		} `json:"selectedPeriod"`
	} `json:"statistics"`
}

type regionEnvelope struct {
	Report []regionRow `json:"report"`
}

type regionRow struct {
	NmID                     *int64           `json:"nmID"`
	CityName                 *string          `json:"cityName"`
	RegionName               *string          `json:"regionName"`
	CountryName              *string          `json:"countryName"`
	FoName                   *string          `json:"foName"`
	SaleInvoiceCostPrice     *decimal.Decimal `json:"saleInvoiceCostPrice"`
	SaleInvoiceCostPricePerc *float64         `json:"saleInvoiceCostPricePerc"`
	SaleItemInvoiceQty       *int             `json:"saleItemInvoiceQty"`
}

func valueOr[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

func decodeFunnelCard(c funnelCard) FunnelProduct {
	var p FunnelProduct
	if c.Product != nil {
		p.Article = valueOr(c.Product.NmID, 0)
		p.SellerArticle = valueOr(c.Product.VendorCode, "")
		p.Brand = valueOr(c.Product.BrandName, "")
		p.Category = valueOr(c.Product.SubjectName, "")
		if c.Product.Stocks != nil {
			p.StockWB = valueOr(c.Product.Stocks.WB, 0)
			p.StockMP = valueOr(c.Product.Stocks.MP, 0)
		}
	}
	if c.Statistic == nil || c.Statistic.Selected == nil {
		return p
	}
	sel := c.Statistic.Selected
	p.OpenCount = valueOr(sel.OpenCount, 0)
	p.CartCount = valueOr(sel.CartCount, 0)
	p.OrderCount = valueOr(sel.OrderCount, 0)
	p.OrderSum = valueOr(sel.OrderSum, decimal.Zero)
	p.AvgOrdersPerDay = valueOr(sel.AvgOrdersCountPerDay, 0)
	p.BuyoutCount = valueOr(sel.BuyoutCount, 0)
	p.BuyoutSum = valueOr(sel.BuyoutSum, decimal.Zero)
	p.CancelCount = valueOr(sel.CancelCount, 0)
	p.CancelSum = valueOr(sel.CancelSum, decimal.Zero)
	p.DeficitDays = valueOr(sel.StockDeficitDays, 0)
	if sel.Conversions != nil {
		p.BuyoutPercent = valueOr(sel.Conversions.BuyoutPercent, 0)
	}
	return p
}

func decodeLegacyCard(c legacyCard) FunnelProduct {
	p := FunnelProduct{
		Article:       valueOr(c.NmID, 0),
		SellerArticle: valueOr(c.VendorCode, ""),
		Brand:         valueOr(c.BrandName, ""),
		OrderSum:      decimal.Zero,
		BuyoutSum:     decimal.Zero,
		CancelSum:     decimal.Zero,
	}
	if c.Object != nil {
		p.Category = valueOr(c.Object.Name, "")
	}
	if c.Stocks != nil {
		p.StockWB = valueOr(c.Stocks.StocksWb, 0)
		p.StockMP = valueOr(c.Stocks.StocksMp, 0)
	}
	if c.Statistics == nil || c.Statistics.SelectedPeriod == nil {
		return p
	}
	sel := c.Statistics.SelectedPeriod
	p.OpenCount = valueOr(sel.OpenCardCount, 0)
	p.CartCount = valueOr(sel.AddToCartCount, 0)
	p.OrderCount = valueOr(sel.OrdersCount, 0)
	p.OrderSum = valueOr(sel.OrdersSumRub, decimal.Zero)
	p.AvgOrdersPerDay = valueOr(sel.AvgOrdersCountPerDay, 0)
	p.BuyoutCount = valueOr(sel.BuyoutsCount, 0)
	p.BuyoutSum = valueOr(sel.BuyoutsSumRub, decimal.Zero)
	p.CancelCount = valueOr(sel.CancelCount, 0)
	p.CancelSum = valueOr(sel.CancelSumRub, decimal.Zero)
	if sel.Conversions != nil {
		p.BuyoutPercent = valueOr(sel.Conversions.BuyoutsPercent, 0)
	}
	return p
}

func decodeRegionRow(r regionRow) RegionSale {
	return RegionSale{
		Article:             valueOr(r.NmID, 0),
		CityName:            valueOr(r.CityName, ""),
		RegionName:          valueOr(r.RegionName, ""),
		CountryName:         valueOr(r.CountryName, ""),
		FederalDistrict:     valueOr(r.FoName, ""),
		SaleInvoiceCost:     valueOr(r.SaleInvoiceCostPrice, decimal.Zero),
		SaleInvoiceCostPerc: valueOr(r.SaleInvoiceCostPricePerc, 0),
		SaleItemInvoiceQty:  valueOr(r.SaleItemInvoiceQty, 0),
	}
}
