package wbapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// The finance report is slow to build on the provider side and has its own
// retry policy.
const (
	FinanceReportAttempts = 2
	FinanceReportWait     = 30 * time.Second
)

// FinanceRow is one decoded line of the realization (finance) report
type FinanceRow struct {
	RealizationReportID int64  `json:"realizationreport_id"`
	Subject             string `json:"subject_name"`
	Article             int64  `json:"nm_id"`
	Brand               string `json:"brand_name"`
	SellerArticle       string `json:"sa_name"`
	Size                string `json:"ts_name"`
	Barcode             string `json:"barcode"`
	DocType             string `json:"doc_type_name"`
	Operation           string `json:"supplier_oper_name"`
	OrderDate           string `json:"order_dt"`
	SaleDate            string `json:"sale_dt"`
	Quantity            int    `json:"quantity"`

	RetailPrice         decimal.Decimal `json:"retail_price"`
	RetailAmount        decimal.Decimal `json:"retail_amount"`
	ProductDiscount     float64         `json:"product_discount_for_report"`
	PromoCodeDiscount   float64         `json:"sale_price_promocode_discount_prc"`
	SalePercent         float64         `json:"sale_percent"`
	RetailPriceWithDisc decimal.Decimal `json:"retail_price_withdisc_rub"`
	RatingReduction     float64         `json:"sup_rating_prc_up"`
	SPP                 float64         `json:"ppvz_spp_prc"`
	KVWBase             float64         `json:"ppvz_kvw_prc_base"`
	KVW                 float64         `json:"ppvz_kvw_prc"`

	SalesCommission   decimal.Decimal `json:"ppvz_sales_commission"`
	PickupReward      decimal.Decimal `json:"ppvz_reward"`
	AcquiringFee      decimal.Decimal `json:"acquiring_fee"`
	AcquiringPercent  float64         `json:"acquiring_percent"`
	PaymentProcessing string          `json:"payment_processing"`
	Reward            decimal.Decimal `json:"ppvz_vw"`
	RewardVAT         decimal.Decimal `json:"ppvz_vw_nds"`
	ForPay            decimal.Decimal `json:"ppvz_for_pay"`

	DeliveryAmount int             `json:"delivery_amount"`
	ReturnAmount   int             `json:"return_amount"`
	DeliveryRub    decimal.Decimal `json:"delivery_rub"`
	FixTariffFrom  string          `json:"fix_tariff_date_from"`
	FixTariffTo    string          `json:"fix_tariff_date_to"`

	Penalty           decimal.Decimal `json:"penalty"`
	AdditionalPayment decimal.Decimal `json:"additional_payment"`
	BonusType         string          `json:"bonus_type_name"`
	StickerID         string          `json:"sticker_id"`
	AcquiringBank     string          `json:"acquiring_bank"`
	OfficeID          int64           `json:"ppvz_office_id"`
	OfficeName        string          `json:"ppvz_office_name"`
	PartnerINN        string          `json:"ppvz_inn"`
	PartnerName       string          `json:"ppvz_supplier_name"`
	Warehouse         string          `json:"office_name"`
	Country           string          `json:"site_country"`
	BoxType           string          `json:"gi_box_type_name"`
	Declaration       string          `json:"declaration_number"`
	AssemblyID        int64           `json:"assembly_id"`
	Kiz               string          `json:"kiz"`
	ShkID             int64           `json:"shk_id"`
	Srid              string          `json:"srid"`

	RebillLogisticCost decimal.Decimal `json:"rebill_logistic_cost"`
	RebillLogisticOrg  string          `json:"rebill_logistic_org"`
	StorageFee         decimal.Decimal `json:"storage_fee"`
	Deduction          decimal.Decimal `json:"deduction"`
	Acceptance         decimal.Decimal `json:"acceptance"`
	WarehouseCoef      float64         `json:"dlv_prc"`
}

// PaidDelivery reports whether the line carries a paid delivery service
func (r FinanceRow) PaidDelivery() bool {
	return r.DeliveryAmount > 0
}

// FinanceReport returns the realization report lines for period.
// A null body or an exhausted request yields no rows.
func (a *API) FinanceReport(ctx context.Context, token string, period Period) ([]FinanceRow, error) {
	q := url.Values{}
	q.Set("dateFrom", period.Start.Format(dayLayout))
	q.Set("dateTo", period.End.Format(dayLayout))

	raw, err := a.client.Send(ctx, Request{
		Method:   http.MethodGet,
		URL:      a.endpoints.FinanceReport + "?" + q.Encode(),
		Token:    token,
		Attempts: a.financeAttempts,
		Wait:     a.financeWait,
	})
	if err != nil {
		if IsExhausted(err) {
			a.log.WithField("period", q.Encode()).Error("Finance report request exhausted, no rows")
			return nil, nil
		}
		return nil, err
	}

	var lines []financeLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("decode finance report: %w", err)
	}

	rows := make([]FinanceRow, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, decodeFinanceLine(l))
	}
	return rows, nil
}

// SetFinanceRetry overrides the finance report retry policy; zero values keep the defaults
func (a *API) SetFinanceRetry(attempts int, wait time.Duration) {
	if attempts > 0 {
		a.financeAttempts = attempts
	}
	if wait > 0 {
		a.financeWait = wait
	}
}

type financeLine struct {
	RealizationReportID *int64  `json:"realizationreport_id"`
	SubjectName         *string `json:"subject_name"`
	NmID                *int64  `json:"nm_id"`
	BrandName           *string `json:"brand_name"`
	SaName              *string `json:"sa_name"`
	TsName              *string `json:"ts_name"`
	Barcode             *string `json:"barcode"`
	DocTypeName         *string `json:"doc_type_name"`
	SupplierOperName    *string `json:"supplier_oper_name"`
	OrderDt             *string `json:"order_dt"`
	SaleDt              *string `json:"sale_dt"`
	Quantity            *int    `json:"quantity"`

	RetailPrice                   *decimal.Decimal `json:"retail_price"`
	RetailAmount                  *decimal.Decimal `json:"retail_amount"`
	ProductDiscountForReport      *float64         `json:"product_discount_for_report"`
	SalePricePromocodeDiscountPrc *float64         `json:"sale_price_promocode_discount_prc"`
	SalePercent                   *float64         `json:"sale_percent"`
	RetailPriceWithdiscRub        *decimal.Decimal `json:"retail_price_withdisc_rub"`
	SupRatingPrcUp                *float64         `json:"sup_rating_prc_up"`
	PpvzSppPrc                    *float64         `json:"ppvz_spp_prc"`
	PpvzKvwPrcBase                *float64         `json:"ppvz_kvw_prc_base"`
	PpvzKvwPrc                    *float64         `json:"ppvz_kvw_prc"`

	PpvzSalesCommission *decimal.Decimal `json:"ppvz_sales_commission"`
	PpvzReward          *decimal.Decimal `json:"ppvz_reward"`
	AcquiringFee        *decimal.Decimal `json:"acquiring_fee"`
	AcquiringPercent    *float64         `json:"acquiring_percent"`
	PaymentProcessing   *string          `json:"payment_processing"`
	PpvzVw              *decimal.Decimal `json:"ppvz_vw"`
	PpvzVwNds           *decimal.Decimal `json:"ppvz_vw_nds"`
	PpvzForPay          *decimal.Decimal `json:"ppvz_for_pay"`

	DeliveryAmount    *int             `json:"delivery_amount"`
	ReturnAmount      *int             `json:"return_amount"`
	DeliveryRub       *decimal.Decimal `json:"delivery_rub"`
	FixTariffDateFrom *string          `json:"fix_tariff_date_from"`
	FixTariffDateTo   *string          `json:"fix_tariff_date_to"`

	Penalty           *decimal.Decimal `json:"penalty"`
	AdditionalPayment *decimal.Decimal `json:"additional_payment"`
	BonusTypeName     *string          `json:"bonus_type_name"`
	StickerID         *string          `json:"sticker_id"`
	AcquiringBank     *string          `json:"acquiring_bank"`
	PpvzOfficeID      *int64           `json:"ppvz_office_id"`
	PpvzOfficeName    *string          `json:"ppvz_office_name"`
	PpvzInn           *string          `json:"ppvz_inn"`
	PpvzSupplierName  *string          `json:"ppvz_supplier_name"`
	OfficeName        *string          `json:"office_name"`
	SiteCountry       *string          `json:"site_country"`
	GiBoxTypeName     *string          `json:"gi_box_type_name"`
	DeclarationNumber *string          `json:"declaration_number"`
	AssemblyID        *int64           `json:"assembly_id"`
	Kiz               *string          `json:"kiz"`
	ShkID             *int64           `json:"shk_id"`
	Srid              *string          `json:"srid"`

	RebillLogisticCost *decimal.Decimal `json:"rebill_logistic_cost"`
	RebillLogisticOrg  *string          `json:"rebill_logistic_org"`
	StorageFee         *decimal.Decimal `json:"storage_fee"`
	Deduction          *decimal.Decimal `json:"deduction"`
	Acceptance         *decimal.Decimal `json:"acceptance"`
	DlvPrc             *float64         `json:"dlv_prc"`
}

func decodeFinanceLine(l financeLine) FinanceRow {
	zero := decimal.Zero
	return FinanceRow{
		RealizationReportID: valueOr(l.RealizationReportID, 0),
		Subject:             valueOr(l.SubjectName, ""),
		Article:             valueOr(l.NmID, 0),
		Brand:               valueOr(l.BrandName, ""),
		SellerArticle:       valueOr(l.SaName, ""),
		Size:                valueOr(l.TsName, ""),
		Barcode:             valueOr(l.Barcode, ""),
		DocType:             valueOr(l.DocTypeName, ""),
		Operation:           valueOr(l.SupplierOperName, ""),
		OrderDate:           valueOr(l.OrderDt, ""),
		SaleDate:            valueOr(l.SaleDt, ""),
		Quantity:            valueOr(l.Quantity, 0),

		RetailPrice:         valueOr(l.RetailPrice, zero),
		RetailAmount:        valueOr(l.RetailAmount, zero),
		ProductDiscount:     valueOr(l.ProductDiscountForReport, 0),
		PromoCodeDiscount:   valueOr(l.SalePricePromocodeDiscountPrc, 0),
		SalePercent:         valueOr(l.SalePercent, 0),
		RetailPriceWithDisc: valueOr(l.RetailPriceWithdiscRub, zero),
		RatingReduction:     valueOr(l.SupRatingPrcUp, 0),
		SPP:                 valueOr(l.PpvzSppPrc, 0),
		KVWBase:             valueOr(l.PpvzKvwPrcBase, 0),
		KVW:                 valueOr(l.PpvzKvwPrc, 0),

		SalesCommission:   valueOr(l.PpvzSalesCommission, zero),
		PickupReward:      valueOr(l.PpvzReward, zero),
		AcquiringFee:      valueOr(l.AcquiringFee, zero),
		AcquiringPercent:  valueOr(l.AcquiringPercent, 0),
		PaymentProcessing: valueOr(l.PaymentProcessing, ""),
		Reward:            valueOr(l.PpvzVw, zero),
		RewardVAT:         valueOr(l.PpvzVwNds, zero),
		ForPay:            valueOr(l.PpvzForPay, zero),

		DeliveryAmount: valueOr(l.DeliveryAmount, 0),
		ReturnAmount:   valueOr(l.ReturnAmount, 0),
		DeliveryRub:    valueOr(l.DeliveryRub, zero),
		FixTariffFrom:  valueOr(l.FixTariffDateFrom, ""),
		FixTariffTo:    valueOr(l.FixTariffDateTo, ""),

		Penalty:           valueOr(l.Penalty, zero),
		AdditionalPayment: valueOr(l.AdditionalPayment, zero),
		BonusType:         valueOr(l.BonusTypeName, ""),
		StickerID:         valueOr(l.StickerID, ""),
		AcquiringBank:     valueOr(l.AcquiringBank, ""),
		OfficeID:          valueOr(l.PpvzOfficeID, 0),
		OfficeName:        valueOr(l.PpvzOfficeName, ""),
		PartnerINN:        valueOr(l.PpvzInn, ""),
		PartnerName:       valueOr(l.PpvzSupplierName, ""),
		Warehouse:         valueOr(l.OfficeName, ""),
		Country:           valueOr(l.SiteCountry, ""),
		BoxType:           valueOr(l.GiBoxTypeName, ""),
		Declaration:       valueOr(l.DeclarationNumber, ""),
		AssemblyID:        valueOr(l.AssemblyID, 0),
		Kiz:               valueOr(l.Kiz, ""),
		ShkID:             valueOr(l.ShkID, 0),
		Srid:              valueOr(l.Srid, ""),

		RebillLogisticCost: valueOr(l.RebillLogisticCost, zero),
		RebillLogisticOrg:  valueOr(l.RebillLogisticOrg, ""),
		StorageFee:         valueOr(l.StorageFee, zero),
		Deduction:          valueOr(l.Deduction, zero),
		Acceptance:         valueOr(l.Acceptance, zero),
		WarehouseCoef:      valueOr(l.DlvPrc, 0),
	}
}
