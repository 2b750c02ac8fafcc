package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"wb-seller-stats/helpers"
	"wb-seller-stats/wbapi"
)

var financeColumns = []string{
	"No",
	"Report id",
	"Subject",
	"Article",
	"Brand",
	"Seller article",
	"Size",
	"Barcode",
	"Document type",
	"Payment reason",
	"Order date",
	"Sale date",
	"Quantity",
	"Retail price",
	"Sold by marketplace",
	"Product discount, %",
	"Promo code, %",
	"Total discount, %",
	"Retail price with discount",
	"Rating reduction, %",
	"Regular customer discount, %",
	"Base commission, %",
	"Commission, %",
	"Sales commission",
	"Pickup point reward",
	"Acquiring fee",
	"Acquiring, %",
	"Acquiring payment type",
	"Marketplace reward",
	"Marketplace reward VAT",
	"To be paid to seller",
	"Deliveries",
	"Returns",
	"Delivery cost",
	"Fixed tariff from",
	"Fixed tariff to",
	"Paid delivery",
	"Penalties",
	"Reward adjustment",
	"Logistics and penalty type",
	"Sticker",
	"Acquiring bank",
	"Office id",
	"Office name",
	"Partner INN",
	"Partner",
	"Warehouse",
	"Country",
	"Box type",
	"Customs declaration",
	"Assembly task",
	"Marking code",
	"Shk",
	"Srid",
	"Logistics rebill",
	"Logistics organizer",
	"Storage",
	"Deductions",
	"Acceptance",
	"Warehouse coefficient",
}

// FinanceWidth is the column count of the finance table
func FinanceWidth() int {
	return len(financeColumns)
}

// ProjectFinance builds the finance sheet: a caption, a period row and the
// column names, then one row per report line in provider order
func ProjectFinance(rows []wbapi.FinanceRow, period wbapi.Period, generatedAt time.Time) Table {
	width := FinanceWidth()
	out := make([]Row, 0, HeaderRows+len(rows))

	caption := emptyRow(width)
	caption[0] = fmt.Sprintf("Updated %s", generatedAt.Format("2006-01-02 15:04"))
	span := emptyRow(width)
	span[0] = fmt.Sprintf("%s .. %s", helpers.FormatDay(period.Start), helpers.FormatDay(period.End))
	names := make(Row, width)
	for i, name := range financeColumns {
		names[i] = name
	}
	out = append(out, caption, span, names)

	for i, r := range rows {
		out = append(out, financeRow(i+1, r))
	}
	return Table{Rows: out}
}

func financeRow(n int, r wbapi.FinanceRow) Row {
	return Row{
		n,
		r.RealizationReportID,
		r.Subject,
		r.Article,
		r.Brand,
		r.SellerArticle,
		r.Size,
		r.Barcode,
		r.DocType,
		r.Operation,
		r.OrderDate,
		r.SaleDate,
		r.Quantity,
		money(r.RetailPrice),
		money(r.RetailAmount),
		r.ProductDiscount,
		r.PromoCodeDiscount,
		r.SalePercent,
		money(r.RetailPriceWithDisc),
		r.RatingReduction,
		r.SPP,
		r.KVWBase,
		r.KVW,
		money(r.SalesCommission),
		money(r.PickupReward),
		money(r.AcquiringFee),
		r.AcquiringPercent,
		r.PaymentProcessing,
		money(r.Reward),
		money(r.RewardVAT),
		money(r.ForPay),
		r.DeliveryAmount,
		r.ReturnAmount,
		money(r.DeliveryRub),
		r.FixTariffFrom,
		r.FixTariffTo,
		r.PaidDelivery(),
		money(r.Penalty),
		money(r.AdditionalPayment),
		r.BonusType,
		r.StickerID,
		r.AcquiringBank,
		r.OfficeID,
		r.OfficeName,
		r.PartnerINN,
		r.PartnerName,
		r.Warehouse,
		r.Country,
		r.BoxType,
		r.Declaration,
		r.AssemblyID,
		r.Kiz,
		r.ShkID,
		r.Srid,
		money(r.RebillLogisticCost),
		r.RebillLogisticOrg,
		money(r.StorageFee),
		money(r.Deduction),
		money(r.Acceptance),
		r.WarehouseCoef,
	}
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
