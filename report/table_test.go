package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wb-seller-stats/helpers"
	"wb-seller-stats/models"
)

func TestProject(t *testing.T) {
	now := time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)
	days := helpers.LookbackDays(now, 3)
	articles := []models.TrackedArticle{
		{Article: 100, SellerArticle: "A1", Brand: "Acme", Category: "Toys"},
		{Article: 200, SellerArticle: "B2"},
		{Article: 300, SellerArticle: "C3"},
	}
	stats := []models.AggregatedStat{
		{
			Article: 300, SellerArticle: "C3", MonthSales: 1,
			MonthIncome: decimal.Zero, Availability: models.AvailabilityOut,
			Days: []models.DayStat{{Day: days[0]}, {Day: days[1]}, {Day: days[2], Sales: 1}},
		},
		{
			Article: 100, SellerArticle: "A1", Brand: "Acme", Category: "Toys",
			MonthSales: 9, CurrentStock: 5, MeanDailySales: 3,
			MonthIncome: decimal.RequireFromString("900.456"), SaleRate: 64.29,
			Availability: models.AvailabilityLow,
			Days: []models.DayStat{
				{Day: days[0], Sales: 3, Stock: 5},
				{Day: days[1], Sales: 3},
				{Day: days[2], Sales: 3},
			},
		},
	}

	table := Project(articles, stats, days, now)

	if len(table.Rows) != HeaderRows+3 {
		t.Fatalf("rows = %d, want %d", len(table.Rows), HeaderRows+3)
	}
	width := Width(3)
	for i, row := range table.Rows {
		if len(row) != width {
			t.Errorf("row %d width = %d, want %d", i, len(row), width)
		}
	}

	if table.Rows[0][0] != "Updated 2026-10-18 06:00" {
		t.Errorf("caption = %v", table.Rows[0][0])
	}

	banner, names := table.Rows[1], table.Rows[2]
	first := len(summaryColumns)
	if banner[first] != "3 days ago" || banner[first+2] != "2 days ago" || banner[first+4] != "1 day ago" {
		t.Errorf("banner = %v", banner[first:])
	}
	if banner[first+1] != "" {
		t.Errorf("banner must span the pair, stock column = %v", banner[first+1])
	}
	if names[0] != "Article" || names[first] != "Sales" || names[first+1] != "Stock" {
		t.Errorf("names = %v", names)
	}

	data := table.Data()
	if data[0][0] != int64(100) || data[2][0] != int64(300) {
		t.Errorf("data rows must follow tracked order: %v, %v", data[0][0], data[2][0])
	}
	if data[0][7] != 900.46 {
		t.Errorf("income cell = %v, want 900.46", data[0][7])
	}
	if data[0][first] != 3 || data[0][first+1] != 5 || data[0][first+3] != 0 {
		t.Errorf("day pairs = %v", data[0][first:])
	}
	for i, cell := range data[1] {
		if cell != "" {
			t.Errorf("missing article row cell %d = %v, want empty", i, cell)
		}
	}
}

func TestProjectEmptyStats(t *testing.T) {
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	table := Project([]models.TrackedArticle{{Article: 1}}, nil, helpers.LookbackDays(now, 2), now)
	if len(table.Data()) != 1 {
		t.Fatalf("data rows = %d, want 1", len(table.Data()))
	}
	if table.Data()[0][0] != "" {
		t.Errorf("row for absent article should be empty")
	}
}
