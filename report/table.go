// Package report turns aggregated article stats into a sheet-shaped table
// and delivers it to a sink.
package report

import (
	"fmt"
	"time"

	"wb-seller-stats/helpers"
	"wb-seller-stats/models"
)

// HeaderRows is the number of metadata rows above the data rows
const HeaderRows = 3

// Row is one sheet row; cells are strings or numbers
type Row []interface{}

// Table is a fully materialized sheet: header rows followed by data rows
type Table struct {
	Rows []Row `json:"rows"`
}

// Data returns the rows below the header
func (t Table) Data() []Row {
	if len(t.Rows) <= HeaderRows {
		return nil
	}
	return t.Rows[HeaderRows:]
}

var summaryColumns = []string{
	"Article",
	"Seller article",
	"Brand",
	"Category",
	"Month sales",
	"Stock",
	"Mean daily sales",
	"Month income",
	"Days unavailable",
	"Sale rate, %",
	"Availability",
}

// Width returns the column count of a table covering the given number of days
func Width(days int) int {
	return len(summaryColumns) + 2*days
}

// Project builds the table for one run. days is the lookback window, oldest
// first; each day contributes a (sales, stock) column pair. Data rows follow
// the order of articles, and an article missing from stats gets an empty row.
func Project(articles []models.TrackedArticle, stats []models.AggregatedStat, days []time.Time, generatedAt time.Time) Table {
	width := Width(len(days))
	rows := make([]Row, 0, HeaderRows+len(articles))

	caption := emptyRow(width)
	caption[0] = fmt.Sprintf("Updated %s", generatedAt.Format("2006-01-02 15:04"))
	rows = append(rows, caption)

	today := helpers.Day(generatedAt)
	banner := emptyRow(width)
	names := emptyRow(width)
	for i, name := range summaryColumns {
		names[i] = name
	}
	for i, day := range days {
		col := len(summaryColumns) + 2*i
		banner[col] = daysAgo(today, day)
		names[col] = "Sales"
		names[col+1] = "Stock"
	}
	rows = append(rows, banner, names)

	byArticle := make(map[int64]models.AggregatedStat, len(stats))
	for _, s := range stats {
		byArticle[s.Article] = s
	}

	for _, a := range articles {
		s, ok := byArticle[a.Article]
		if !ok {
			rows = append(rows, emptyRow(width))
			continue
		}
		rows = append(rows, statRow(s, days, width))
	}

	return Table{Rows: rows}
}

func statRow(s models.AggregatedStat, days []time.Time, width int) Row {
	row := make(Row, 0, width)
	row = append(row,
		s.Article,
		s.SellerArticle,
		s.Brand,
		s.Category,
		s.MonthSales,
		s.CurrentStock,
		s.MeanDailySales,
		money(s.MonthIncome),
		s.DaysUnavailable,
		s.SaleRate,
		s.Availability,
	)

	byDay := make(map[time.Time]models.DayStat, len(s.Days))
	for _, d := range s.Days {
		byDay[helpers.Day(d.Day)] = d
	}
	for _, day := range days {
		d := byDay[helpers.Day(day)]
		row = append(row, d.Sales, d.Stock)
	}
	return row
}

func daysAgo(today, day time.Time) string {
	n := int(today.Sub(helpers.Day(day)).Hours() / 24)
	if n == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", n)
}

func emptyRow(width int) Row {
	row := make(Row, width)
	for i := range row {
		row[i] = ""
	}
	return row
}
