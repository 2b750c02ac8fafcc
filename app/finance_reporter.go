package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"wb-seller-stats/helpers"
	"wb-seller-stats/report"
	"wb-seller-stats/wbapi"
)

// FinanceSheet is the workbook sheet holding the finance report
const FinanceSheet = "Finance"

// FinanceSource returns realization report lines for a period
type FinanceSource interface {
	FinanceReport(ctx context.Context, token string, period wbapi.Period) ([]wbapi.FinanceRow, error)
}

// FinanceReporter writes a tenant's finance report next to its sales sheet
type FinanceReporter struct {
	tenants TenantSource
	source  FinanceSource
	writer  *report.Writer
	loc     *time.Location
	now     func() time.Time
	log     logrus.FieldLogger
}

// NewFinanceReporter creates a reporter; writer should target the finance sheet
func NewFinanceReporter(src TenantSource, source FinanceSource, writer *report.Writer, loc *time.Location, log logrus.FieldLogger) *FinanceReporter {
	if loc == nil {
		loc = time.UTC
	}
	return &FinanceReporter{
		tenants: src,
		source:  source,
		writer:  writer,
		loc:     loc,
		now:     time.Now,
		log:     log,
	}
}

// WriteFinanceReport fetches the report of tenant for period and writes it.
// An empty report leaves the previous sheet untouched and reports written=false.
func (f *FinanceReporter) WriteFinanceReport(ctx context.Context, name string, period wbapi.Period) ([]wbapi.FinanceRow, bool, error) {
	t, err := resolveTenant(f.tenants, name)
	if err != nil {
		return nil, false, err
	}
	if t.token == "" {
		return nil, false, ErrMissingInput
	}
	log := f.log.WithFields(logrus.Fields{
		"tenant": name,
		"start":  helpers.FormatDay(period.Start),
		"end":    helpers.FormatDay(period.End),
	})

	rows, err := f.source.FinanceReport(ctx, t.token, period)
	if err != nil {
		log.WithError(err).Error("Finance report request failed")
		return nil, false, err
	}
	if len(rows) == 0 {
		log.Warn("Finance report is empty, previous sheet left untouched")
		return rows, false, nil
	}

	table := report.ProjectFinance(rows, period, f.now().In(f.loc))
	wr := f.writer.Write(ctx, t.sheet, table)
	if !wr.OK() {
		return rows, false, fmt.Errorf("write finance sheet: %w", wr.Err)
	}

	log.WithFields(logrus.Fields{"rows": len(rows), "attempts": wr.Attempts}).Info("Finance report written")
	return rows, true, nil
}
