package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// workbookMu serializes writes because sinks for different sheets share a workbook
var workbookMu sync.Mutex

// XLSXSink writes each target to its own workbook <dir>/<target>.xlsx.
// The sheet named Sheet is recreated on every write; other sheets of the
// workbook are kept.
type XLSXSink struct {
	Dir   string
	Sheet string
}

// NewXLSXSink creates an XLSX sink rooted at dir
func NewXLSXSink(dir, sheet string) *XLSXSink {
	if sheet == "" {
		sheet = "Sales"
	}
	return &XLSXSink{Dir: dir, Sheet: sheet}
}

// Path returns the workbook path of target
func (s *XLSXSink) Path(target string) string {
	name := unsafeName.ReplaceAllString(target, "_")
	if name == "" {
		name = "report"
	}
	return filepath.Join(s.Dir, name+".xlsx")
}

// Write implements Sink
func (s *XLSXSink) Write(ctx context.Context, target string, table Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	workbookMu.Lock()
	defer workbookMu.Unlock()

	path := s.Path(target)
	f, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// drop the previous contents; a workbook must keep at least one sheet
	if idx, _ := f.GetSheetIndex(s.Sheet); idx >= 0 {
		if len(f.GetSheetList()) == 1 {
			f.NewSheet("tmp")
		}
		if err := f.DeleteSheet(s.Sheet); err != nil {
			return fmt.Errorf("clear sheet %s: %w", s.Sheet, err)
		}
	}
	if _, err := f.NewSheet(s.Sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", s.Sheet, err)
	}
	for _, name := range []string{"tmp", defaultSheet} {
		if name == s.Sheet {
			continue
		}
		if i, _ := f.GetSheetIndex(name); i >= 0 {
			f.DeleteSheet(name)
		}
	}
	idx, _ := f.GetSheetIndex(s.Sheet)
	f.SetActiveSheet(idx)

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := []interface{}(row)
		if err := f.SetSheetRow(s.Sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if len(table.Rows) > HeaderRows {
		f.SetPanes(s.Sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      HeaderRows,
			TopLeftCell: fmt.Sprintf("A%d", HeaderRows+1),
			ActivePane:  "bottomLeft",
		})
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// ReadRows loads the rows of target's sheet back as strings
func (s *XLSXSink) ReadRows(target string) ([][]string, error) {
	f, err := excelize.OpenFile(s.Path(target))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetRows(s.Sheet)
}

func openWorkbook(path string) (*excelize.File, error) {
	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return f, nil
	}
	return excelize.NewFile(), nil
}
