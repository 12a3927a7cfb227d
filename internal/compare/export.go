package compare

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

const diffSheet = "Differences"

// ModelName derives a short label from a results file name by dropping the
// directory, every occurrence of prefix, and the .csv extension.
func ModelName(path, prefix string) string {
	name := filepath.Base(path)
	if prefix != "" {
		name = strings.ReplaceAll(name, prefix, "")
	}
	return strings.TrimSuffix(name, ".csv")
}

// Export writes the differing rows to path, test row first, then the
// experiment row, each tagged with its model name. A .xlsx path produces a
// workbook; anything else is written as CSV.
func Export(path string, rep *Report, testName, expName string) error {
	header := append([]string{"model_name"}, rep.Columns...)
	var rows [][]any
	for _, d := range rep.Diffs {
		rows = append(rows, exportRow(testName, d.Test, len(rep.Columns)))
		rows = append(rows, exportRow(expName, d.Experiment, len(rep.Columns)))
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create output dir")
		}
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeXLSX(path, header, rows)
	}
	return writeCSV(path, header, rows)
}

func exportRow(model string, cells []Cell, width int) []any {
	row := make([]any, 0, width+1)
	row = append(row, model)
	for i := 0; i < width; i++ {
		if i >= len(cells) || cells[i].Missing {
			row = append(row, "")
			continue
		}
		if cells[i].IsNum {
			row = append(row, cells[i].Num)
			continue
		}
		row = append(row, cells[i].Str)
	}
	return row
}

func writeXLSX(path string, header []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if index, _ := f.GetSheetIndex(diffSheet); index == -1 {
		if _, err := f.NewSheet(diffSheet); err != nil {
			return errors.Wrap(err, "xlsx sheet")
		}
	}
	_ = f.DeleteSheet("Sheet1")
	activeIndex, _ := f.GetSheetIndex(diffSheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(diffSheet, cell, h)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(diffSheet, cell, v)
		}
	}

	last, _ := excelize.ColumnNumberToName(len(header))
	_ = f.SetColWidth(diffSheet, "A", "A", 22)
	if len(header) > 1 {
		_ = f.SetColWidth(diffSheet, "B", last, 18)
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrap(err, "xlsx write")
	}
	return nil
}

func writeCSV(path string, header []string, rows [][]any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create diff file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close diff file")
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "write diff header")
	}
	for _, row := range rows {
		rec := make([]string, len(row))
		for i, v := range row {
			switch v := v.(type) {
			case float64:
				rec[i] = strconv.FormatFloat(v, 'f', -1, 64)
			case string:
				rec[i] = v
			}
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrap(err, "write diff row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "write diff file")
}
