package compare

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// Cell is one parsed value. Numeric columns carry Num; string columns carry Str.
type Cell struct {
	Raw     string
	Str     string
	Num     float64
	IsNum   bool
	Missing bool
}

// Table is a CSV result file with per-column type inference.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]Cell
	numeric []bool
	index   map[string]int
}

// missingMarkers are read as absent values, mirroring common CSV tooling.
var missingMarkers = map[string]struct{}{
	"": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {}, "NA": {}, "N/A": {}, "n/a": {}, "#N/A": {},
	"<NA>": {}, "NULL": {}, "null": {}, "None": {},
}

func isMissing(s string) bool {
	_, ok := missingMarkers[strings.TrimSpace(s)]
	return ok
}

// LoadCSV reads a table from path.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.InvalidInputError("open %s: %v", path, err)
	}
	defer f.Close()
	return ParseCSV(path, f)
}

// LoadPair reads the test and experiment tables concurrently.
func LoadPair(ctx context.Context, testPath, experimentPath string) (*Table, *Table, error) {
	var test, exp *Table
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		test, err = LoadCSV(testPath)
		return err
	})
	g.Go(func() error {
		var err error
		exp, err = LoadCSV(experimentPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return test, exp, nil
}

// ParseCSV reads a header row and data rows. A column is numeric when every
// non-missing cell parses as a float.
func ParseCSV(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, common.InvalidInputError("%s: empty file", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read header", name)
	}

	var raw [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s: read row", name)
		}
		row := make([]string, len(header))
		copy(row, rec)
		raw = append(raw, row)
	}

	t := &Table{
		Name:    name,
		Columns: header,
		numeric: make([]bool, len(header)),
		index:   make(map[string]int, len(header)),
	}
	for i, col := range header {
		if _, dup := t.index[col]; !dup {
			t.index[col] = i
		}
		t.numeric[i] = numericColumn(raw, i)
	}

	t.Rows = make([][]Cell, len(raw))
	for r, row := range raw {
		cells := make([]Cell, len(header))
		for i, v := range row {
			cells[i] = parseCell(v, t.numeric[i])
		}
		t.Rows[r] = cells
	}
	return t, nil
}

func numericColumn(rows [][]string, col int) bool {
	seen := false
	for _, row := range rows {
		v := strings.TrimSpace(row[col])
		if isMissing(v) {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func parseCell(v string, numeric bool) Cell {
	c := Cell{Raw: v}
	if isMissing(v) {
		c.Missing = true
		return c
	}
	if numeric {
		c.Num, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
		c.IsNum = true
		return c
	}
	c.Str = v
	return c
}

func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

func (t *Table) cell(row []Cell, col string) Cell {
	if row == nil {
		return Cell{Missing: true}
	}
	return row[t.index[col]]
}
