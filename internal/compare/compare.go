package compare

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

var ErrMissingJoinKey = errors.New("join key missing from a table")

type Mode string

const (
	// ModePositional sorts both tables by key and compares row i with row i.
	ModePositional Mode = "positional"
	// ModeJoin matches rows by key; unmatched rows on either side count as different.
	ModeJoin Mode = "join"
)

const DefaultTolerance = 1e-4

type Options struct {
	JoinKey   string   // if empty -> "file_name"
	Ignore    []string // columns excluded from row equality
	Tolerance float64  // absolute; if <= 0 -> DefaultTolerance
	Mode      Mode     // if empty -> ModePositional
}

func (o Options) withDefaults() Options {
	if o.JoinKey == "" {
		o.JoinKey = "file_name"
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.Mode == "" {
		o.Mode = ModePositional
	}
	return o
}

// RowDiff is one differing row pair. Either side is nil when the row has no counterpart.
type RowDiff struct {
	Key        string
	Test       []Cell // aligned with Report.Columns
	Experiment []Cell
	Columns    []string // differing columns
}

type Report struct {
	Similar   int
	Different int
	Columns   []string // common columns in the test table's order
	Diffs     []RowDiff
}

func (r *Report) Summary() string {
	return fmt.Sprintf("Similar rows: %d, Different rows: %d", r.Similar, r.Different)
}

// Equal reports whether two cells match under the comparator rules.
func Equal(a, b Cell, tolerance float64) bool {
	switch {
	case a.Missing && b.Missing:
		return true
	case a.Missing:
		return b.IsNum && b.Num == 0
	case b.Missing:
		return a.IsNum && a.Num == 0
	case !a.IsNum && !b.IsNum:
		return strings.ToLower(strings.TrimSpace(a.Str)) == strings.ToLower(strings.TrimSpace(b.Str))
	case a.IsNum && b.IsNum:
		return math.Abs(a.Num-b.Num) < tolerance
	default:
		return false
	}
}

// Compare aligns test and experiment on the join key and counts similar and
// different rows over their common columns.
func Compare(test, exp *Table, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	if !test.Has(opts.JoinKey) || !exp.Has(opts.JoinKey) {
		return nil, errors.Wrapf(ErrMissingJoinKey, "%q", opts.JoinKey)
	}

	columns := lo.Uniq(lo.Filter(test.Columns, func(c string, _ int) bool { return exp.Has(c) }))
	checked := lo.Without(columns, opts.Ignore...)

	var pairs [][2][]Cell
	switch opts.Mode {
	case ModePositional:
		pairs = positionalPairs(test, exp, opts.JoinKey)
	case ModeJoin:
		pairs = joinedPairs(test, exp, opts.JoinKey)
	default:
		return nil, common.InvalidInputError("unknown compare mode %q", opts.Mode)
	}

	rep := &Report{Columns: columns}
	for _, p := range pairs {
		var differing []string
		for _, col := range checked {
			if !Equal(test.cell(p[0], col), exp.cell(p[1], col), opts.Tolerance) {
				differing = append(differing, col)
			}
		}
		if len(differing) == 0 {
			rep.Similar++
			continue
		}
		rep.Different++
		d := RowDiff{Columns: differing}
		if p[0] != nil {
			d.Test = project(test, p[0], columns)
			d.Key = test.cell(p[0], opts.JoinKey).Raw
		}
		if p[1] != nil {
			d.Experiment = project(exp, p[1], columns)
			if d.Key == "" {
				d.Key = exp.cell(p[1], opts.JoinKey).Raw
			}
		}
		rep.Diffs = append(rep.Diffs, d)
	}
	return rep, nil
}

func project(t *Table, row []Cell, columns []string) []Cell {
	return lo.Map(columns, func(c string, _ int) Cell { return t.cell(row, c) })
}

// sortedRows orders rows by key; missing keys sort last. The sort is stable.
func sortedRows(t *Table, key string) [][]Cell {
	rows := append([][]Cell(nil), t.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := t.cell(rows[i], key), t.cell(rows[j], key)
		switch {
		case a.Missing || b.Missing:
			return !a.Missing && b.Missing
		case a.IsNum && b.IsNum:
			return a.Num < b.Num
		default:
			return a.Raw < b.Raw
		}
	})
	return rows
}

func positionalPairs(test, exp *Table, key string) [][2][]Cell {
	a, b := sortedRows(test, key), sortedRows(exp, key)
	n := max(len(a), len(b))
	pairs := make([][2][]Cell, n)
	for i := range pairs {
		if i < len(a) {
			pairs[i][0] = a[i]
		}
		if i < len(b) {
			pairs[i][1] = b[i]
		}
	}
	return pairs
}

func joinedPairs(test, exp *Table, key string) [][2][]Cell {
	keyOf := func(t *Table, row []Cell) string {
		c := t.cell(row, key)
		if c.IsNum {
			return fmt.Sprint(c.Num)
		}
		return strings.TrimSpace(c.Raw)
	}

	pending := map[string][][]Cell{}
	var order []string
	for _, row := range sortedRows(exp, key) {
		k := keyOf(exp, row)
		if _, ok := pending[k]; !ok {
			order = append(order, k)
		}
		pending[k] = append(pending[k], row)
	}

	var pairs [][2][]Cell
	for _, row := range sortedRows(test, key) {
		k := keyOf(test, row)
		var match []Cell
		if q := pending[k]; len(q) > 0 {
			match, pending[k] = q[0], q[1:]
		}
		pairs = append(pairs, [2][]Cell{row, match})
	}
	for _, k := range order {
		for _, row := range pending[k] {
			pairs = append(pairs, [2][]Cell{nil, row})
		}
	}
	return pairs
}
