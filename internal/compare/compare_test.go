package compare

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func mustParse(t *testing.T, name, data string) *Table {
	t.Helper()
	tbl, err := ParseCSV(name, strings.NewReader(data))
	require.NoError(t, err)
	return tbl
}

func TestParseCSVInfersColumnTypes(t *testing.T) {
	tbl := mustParse(t, "t", "file_name,total,note\na.pdf,1.5,x\nb.pdf,,2\n")
	assert.Equal(t, []bool{false, true, false}, tbl.numeric)
	assert.True(t, tbl.Rows[1][1].Missing)
	assert.Equal(t, "2", tbl.Rows[1][2].Str)
}

func TestEqual(t *testing.T) {
	num := func(v float64) Cell { return Cell{IsNum: true, Num: v} }
	str := func(s string) Cell { return Cell{Raw: s, Str: s} }
	missing := Cell{Missing: true}

	cases := []struct {
		name string
		a, b Cell
		want bool
	}{
		{"within tolerance", num(1.00001), num(1.00002), true},
		{"outside tolerance", num(1.0), num(1.001), false},
		{"half tolerance apart", num(1.00005), num(1.0001), true},
		{"trailing zeros", num(10.5), num(10.50), true},
		{"missing vs zero", missing, num(0), true},
		{"zero vs missing", num(0), missing, true},
		{"missing vs nonzero", missing, num(3), false},
		{"missing vs string", missing, str("x"), false},
		{"both missing", missing, missing, true},
		{"string case and space", str(" ACME Ltd "), str("acme ltd"), true},
		{"padded company name", str("  Acme Corp "), str("acme corp"), true},
		{"different strings", str("acme"), str("acme inc"), false},
		{"number vs string", num(1), str("1"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Equal(tc.a, tc.b, DefaultTolerance))
			assert.Equal(t, tc.want, Equal(tc.b, tc.a, DefaultTolerance), "symmetric")
		})
	}
}

func TestComparePositional(t *testing.T) {
	test := mustParse(t, "test", "file_name,total,vendor\nb.pdf,20,Beta\na.pdf,10,Acme\nc.pdf,5,Gamma\n")
	exp := mustParse(t, "exp", "file_name,vendor,total,extra\na.pdf,ACME,10.00001,1\nb.pdf,Beta,21,1\n")

	rep, err := Compare(test, exp, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"file_name", "total", "vendor"}, rep.Columns)
	assert.Equal(t, 1, rep.Similar)
	assert.Equal(t, 2, rep.Different)
	assert.Equal(t, "Similar rows: 1, Different rows: 2", rep.Summary())

	require.Len(t, rep.Diffs, 2)
	assert.Equal(t, "b.pdf", rep.Diffs[0].Key)
	assert.Equal(t, []string{"total"}, rep.Diffs[0].Columns)
	assert.Equal(t, "c.pdf", rep.Diffs[1].Key)
	assert.Nil(t, rep.Diffs[1].Experiment)
}

func TestCompareIsSymmetric(t *testing.T) {
	a := mustParse(t, "a", "file_name,total\na.pdf,1\nb.pdf,2\nc.pdf,3\n")
	b := mustParse(t, "b", "file_name,total\na.pdf,1\nb.pdf,9\n")

	ab, err := Compare(a, b, Options{})
	require.NoError(t, err)
	ba, err := Compare(b, a, Options{})
	require.NoError(t, err)
	assert.Equal(t, ab.Similar, ba.Similar)
	assert.Equal(t, ab.Different, ba.Different)
}

func TestCompareIgnoresColumns(t *testing.T) {
	test := mustParse(t, "test", "file_name,total,notes\na.pdf,10,first\n")
	exp := mustParse(t, "exp", "file_name,total,notes\na.pdf,10,second\n")

	rep, err := Compare(test, exp, Options{Ignore: []string{"notes"}})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Similar)
	assert.Equal(t, 0, rep.Different)
	assert.Contains(t, rep.Columns, "notes")
}

func TestCompareJoin(t *testing.T) {
	test := mustParse(t, "test", "file_name,total\na.pdf,1\nb.pdf,2\nd.pdf,4\n")
	exp := mustParse(t, "exp", "file_name,total\nb.pdf,2\na.pdf,1\nc.pdf,3\n")

	rep, err := Compare(test, exp, Options{Mode: ModeJoin})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Similar)
	assert.Equal(t, 2, rep.Different)

	keys := []string{rep.Diffs[0].Key, rep.Diffs[1].Key}
	assert.ElementsMatch(t, []string{"c.pdf", "d.pdf"}, keys)
}

func TestCompareMissingJoinKey(t *testing.T) {
	test := mustParse(t, "test", "id,total\n1,1\n")
	exp := mustParse(t, "exp", "file_name,total\na.pdf,1\n")

	_, err := Compare(test, exp, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingJoinKey))
}

func TestModelName(t *testing.T) {
	assert.Equal(t, "gpt-4o", ModelName("/runs/invoices-gpt-4o.csv", "invoices-"))
	assert.Equal(t, "invoices-gpt-4o", ModelName("invoices-gpt-4o.csv", ""))
}

func diffReport(t *testing.T) *Report {
	t.Helper()
	test := mustParse(t, "test", "file_name,total\na.pdf,1\nb.pdf,2\n")
	exp := mustParse(t, "exp", "file_name,total\na.pdf,1\nb.pdf,2.5\n")
	rep, err := Compare(test, exp, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Different)
	return rep
}

func TestExportCSV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "diff", "out.csv")
	require.NoError(t, Export(out, diffReport(t), "base", "candidate"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "model_name,file_name,total\nbase,b.pdf,2\ncandidate,b.pdf,2.5\n", string(data))
}

func TestExportXLSX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, Export(out, diffReport(t), "base", "candidate"))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(diffSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"model_name", "file_name", "total"}, rows[0])
	assert.Equal(t, []string{"base", "b.pdf", "2"}, rows[1])
	assert.Equal(t, []string{"candidate", "b.pdf", "2.5"}, rows[2])
}

func TestExportCSVReportsWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	err := Export("/dev/full", diffReport(t), "base", "candidate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diff file")
}
