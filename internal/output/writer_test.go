package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriter_NewFileGetsHeaderAndProjectedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := Open(path, []string{"file_name", "total_amount", "note", "ri_invoice"}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Write(&entity.Record{FileName: "a.pdf", Values: map[string]any{
		"file_name":    "a.pdf",
		"total_amount": decimal.RequireFromString("-12.50"),
		"note":         "line one\nsaid \"hi\", twice",
		"ri_invoice":   true,
		"extra":        "dropped",
	}}))
	require.NoError(t, w.Write(&entity.Record{FileName: "b.pdf", Values: map[string]any{
		"file_name": "b.pdf",
	}}))
	assert.Equal(t, 2, w.Rows())
	require.NoError(t, w.Close())

	rows := readAll(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"file_name", "total_amount", "note", "ri_invoice"}, rows[0])
	assert.Equal(t, []string{"a.pdf", "-12.5", "line one\nsaid \"hi\", twice", "true"}, rows[1])
	assert.Equal(t, []string{"b.pdf", "", "", ""}, rows[2])
}

func TestWriter_ExistingHeaderWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("total_amount,file_name\n1,old.pdf\n"), 0o644))

	w, err := Open(path, []string{"file_name", "total_amount", "payer_id"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"total_amount", "file_name"}, w.Header())

	require.NoError(t, w.Write(&entity.Record{FileName: "new.pdf", Values: map[string]any{
		"file_name":    "new.pdf",
		"total_amount": decimal.Zero,
		"payer_id":     "P1",
	}}))
	require.NoError(t, w.Close())

	rows := readAll(t, path)
	assert.Equal(t, [][]string{
		{"total_amount", "file_name"},
		{"1", "old.pdf"},
		{"0", "new.pdf"},
	}, rows)
}

func TestWriter_RowsVisibleBeforeClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := Open(path, []string{"file_name"}, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(&entity.Record{FileName: "a.pdf", Values: map[string]any{"file_name": "a.pdf"}}))
	assert.Equal(t, [][]string{{"file_name"}, {"a.pdf"}}, readAll(t, path))
}

func TestOpen_Unwritable(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "out.csv"), []string{"file_name"}, nil)
	assert.Error(t, err)
}

func TestWriter_RepairsUnterminatedLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("file_name\nold.pdf"), 0o644))

	w, err := Open(path, []string{"file_name"}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(&entity.Record{FileName: "new.pdf", Values: map[string]any{"file_name": "new.pdf"}}))
	require.NoError(t, w.Close())

	assert.Equal(t, [][]string{{"file_name"}, {"old.pdf"}, {"new.pdf"}}, readAll(t, path))
}
