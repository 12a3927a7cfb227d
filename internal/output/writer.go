package output

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

// Writer appends records to a CSV output store, one flushed row per record.
// It is not safe for concurrent use.
type Writer struct {
	path   string
	f      *os.File
	csv    *csv.Writer
	header []string
	rows   int
	logger *slog.Logger
}

// Open opens path for appending. An empty or new file gets schemaHeader; an existing
// file keeps its own header so column order never changes between runs.
func Open(path string, schemaHeader []string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, common.PersistenceError(err, "open output")
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, common.PersistenceError(err, "stat output")
	}

	w := &Writer{path: path, f: f, csv: csv.NewWriter(f), logger: logger}
	if st.Size() == 0 {
		w.header = append([]string(nil), schemaHeader...)
		if err := w.writeRow(w.header); err != nil {
			_ = f.Close()
			return nil, err
		}
		logger.Info("output.header.written", "path", path, "columns", len(w.header))
		return w, nil
	}

	header, err := readHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, common.PersistenceError(err, "read existing header")
	}
	if err := terminateLastLine(f, st.Size()); err != nil {
		_ = f.Close()
		return nil, common.PersistenceError(err, "repair last line")
	}
	w.header = header
	logger.Info("output.header.reused", "path", path, "columns", len(header))
	return w, nil
}

func readHeader(f *os.File) ([]string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "parse header")
	}
	// O_APPEND writes always land at the end; the seek only affects reads.
	return header, nil
}

// terminateLastLine appends a newline when a previous run died mid-row, so the next
// record starts on its own line.
func terminateLastLine(f *os.File, size int64) error {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err := f.Write([]byte("\n"))
	return err
}

func (w *Writer) Header() []string {
	return append([]string(nil), w.header...)
}

// Rows is the number of records appended by this writer.
func (w *Writer) Rows() int {
	return w.rows
}

// Write projects rec onto the header and appends one row. Header columns missing from
// the record become empty cells; record fields outside the header are dropped.
func (w *Writer) Write(rec *entity.Record) error {
	row := make([]string, len(w.header))
	for i, col := range w.header {
		if v, ok := rec.Get(col); ok {
			row[i] = schema.FormatValue(v)
		}
	}
	if err := w.writeRow(row); err != nil {
		return err
	}
	w.rows++
	w.logger.Debug("output.row.written", "file_name", rec.FileName)
	return nil
}

func (w *Writer) writeRow(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return common.PersistenceError(err, "append row")
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return common.PersistenceError(err, "flush row")
	}
	return nil
}

func (w *Writer) Close() error {
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.f.Close()
	if flushErr != nil {
		return common.PersistenceError(flushErr, "flush output")
	}
	if closeErr != nil {
		return common.PersistenceError(closeErr, "close output")
	}
	return nil
}
