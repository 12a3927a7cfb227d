// Package testset gathers the source documents referenced by a results CSV
// into a fresh directory tree so they can be re-run as a fixed evaluation set.
package testset

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

type Options struct {
	CSV    string // results file; needs file_name, payer_id and account_number columns
	Source string // tree of <account>_<tenant>/ folders
	Target string // must not exist or be empty

	FileColumn    string // if empty -> "file_name"
	TenantColumn  string // if empty -> "payer_id"
	AccountColumn string // if empty -> "account_number"

	Logger *slog.Logger
}

type Stats struct {
	Rows    int
	Copied  int
	Missing int
}

// Copy copies every document listed in opts.CSV from opts.Source into
// opts.Target/<account>_<tenant>/. Missing sources are counted, not fatal.
func Copy(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FileColumn == "" {
		opts.FileColumn = "file_name"
	}
	if opts.TenantColumn == "" {
		opts.TenantColumn = "payer_id"
	}
	if opts.AccountColumn == "" {
		opts.AccountColumn = "account_number"
	}

	if entries, err := os.ReadDir(opts.Target); err == nil && len(entries) > 0 {
		return stats, common.InvalidInputError("target %s exists and is not empty", opts.Target)
	}

	rows, err := readRows(opts)
	if err != nil {
		return stats, err
	}
	subdirs, err := listDirs(opts.Source)
	if err != nil {
		return stats, common.SourceReadError(opts.Source, err)
	}

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Rows++

		folder := r.account + "_" + r.tenant
		src := filepath.Join(opts.Source, folder, r.file)
		if _, err := os.Stat(src); err != nil {
			alt, ok := fallbackDir(subdirs, r.tenant)
			if !ok {
				stats.Missing++
				logger.Warn("testset.missing", "file_name", r.file, "folder", folder)
				continue
			}
			src = filepath.Join(opts.Source, alt, r.file)
			if _, err := os.Stat(src); err != nil {
				stats.Missing++
				logger.Warn("testset.missing", "file_name", r.file, "folder", alt)
				continue
			}
		}

		dst := filepath.Join(opts.Target, folder, r.file)
		if err := copyFile(src, dst); err != nil {
			return stats, errors.Wrapf(err, "copy %s", src)
		}
		stats.Copied++
		logger.Debug("testset.copied", "src", src, "dst", dst)
	}

	logger.Info("testset.done", "rows", stats.Rows, "copied", stats.Copied, "missing", stats.Missing)
	return stats, nil
}

type row struct {
	file, tenant, account string
}

func readRows(opts Options) ([]row, error) {
	f, err := os.Open(opts.CSV)
	if err != nil {
		return nil, common.SourceReadError(opts.CSV, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, common.InvalidInputError("%s: read header: %v", opts.CSV, err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	var idx [3]int
	for i, name := range []string{opts.FileColumn, opts.TenantColumn, opts.AccountColumn} {
		n, ok := col[name]
		if !ok {
			return nil, common.InvalidInputError("%s: missing column %q", opts.CSV, name)
		}
		idx[i] = n
	}

	var rows []row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s: read row", opts.CSV)
		}
		get := func(i int) string {
			if i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		rows = append(rows, row{file: get(idx[0]), tenant: get(idx[1]), account: get(idx[2])})
	}
}

func listDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

// fallbackDir returns the single folder ending in _<tenant>, if exactly one exists.
func fallbackDir(dirs []string, tenant string) (string, bool) {
	if tenant == "" {
		return "", false
	}
	var found string
	n := 0
	for _, d := range dirs {
		if strings.HasSuffix(d, "_"+tenant) {
			found = d
			n++
		}
	}
	return found, n == 1
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
