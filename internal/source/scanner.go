package source

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// Policy decides what a per-document source error does to the scan.
type Policy string

const (
	PolicyAbort Policy = "abort"
	PolicySkip  Policy = "skip"
)

// Skipper reports identifiers that were already processed.
type Skipper interface {
	Contains(name string) bool
}

type ScanConfig struct {
	Loaders       map[string]Loader // keyed by normalised extension
	FooterMarkers []string
	TenantLabel   string
	MaxDocs       int // 0 = unbounded
	SkipHidden    bool
	MissingTenant Policy
	LoadFailure   Policy
	ProgressEvery int // if <= 0 -> 100
}

type ScanStats struct {
	Scanned    int // directory entries visited
	Matched    int // files with a registered extension
	Skipped    int // already in the resume index
	Duplicates int // same file name already pending from another folder
	Loaded     int // pending documents produced
	Failed     int // skipped because of a source error
}

type Scanner struct {
	cfg    ScanConfig
	logger *slog.Logger
}

func NewScanner(cfg ScanConfig, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TenantLabel == "" {
		cfg.TenantLabel = constants.DefaultTenantLabel
	}
	if cfg.MissingTenant == "" {
		cfg.MissingTenant = PolicyAbort
	}
	if cfg.LoadFailure == "" {
		cfg.LoadFailure = PolicyAbort
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 100
	}
	return &Scanner{cfg: cfg, logger: logger}
}

// Scan walks root in lexical order and returns the documents not yet in skip.
func (s *Scanner) Scan(ctx context.Context, root string, skip Skipper) ([]entity.PendingDocument, ScanStats, error) {
	var stats ScanStats
	if strings.TrimSpace(root) == "" {
		return nil, stats, common.InvalidInputError("data directory is required")
	}

	start := time.Now()
	var docs []entity.PendingDocument
	pending := map[string]string{} // file name -> first path

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			return s.handle(s.cfg.LoadFailure, path, walkErr, &stats)
		}
		if s.cfg.SkipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		loader, ok := LoaderFor(s.cfg.Loaders, path)
		if !ok {
			return nil
		}
		stats.Matched++

		name := d.Name()
		if skip != nil && skip.Contains(name) {
			stats.Skipped++
			s.logger.Debug("source.scan.already_processed", "file_name", name)
			return nil
		}

		if first, dup := pending[name]; dup {
			stats.Duplicates++
			s.logger.Warn("source.scan.duplicate_name", "file_name", name, "path", path, "kept", first)
			return nil
		}

		tenant, err := TenantFromDir(filepath.Base(filepath.Dir(path)))
		if err != nil {
			return s.handle(s.cfg.MissingTenant, path, err, &stats)
		}

		text, pages, err := loader.Load(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return s.handle(s.cfg.LoadFailure, path, err, &stats)
		}

		pending[name] = path
		docs = append(docs, entity.PendingDocument{
			Path:     path,
			FileName: name,
			TenantID: tenant,
			Text:     WithHeader(name, s.cfg.TenantLabel, tenant, StripFooter(text, s.cfg.FooterMarkers)),
			Pages:    pages,
		})
		stats.Loaded++
		if stats.Loaded%s.cfg.ProgressEvery == 0 {
			s.logger.Info("source.scan.progress", "loaded", stats.Loaded, "elapsed_ms", time.Since(start).Milliseconds())
		}
		if s.cfg.MaxDocs > 0 && stats.Loaded >= s.cfg.MaxDocs {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return docs, stats, err
		}
		if !errors.Is(err, common.ErrSourceRead) {
			err = common.SourceReadError(root, err)
		}
		s.logger.Error("source.scan.aborted", "root", root, "error", err)
		return docs, stats, err
	}

	s.logger.Info("source.scan.done",
		"root", root,
		"matched", stats.Matched,
		"skipped", stats.Skipped,
		"duplicates", stats.Duplicates,
		"loaded", stats.Loaded,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return docs, stats, nil
}

func (s *Scanner) handle(policy Policy, path string, err error, stats *ScanStats) error {
	if policy == PolicySkip {
		stats.Failed++
		s.logger.Warn("source.scan.skipped", "path", path, "error", err)
		return nil
	}
	return common.SourceReadError(path, err)
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
