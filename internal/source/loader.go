package source

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// Loader turns one document file into plain text. Implementations must be safe for
// concurrent use.
type Loader interface {
	Load(ctx context.Context, path string) (text string, pages int, err error)
}

// TextLoader reads .txt documents as-is.
type TextLoader struct{}

func (TextLoader) Load(_ context.Context, path string) (string, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	return string(b), 1 + strings.Count(string(b), "\f"), nil
}

type PDFConfig struct {
	Pdftotext  string // binary name or absolute path; if empty -> "pdftotext"
	FirstPages int    // pages to extract from the start; if <= 0 -> 1
}

// PDFLoader extracts the leading pages of a PDF with poppler's pdftotext. The page count
// comes from pdfcpu, which also rejects files that are not readable PDFs.
type PDFLoader struct {
	cfg        PDFConfig
	runner     Runner
	countPages func(path string) (int, error)
	logger     *slog.Logger
}

func NewPDFLoader(cfg PDFConfig, logger *slog.Logger) *PDFLoader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.FirstPages <= 0 {
		cfg.FirstPages = 1
	}
	return &PDFLoader{
		cfg:        cfg,
		runner:     execRunner{},
		countPages: api.PageCountFile,
		logger:     logger,
	}
}

func (l *PDFLoader) Load(ctx context.Context, path string) (string, int, error) {
	pages, err := l.countPages(path)
	if err != nil {
		return "", 0, errors.Wrap(err, "inspect pdf")
	}
	last := l.cfg.FirstPages
	if pages > 0 && pages < last {
		last = pages
	}

	// pdftotext -layout -enc UTF-8 -eol unix -f 1 -l <last> <path> -
	out, errb, err := l.runner.Run(ctx, l.cfg.Pdftotext, l.logger,
		"-layout", "-enc", "UTF-8", "-eol", "unix", "-f", "1", "-l", strconv.Itoa(last), path, "-")
	if err != nil {
		return "", pages, errors.Wrapf(err, "pdftotext: %s", truncate(strings.TrimSpace(string(errb)), 512))
	}
	// pdftotext ends every page with a form feed
	text := strings.ReplaceAll(string(out), "\f", "\n")
	return text, pages, nil
}

// DefaultLoaders maps normalised extensions to the built-in loaders.
func DefaultLoaders(pdf PDFConfig, logger *slog.Logger) map[string]Loader {
	loaders, _ := LoadersFor(constants.DefaultExtensions, pdf, logger)
	return loaders
}

// LoadersFor registers a loader for each extension by its format.
func LoadersFor(exts []string, pdf PDFConfig, logger *slog.Logger) (map[string]Loader, error) {
	pdfLoader := NewPDFLoader(pdf, logger)
	loaders := make(map[string]Loader, len(exts))
	for _, ext := range exts {
		switch constants.MapExtToFormat(ext) {
		case constants.PDF:
			loaders[constants.NormalizeExt(ext)] = pdfLoader
		case constants.TEXT:
			loaders[constants.NormalizeExt(ext)] = TextLoader{}
		default:
			return nil, common.InvalidInputError("unsupported document extension %q", ext)
		}
	}
	return loaders, nil
}

// LoaderFor returns the loader registered for path's extension.
func LoaderFor(loaders map[string]Loader, path string) (Loader, bool) {
	l, ok := loaders[constants.NormalizeExt(filepath.Ext(path))]
	return l, ok
}
