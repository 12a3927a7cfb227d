package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/source"
)

// dump-text prints the text a document would be sent to the model with.
func main() {
	logger := common.NewLogger(os.Stderr, "info")
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "dump-text <document-path>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := common.LoadConfig("")
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	loaders, err := source.LoadersFor(cfg.Source.Extensions, source.PDFConfig{
		Pdftotext:  cfg.Source.Pdftotext,
		FirstPages: cfg.Source.FirstPages,
	}, logger)
	if err != nil {
		logger.Error("loaders", "error", err)
		os.Exit(1)
	}
	loader, ok := source.LoaderFor(loaders, path)
	if !ok {
		logger.Error("unsupported extension", "path", path)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	text, pages, err := loader.Load(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	tenant, err := source.TenantFromDir(filepath.Base(filepath.Dir(path)))
	if err != nil {
		logger.Warn("no tenant in folder name", "path", path, "error", err)
	}
	body := source.StripFooter(text, cfg.Source.FooterMarkers)
	fmt.Println(source.WithHeader(filepath.Base(path), cfg.Source.TenantLabel, tenant, body))

	logger.Info("text extraction OK",
		"format", constants.MapExtToFormat(filepath.Ext(path)),
		"pages", pages,
		"bytes", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
