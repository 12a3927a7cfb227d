package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ledger"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/vertex"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
	"github.com/joseph-ayodele/invoice-extractor/internal/source"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		configPath  = flag.String("config", "", "config file (default ./config.yaml if present)")
		dataDir     = flag.String("data_dir", "", "root directory of <account>_<tenant>/ document folders")
		output      = flag.String("output", "", "output CSV path")
		concurrency = flag.Int("concurrency", 0, "max in-flight extractions")
		maxDocs     = flag.Int("max_docs", 0, "stop after this many pending documents (0 = all)")
		provider    = flag.String("provider", "", "text generation provider: openai | vertex")
		model       = flag.String("model", "", "model name")
		maxAttempts = flag.Int("max_attempts", 0, "generation attempts per document")
		rpm         = flag.Int("rpm", -1, "requests per minute across all workers (0 = unlimited)")
	)
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data_dir":
			cfg.Pipeline.DataDir = *dataDir
		case "output":
			cfg.Pipeline.Output = *output
		case "concurrency":
			cfg.Pipeline.Concurrency = *concurrency
		case "max_docs":
			cfg.Pipeline.MaxDocs = *maxDocs
		case "provider":
			cfg.LLM.Provider = *provider
		case "model":
			cfg.LLM.Model = *model
		case "max_attempts":
			cfg.Extract.MaxAttempts = *maxAttempts
		case "rpm":
			cfg.Pipeline.RequestsPerMinute = *rpm
		}
	})
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLogger(os.Stdout, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("extract.failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	s := schema.Default()
	if cfg.Extract.SchemaFile != "" {
		var err error
		if s, err = schema.LoadFile(cfg.Extract.SchemaFile); err != nil {
			return err
		}
	}
	guidance := llm.DefaultGuidance
	if cfg.Extract.GuidanceFile != "" {
		var err error
		if guidance, err = llm.LoadGuidance(cfg.Extract.GuidanceFile); err != nil {
			return err
		}
	}

	gen, closeGen, err := newGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		return err
	}
	defer closeGen()

	extractor, err := llm.NewExtractor(gen, s, llm.NewPromptBuilder(s, guidance), llm.ExtractorConfig{
		MaxAttempts:          cfg.Extract.MaxAttempts,
		RetryInitialInterval: cfg.Extract.RetryInitialInterval,
		Temperature:          cfg.LLM.Temperature,
		TopP:                 cfg.LLM.TopP,
		MaxTokens:            cfg.LLM.MaxTokens,
		IDField:              cfg.Extract.IDField,
		TenantField:          cfg.Extract.TenantField,
	}, logger)
	if err != nil {
		return err
	}

	loaders, err := source.LoadersFor(cfg.Source.Extensions, source.PDFConfig{
		Pdftotext:  cfg.Source.Pdftotext,
		FirstPages: cfg.Source.FirstPages,
	}, logger)
	if err != nil {
		return err
	}
	scanner := source.NewScanner(source.ScanConfig{
		Loaders:       loaders,
		FooterMarkers: cfg.Source.FooterMarkers,
		TenantLabel:   cfg.Source.TenantLabel,
		MaxDocs:       cfg.Pipeline.MaxDocs,
		SkipHidden:    cfg.Source.SkipHidden,
		MissingTenant: source.Policy(cfg.Source.MissingTenantPolicy),
		LoadFailure:   source.Policy(cfg.Source.LoadFailurePolicy),
	}, logger)

	var recorder pipeline.OutcomeRecorder
	if cfg.Ledger.DSN != "" {
		l, err := ledger.Open(ctx, cfg.Ledger.DSN, logger)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := l.Close(); cerr != nil {
				logger.Error("ledger.close", "error", cerr)
			}
		}()
		recorder = l
	}

	p := pipeline.New(pipeline.Config{
		DataDir:           cfg.Pipeline.DataDir,
		Output:            cfg.Pipeline.Output,
		Concurrency:       cfg.Pipeline.Concurrency,
		RequestsPerMinute: cfg.Pipeline.RequestsPerMinute,
	}, s, scanner, extractor, recorder, logger)

	sum, err := p.Run(ctx)
	fmt.Printf("run %s: found=%d skipped=%d duplicates=%d pending=%d written=%d failed=%d scan_failed=%d elapsed=%s\n",
		sum.RunID, sum.Found, sum.Skipped, sum.Duplicates, sum.Pending, sum.Written, sum.Failed, sum.ScanFailed, sum.Elapsed.Round(time.Millisecond))
	return err
}

func newGenerator(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Generator, func(), error) {
	switch cfg.Provider {
	case "vertex":
		c, err := vertex.NewClient(ctx, vertex.Config{
			Project: cfg.VertexProject,
			Region:  cfg.VertexRegion,
			Model:   cfg.Model,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("llm.client", "provider", "vertex", "model", cfg.Model, "region", cfg.VertexRegion)
		return c, func() {
			if err := c.Close(); err != nil {
				logger.Error("vertex.close", "error", err)
			}
		}, nil
	default:
		c := openai.NewClient(openai.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Timeout:  cfg.Timeout,
			RetryMax: cfg.HTTPRetryMax,
			JSONMode: true,
		}, logger)
		logger.Info("llm.client", "provider", "openai", "model", cfg.Model)
		return c, func() {}, nil
	}
}
