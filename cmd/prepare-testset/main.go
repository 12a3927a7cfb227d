package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/testset"
)

func main() {
	var (
		csvPath = flag.String("csv", "", "results CSV listing the documents (required)")
		source  = flag.String("source", "", "source tree of <account>_<tenant>/ folders (required)")
		target  = flag.String("target", "", "new directory to copy into (required)")
	)
	flag.Parse()

	if *csvPath == "" || *source == "" || *target == "" {
		fmt.Fprintln(os.Stderr, "Error: --csv, --source and --target are required")
		os.Exit(1)
	}

	logger := common.NewLogger(os.Stdout, "info")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := testset.Copy(ctx, testset.Options{CSV: *csvPath, Source: *source, Target: *target, Logger: logger})
	if err != nil {
		logger.Error("testset.failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("rows=%d copied=%d missing=%d\n", stats.Rows, stats.Copied, stats.Missing)
}
