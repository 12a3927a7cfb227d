package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/compare"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type options struct {
	testPath, expPath, outPath string
	prefix                     string
	skipColumns                string
	joinKey                    string
	mode                       string
	tolerance                  float64
}

func main() {
	var opts options
	flag.StringVar(&opts.testPath, "test_path", "", "baseline results CSV (required)")
	flag.StringVar(&opts.expPath, "experiment_path", "", "candidate results CSV (required)")
	flag.StringVar(&opts.outPath, "output_path", "", "differences file, .xlsx or .csv (optional)")
	flag.StringVar(&opts.prefix, "prefix", "invoices-", "removed from file names to form model names")
	flag.StringVar(&opts.skipColumns, "skip_columns", "", "comma separated columns ignored for equality")
	flag.StringVar(&opts.joinKey, "join_key", "file_name", "column rows are aligned on")
	flag.StringVar(&opts.mode, "mode", string(compare.ModePositional), "positional | join")
	flag.Float64Var(&opts.tolerance, "tolerance", compare.DefaultTolerance, "absolute numeric tolerance")
	logLevel := flag.String("log_level", "info", "debug | info | warn | error")
	flag.Parse()

	if opts.testPath == "" || opts.expPath == "" {
		printError("Error: --test_path and --experiment_path are required\n")
		os.Exit(1)
	}

	logger := common.NewLogger(os.Stderr, *logLevel)
	slog.SetDefault(logger)

	if err := run(context.Background(), opts, os.Stdout, logger); err != nil {
		logger.Error("compare.failed", "error", err)
		os.Exit(1)
	}
}

// run prints the similar/different counts, then exports the differing rows when
// an output path is set and there is something to export.
func run(ctx context.Context, opts options, stdout io.Writer, logger *slog.Logger) error {
	test, exp, err := compare.LoadPair(ctx, opts.testPath, opts.expPath)
	if err != nil {
		return err
	}

	ignore := lo.Compact(lo.Map(strings.Split(opts.skipColumns, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
	rep, err := compare.Compare(test, exp, compare.Options{
		JoinKey:   opts.joinKey,
		Ignore:    ignore,
		Tolerance: opts.tolerance,
		Mode:      compare.Mode(opts.mode),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, rep.Summary())

	testName, expName := compare.ModelName(opts.testPath, opts.prefix), compare.ModelName(opts.expPath, opts.prefix)
	logger.Info("compare.done",
		"test", testName, "experiment", expName,
		"similar", rep.Similar, "different", rep.Different)

	if opts.outPath == "" || len(rep.Diffs) == 0 {
		return nil
	}
	if err := compare.Export(opts.outPath, rep, testName, expName); err != nil {
		return errors.Wrapf(err, "export %s", opts.outPath)
	}
	logger.Info("compare.exported", "path", opts.outPath, "rows", 2*len(rep.Diffs))
	return nil
}
