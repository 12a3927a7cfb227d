package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/output"
	"github.com/joseph-ayodele/invoice-extractor/internal/resume"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
	"github.com/joseph-ayodele/invoice-extractor/internal/source"
)

// Extractor is the per-document extraction step.
type Extractor interface {
	Extract(ctx context.Context, doc entity.PendingDocument) entity.Result
}

// OutcomeRecorder observes every result of a run.
type OutcomeRecorder interface {
	Record(ctx context.Context, runID string, res entity.Result) error
}

// RecordWriter is the output store a run appends to.
type RecordWriter interface {
	Write(rec *entity.Record) error
	Close() error
}

type openFunc func(path string, header []string, logger *slog.Logger) (RecordWriter, error)

func openCSV(path string, header []string, logger *slog.Logger) (RecordWriter, error) {
	w, err := output.Open(path, header, logger)
	if err != nil {
		return nil, err
	}
	return w, nil
}

type Config struct {
	DataDir           string
	Output            string
	Concurrency       int
	RequestsPerMinute int
}

// Summary is the final tally of a run.
type Summary struct {
	RunID      string
	Found      int // documents with a recognised extension
	Skipped    int // already present in the output
	Duplicates int // same file name seen earlier in the scan
	Pending    int // scheduled for extraction
	Written    int
	Failed     int
	Abandoned  int // results drained unwritten after an output failure
	ScanFailed int // dropped by a skip policy during the scan
	Elapsed    time.Duration
}

type Pipeline struct {
	cfg       Config
	schema    *schema.Schema
	scanner   *source.Scanner
	extractor Extractor
	recorder  OutcomeRecorder
	open      openFunc
	logger    *slog.Logger
}

// New wires a pipeline. recorder may be nil.
func New(cfg Config, s *schema.Schema, scanner *source.Scanner, extractor Extractor, recorder OutcomeRecorder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		schema:    s,
		scanner:   scanner,
		extractor: extractor,
		recorder:  recorder,
		open:      openCSV,
		logger:    logger,
	}
}

// Run resumes from the output store, extracts every pending document and appends each
// record as it completes. Extraction failures are counted, never fatal; an output
// write failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) (sum Summary, err error) {
	start := time.Now()
	sum.RunID = uuid.NewString()
	ctx = common.WithRunID(ctx, sum.RunID)
	log := p.logger.With("run_id", sum.RunID)
	defer func() { sum.Elapsed = time.Since(start) }()

	idx, err := resume.Load(p.cfg.Output)
	if err != nil {
		return sum, err
	}
	log.Info("pipeline.resume.loaded", "output", p.cfg.Output, "processed", idx.Len())

	docs, stats, err := p.scanner.Scan(ctx, p.cfg.DataDir, idx)
	sum.Found = stats.Matched
	sum.Skipped = stats.Skipped
	sum.Duplicates = stats.Duplicates
	sum.ScanFailed = stats.Failed
	if err != nil {
		return sum, err
	}
	sum.Pending = len(docs)
	log.Info("pipeline.scan.done", "found", sum.Found, "skipped", sum.Skipped, "pending", sum.Pending,
		"elapsed_ms", time.Since(start).Milliseconds())

	w, err := p.open(p.cfg.Output, p.schema.Header(), log)
	if err != nil {
		return sum, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if len(docs) == 0 {
		log.Info("pipeline.nothing_to_do")
		return sum, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := NewScheduler(
		WithWorkers(p.cfg.Concurrency),
		WithRequestsPerMinute(p.cfg.RequestsPerMinute),
		WithLogger(log),
	)
	log.Info("pipeline.extract.start", "pending", sum.Pending, "workers", sched.Workers())

	var writeErr error
	for res := range sched.Run(runCtx, docs, p.extractor.Extract) {
		if writeErr != nil {
			sum.Abandoned++
			continue
		}
		if res.IsFailure() {
			sum.Failed++
			log.Error("pipeline.result.failed",
				"file_name", res.Failure.FileName,
				"kind", res.Failure.Kind,
				"attempts", res.Failure.Attempts,
				"error", res.Failure.Cause,
			)
		} else if err := w.Write(res.Record); err != nil {
			if !errors.Is(err, common.ErrPersistence) {
				err = common.PersistenceError(err, "write record")
			}
			writeErr = err
			sum.Abandoned++
			cancel()
			log.Error("pipeline.output.write_failed", "file_name", res.Record.FileName, "error", err)
			continue
		} else {
			sum.Written++
			log.Info("pipeline.result.written", "file_name", res.Record.FileName)
		}
		p.record(runCtx, log, sum.RunID, res)
	}

	if writeErr != nil {
		log.Error("pipeline.extract.aborted", "written", sum.Written, "abandoned", sum.Abandoned)
		return sum, writeErr
	}
	if cerr := ctx.Err(); cerr != nil {
		return sum, errors.Wrap(cerr, "run interrupted")
	}
	log.Info("pipeline.extract.done", "written", sum.Written, "failed", sum.Failed,
		"elapsed_ms", time.Since(start).Milliseconds())
	return sum, nil
}

func (p *Pipeline) record(ctx context.Context, log *slog.Logger, runID string, res entity.Result) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(context.WithoutCancel(ctx), runID, res); err != nil {
		log.Warn("pipeline.ledger.record_failed", "file_name", res.FileName(), "error", err)
	}
}
