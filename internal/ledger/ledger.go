package ledger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// Outcome is one row of the run ledger.
type Outcome struct {
	RunID     string
	FileName  string
	Status    constants.OutcomeStatus
	Kind      string // failure kind; empty when written
	Attempts  int
	Error     string
	CreatedAt time.Time
}

// Ledger records what happened to every scheduled document of a run.
type Ledger interface {
	Record(ctx context.Context, runID string, res entity.Result) error
	Outcomes(ctx context.Context, runID string) ([]Outcome, error)
	Close() error
}

// Open picks the backend from the DSN: postgres:// or postgresql:// URLs use a pgx
// pool, anything else is a SQLite database path.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		pg, err := OpenPostgres(ctx, PostgresConfig{DSN: dsn}, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"), logger)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

func outcomeOf(runID string, res entity.Result) Outcome {
	o := Outcome{
		RunID:     runID,
		FileName:  res.FileName(),
		Status:    constants.OutcomeWritten,
		Attempts:  1,
		CreatedAt: time.Now().UTC(),
	}
	if res.Record != nil && res.Record.Attempts > 0 {
		o.Attempts = res.Record.Attempts
	}
	if res.IsFailure() {
		o.Status = constants.OutcomeFailed
		o.Kind = string(res.Failure.Kind)
		o.Attempts = res.Failure.Attempts
		if res.Failure.Cause != nil {
			o.Error = res.Failure.Cause.Error()
		}
	}
	return o
}
