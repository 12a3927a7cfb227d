package ledger

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS extraction_outcomes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT    NOT NULL,
	file_name    TEXT    NOT NULL,
	status       TEXT    NOT NULL,
	failure_kind TEXT    NOT NULL DEFAULT '',
	attempts     INTEGER NOT NULL,
	error        TEXT    NOT NULL DEFAULT '',
	created_at   TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS extraction_outcomes_run_id ON extraction_outcomes (run_id);`

// SQLite is a ledger in a local database file, via the pure-Go modernc driver.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.PersistenceError(err, "open sqlite ledger")
	}
	// one writer at a time; the pipeline records from a single goroutine anyway
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, common.PersistenceError(err, "create ledger table")
	}
	logger.Info("ledger.sqlite.opened", "path", path)
	return &SQLite{db: db, logger: logger}, nil
}

func (l *SQLite) Record(ctx context.Context, runID string, res entity.Result) error {
	o := outcomeOf(runID, res)
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO extraction_outcomes (run_id, file_name, status, failure_kind, attempts, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.FileName, string(o.Status), o.Kind, o.Attempts, o.Error, o.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return common.PersistenceError(err, "insert outcome")
	}
	return nil
}

func (l *SQLite) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, file_name, status, failure_kind, attempts, error, created_at
		 FROM extraction_outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, common.PersistenceError(err, "query outcomes")
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o       Outcome
			status  string
			created string
		)
		if err := rows.Scan(&o.RunID, &o.FileName, &status, &o.Kind, &o.Attempts, &o.Error, &created); err != nil {
			return nil, common.PersistenceError(err, "scan outcome")
		}
		o.Status = constants.OutcomeStatus(status)
		o.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, common.PersistenceError(err, "iterate outcomes")
	}
	return out, nil
}

func (l *SQLite) Close() error {
	l.logger.Info("ledger.sqlite.closed")
	return l.db.Close()
}
