package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS extraction_outcomes (
	id           BIGSERIAL PRIMARY KEY,
	run_id       TEXT        NOT NULL,
	file_name    TEXT        NOT NULL,
	status       TEXT        NOT NULL,
	failure_kind TEXT        NOT NULL DEFAULT '',
	attempts     INTEGER     NOT NULL,
	error        TEXT        NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS extraction_outcomes_run_id ON extraction_outcomes (run_id);`

type PostgresConfig struct {
	DSN             string
	MaxConns        int32         // if <= 0 -> 4
	MaxConnLifetime time.Duration // 0 keeps the pgx default
	DialTimeout     time.Duration // if <= 0 -> 10s
}

// Postgres is a ledger shared between machines, backed by a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 4
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	logger.Info("ledger.postgres.connecting")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, common.InvalidInputError("ledger dsn: %v", err)
	}
	pc.MaxConns = cfg.MaxConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "invoice-extractor"

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, common.PersistenceError(err, "connect ledger")
	}
	if err := HealthCheck(dialCtx, pool, 0, logger); err != nil {
		pool.Close()
		return nil, common.PersistenceError(err, "ping ledger")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, common.PersistenceError(err, "create ledger table")
	}
	logger.Info("ledger.postgres.connected")
	return &Postgres{pool: pool, logger: logger}, nil
}

// HealthCheck pings the pool to catch DSN issues early.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("ledger.postgres.ping_failed", "error", err)
		return err
	}
	logger.Debug("ledger.postgres.ping_ok")
	return nil
}

func (l *Postgres) Record(ctx context.Context, runID string, res entity.Result) error {
	o := outcomeOf(runID, res)
	_, err := l.pool.Exec(ctx,
		`INSERT INTO extraction_outcomes (run_id, file_name, status, failure_kind, attempts, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.RunID, o.FileName, string(o.Status), o.Kind, o.Attempts, o.Error, o.CreatedAt)
	if err != nil {
		return common.PersistenceError(err, "insert outcome")
	}
	return nil
}

func (l *Postgres) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT run_id, file_name, status, failure_kind, attempts, error, created_at
		 FROM extraction_outcomes WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, common.PersistenceError(err, "query outcomes")
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o      Outcome
			status string
		)
		if err := rows.Scan(&o.RunID, &o.FileName, &status, &o.Kind, &o.Attempts, &o.Error, &o.CreatedAt); err != nil {
			return nil, common.PersistenceError(err, "scan outcome")
		}
		o.Status = constants.OutcomeStatus(status)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, common.PersistenceError(err, "iterate outcomes")
	}
	return out, nil
}

func (l *Postgres) Close() error {
	l.logger.Info("ledger.postgres.closing")
	l.pool.Close()
	return nil
}
