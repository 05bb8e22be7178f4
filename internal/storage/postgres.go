package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"passthru_parser/internal/passthru"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// PostgresDB wraps a PostgreSQL connection pool for the shared archive.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() error {
	d.pool.Close()
	return nil
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id              UUID PRIMARY KEY,
		source          TEXT NOT NULL,
		output_path     TEXT,
		created_at      TIMESTAMPTZ NOT NULL,
		expressions     INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);

	CREATE TABLE IF NOT EXISTS expressions (
		run_id          UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq             INTEGER NOT NULL,
		kind            TEXT NOT NULL,
		first_line      TEXT NOT NULL,
		segment_start   INTEGER NOT NULL,
		segment_end     INTEGER NOT NULL,
		elements        JSONB,
		missing_fields  TEXT[],
		valid           BOOLEAN NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_expressions_kind ON expressions(kind);

	CREATE TABLE IF NOT EXISTS expression_fields (
		run_id          UUID NOT NULL,
		seq             INTEGER NOT NULL,
		position        INTEGER NOT NULL,
		name            TEXT NOT NULL,
		value           TEXT NOT NULL,
		valid           BOOLEAN NOT NULL,
		PRIMARY KEY (run_id, seq, position),
		FOREIGN KEY (run_id, seq) REFERENCES expressions(run_id, seq) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_expression_fields_name ON expression_fields(name, valid);
	`

	_, err := d.pool.Exec(ctx, schema)
	return err
}

// SaveSet replaces the run for set and inserts its expressions and fields
// in one transaction.
func (d *PostgresDB) SaveSet(ctx context.Context, set *passthru.ExpressionSet) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM runs WHERE id = $1`, set.ID); err != nil {
		return fmt.Errorf("clear run: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO runs (id, source, output_path, created_at, expressions)
		VALUES ($1, $2, $3, $4, $5)
	`, set.ID, set.Source, set.OutputPath, set.CreatedAt, set.Len())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for i, e := range set.Expressions {
		var elements []byte
		if len(e.Elements) > 0 {
			if elements, err = json.Marshal(e.Elements); err != nil {
				return fmt.Errorf("marshal elements: %w", err)
			}
		}
		batch.Queue(`
			INSERT INTO expressions (run_id, seq, kind, first_line, segment_start, segment_end, elements, missing_fields, valid)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, set.ID, i, e.Kind.String(), e.Segment.FirstLine(), e.Segment.Start, e.Segment.End,
			elements, e.MissingFields(), e.Valid())

		for pos, f := range e.Fields {
			batch.Queue(`
				INSERT INTO expression_fields (run_id, seq, position, name, value, valid)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, set.ID, i, pos, f.Name, f.Value, f.State == passthru.Valid)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert expressions: %w", err)
	}
	return tx.Commit(ctx)
}

// Run is a stored run header.
type Run struct {
	ID          uuid.UUID
	Source      string
	OutputPath  *string
	CreatedAt   time.Time
	Expressions int
}

// GetRun retrieves a run by ID. It returns nil when not found.
func (d *PostgresDB) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var r Run
	err := d.pool.QueryRow(ctx, `
		SELECT id, source, output_path, created_at, expressions FROM runs WHERE id = $1
	`, id).Scan(&r.ID, &r.Source, &r.OutputPath, &r.CreatedAt, &r.Expressions)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// FieldFailure counts how often a field of a kind failed validation.
type FieldFailure struct {
	Kind    string
	Field   string
	Invalid int
	Total   int
}

// FieldFailures returns per-field invalid counts across all runs, worst first.
func (d *PostgresDB) FieldFailures(ctx context.Context, limit int) ([]FieldFailure, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.pool.Query(ctx, `
		SELECT e.kind, f.name, COUNT(*) FILTER (WHERE NOT f.valid), COUNT(*)
		FROM expression_fields f
		JOIN expressions e ON e.run_id = f.run_id AND e.seq = f.seq
		GROUP BY e.kind, f.name
		ORDER BY 3 DESC, 1, 2
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FieldFailure
	for rows.Next() {
		var f FieldFailure
		if err := rows.Scan(&f.Kind, &f.Field, &f.Invalid, &f.Total); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
