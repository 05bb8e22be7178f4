package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"passthru_parser/internal/passthru"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ClickHouseDB wraps a ClickHouse connection holding one row per extracted
// field, for validation analytics across many runs.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	return d.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS field_results (
			run_id      UUID,
			source      String,
			created_at  DateTime64(3),
			seq         UInt32,
			kind        LowCardinality(String),
			field       LowCardinality(String),
			value       String,
			resolved    Bool,
			valid       Bool
		) ENGINE = MergeTree()
		ORDER BY (kind, field, created_at, run_id, seq)
	`)
}

// SaveSet appends one row per field of every expression in set.
func (d *ClickHouseDB) SaveSet(ctx context.Context, set *passthru.ExpressionSet) error {
	if set.Len() == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO field_results (run_id, source, created_at, seq, kind, field, value, resolved, valid)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, e := range set.Expressions {
		for _, f := range e.Fields {
			err := batch.Append(set.ID, set.Source, set.CreatedAt, uint32(i), e.Kind.String(),
				f.Name, f.Value, f.Resolved(), f.State == passthru.Valid)
			if err != nil {
				return fmt.Errorf("append to batch: %w", err)
			}
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// InvalidRate is the share of invalid results for one field of one kind.
type InvalidRate struct {
	Kind    string
	Field   string
	Invalid uint64
	Total   uint64
}

// Rate returns Invalid/Total.
func (r InvalidRate) Rate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Invalid) / float64(r.Total)
}

// InvalidRates returns validation failure counts per kind and field, worst
// first. An empty kind covers every kind.
func (d *ClickHouseDB) InvalidRates(ctx context.Context, kind string, limit int) ([]InvalidRate, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT kind, field, countIf(NOT valid), count() FROM field_results`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += fmt.Sprintf(` GROUP BY kind, field ORDER BY countIf(NOT valid) DESC, kind, field LIMIT %d`, limit)

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvalidRate
	for rows.Next() {
		var r InvalidRate
		if err := rows.Scan(&r.Kind, &r.Field, &r.Invalid, &r.Total); err != nil {
			return nil, fmt.Errorf("scan invalid rate: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invalid rates: %w", err)
	}
	return out, nil
}
