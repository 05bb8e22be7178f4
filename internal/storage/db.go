// Package storage persists expression sets to the local SQLite archive and the
// optional PostgreSQL and ClickHouse backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"passthru_parser/internal/passthru"
)

// Config holds settings for every backend. A backend is only opened when
// enabled.
type Config struct {
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		SQLite: SQLiteConfig{
			Path: "ptexp.db",
		},
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "passthru",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "passthru",
			User:     "passthru",
			Password: "passthru",
		},
	}
}

// Sink receives every serialized expression set.
type Sink interface {
	SaveSet(ctx context.Context, set *passthru.ExpressionSet) error
	Close() error
}

// Sinks fans a set out to several backends.
type Sinks []Sink

// Open opens every enabled backend and creates its schema.
func Open(ctx context.Context, cfg Config) (Sinks, error) {
	var sinks Sinks

	if cfg.SQLite.Enabled {
		db, err := OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		sinks = append(sinks, db)
	}

	if cfg.Postgres.Enabled {
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		sinks = append(sinks, pg)
		if err := pg.CreateSchema(ctx); err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
	}

	if cfg.ClickHouse.Enabled {
		ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		sinks = append(sinks, ch)
		if err := ch.CreateSchema(ctx); err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}

	return sinks, nil
}

// SaveSet writes set to every sink. All sinks are attempted; the errors are
// joined.
func (s Sinks) SaveSet(ctx context.Context, set *passthru.ExpressionSet) error {
	var errs []error
	for _, sink := range s {
		if err := sink.SaveSet(ctx, set); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (s Sinks) Close() error {
	var errs []error
	for _, sink := range s {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// missingList joins an expression's unresolved field names.
func missingList(e *passthru.Expression) string {
	return strings.Join(e.MissingFields(), ",")
}
