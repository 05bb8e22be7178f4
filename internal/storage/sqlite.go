package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"passthru_parser/internal/passthru"
)

// SQLiteConfig configures the local archive.
type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SetRecord is a stored expression set header.
type SetRecord struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	OutputPath  string    `json:"output_path"`
	CreatedAt   time.Time `json:"created_at"`
	Expressions int       `json:"expressions"`
	Invalid     int       `json:"invalid"`
}

// ExpressionRecord is one stored expression.
type ExpressionRecord struct {
	ID            int64  `json:"id"`
	SetID         string `json:"set_id"`
	Seq           int    `json:"seq"`
	Kind          string `json:"kind"`
	FirstLine     string `json:"first_line"`
	SegmentText   string `json:"segment_text"`
	FieldsJSON    string `json:"-"`
	ElementsJSON  string `json:"-"`
	MissingFields string `json:"missing_fields"`
	Valid         bool   `json:"valid"`
}

// Expression decodes the stored record back into an expression.
func (r ExpressionRecord) Expression() (*passthru.Expression, error) {
	kind, ok := passthru.ParseKind(r.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", r.Kind)
	}
	e := &passthru.Expression{
		Kind:    kind,
		Segment: passthru.Segment{Text: r.SegmentText},
	}
	if err := json.Unmarshal([]byte(r.FieldsJSON), &e.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if r.ElementsJSON != "" {
		if err := json.Unmarshal([]byte(r.ElementsJSON), &e.Elements); err != nil {
			return nil, fmt.Errorf("decode elements: %w", err)
		}
	}
	return e, nil
}

// SQLiteDB wraps a SQLite database holding the expression archive.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite archive at the given path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS expression_sets (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		output_path TEXT,
		created_at TEXT NOT NULL,
		expressions INTEGER NOT NULL DEFAULT 0,
		invalid INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS expressions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		set_id TEXT NOT NULL REFERENCES expression_sets(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		first_line TEXT NOT NULL,
		segment_text TEXT NOT NULL,
		fields_json TEXT NOT NULL,
		elements_json TEXT,
		missing_fields TEXT,
		valid INTEGER NOT NULL DEFAULT 0,
		UNIQUE(set_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_expressions_kind ON expressions(kind);
	CREATE INDEX IF NOT EXISTS idx_expressions_missing ON expressions(missing_fields);
	CREATE INDEX IF NOT EXISTS idx_expressions_valid ON expressions(valid);

	-- FTS5 virtual table for full-text search on segment text.
	CREATE VIRTUAL TABLE IF NOT EXISTS expressions_fts USING fts5(
		segment_text,
		content='expressions',
		content_rowid='id'
	);

	-- Triggers to keep FTS index in sync.
	CREATE TRIGGER IF NOT EXISTS expressions_ai AFTER INSERT ON expressions BEGIN
		INSERT INTO expressions_fts(rowid, segment_text) VALUES (new.id, new.segment_text);
	END;

	CREATE TRIGGER IF NOT EXISTS expressions_ad AFTER DELETE ON expressions BEGIN
		INSERT INTO expressions_fts(expressions_fts, rowid, segment_text) VALUES('delete', old.id, old.segment_text);
	END;
	`

	_, err := db.Exec(schema)
	return err
}

// SaveSet stores a set and all its expressions in one transaction. Saving the
// same set again replaces it.
func (d *SQLiteDB) SaveSet(ctx context.Context, set *passthru.ExpressionSet) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := set.ID.String()
	if _, err := tx.ExecContext(ctx, `DELETE FROM expressions WHERE set_id = ?`, id); err != nil {
		return fmt.Errorf("clear set: %w", err)
	}

	invalid := 0
	for _, e := range set.Expressions {
		if !e.Valid() {
			invalid++
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expression_sets (id, source, output_path, created_at, expressions, invalid)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			output_path = excluded.output_path,
			expressions = excluded.expressions,
			invalid = excluded.invalid
	`, id, set.Source, set.OutputPath, set.CreatedAt.Format(time.RFC3339), set.Len(), invalid)
	if err != nil {
		return fmt.Errorf("insert set: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO expressions (set_id, seq, kind, first_line, segment_text, fields_json, elements_json, missing_fields, valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range set.Expressions {
		fieldsJSON, err := json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		var elementsJSON string
		if len(e.Elements) > 0 {
			b, err := json.Marshal(e.Elements)
			if err != nil {
				return fmt.Errorf("marshal elements: %w", err)
			}
			elementsJSON = string(b)
		}

		valid := 0
		if e.Valid() {
			valid = 1
		}
		_, err = stmt.ExecContext(ctx, id, i, e.Kind.String(), e.Segment.FirstLine(), e.Segment.Text,
			string(fieldsJSON), elementsJSON, missingList(e), valid)
		if err != nil {
			return fmt.Errorf("insert expression %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// ListSets returns stored sets, newest first.
func (d *SQLiteDB) ListSets(ctx context.Context, limit, offset int) ([]SetRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, source, output_path, created_at, expressions, invalid
		FROM expression_sets ORDER BY created_at DESC, id LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query sets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sets []SetRecord
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *s)
	}
	return sets, rows.Err()
}

// GetSet retrieves a set header by ID. It returns nil when not found.
func (d *SQLiteDB) GetSet(ctx context.Context, id uuid.UUID) (*SetRecord, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, source, output_path, created_at, expressions, invalid
		FROM expression_sets WHERE id = ?
	`, id.String())
	s, err := scanSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSet(row scanner) (*SetRecord, error) {
	var s SetRecord
	var output sql.NullString
	var created string
	if err := row.Scan(&s.ID, &s.Source, &output, &created, &s.Expressions, &s.Invalid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan set: %w", err)
	}
	s.OutputPath = output.String
	s.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &s, nil
}

// QueryParams contains filtering options for querying expressions.
type QueryParams struct {
	SetID        string // Filter by set ID (exact match).
	Kind         string // Filter by command kind name (exact match).
	MissingField string // Filter by specific missing field (LIKE match).
	HasMissing   bool   // Only expressions with unresolved fields.
	InvalidOnly  bool   // Only expressions with an invalid field.
	FullText     string // FTS5 full-text search on segment_text.
	Limit        int    // Max results (default 100).
	Offset       int    // Pagination offset.
}

// Query retrieves expressions matching the given parameters, in set and
// source order.
func (d *SQLiteDB) Query(ctx context.Context, p QueryParams) ([]ExpressionRecord, error) {
	var conditions []string
	var args []any

	if p.SetID != "" {
		conditions = append(conditions, "e.set_id = ?")
		args = append(args, p.SetID)
	}
	if p.Kind != "" {
		conditions = append(conditions, "e.kind = ?")
		args = append(args, p.Kind)
	}
	if p.MissingField != "" {
		conditions = append(conditions, "e.missing_fields LIKE ?")
		args = append(args, "%"+p.MissingField+"%")
	}
	if p.HasMissing {
		conditions = append(conditions, "e.missing_fields != '' AND e.missing_fields IS NOT NULL")
	}
	if p.InvalidOnly {
		conditions = append(conditions, "e.valid = 0")
	}

	query := `SELECT e.id, e.set_id, e.seq, e.kind, e.first_line, e.segment_text,
			e.fields_json, e.elements_json, e.missing_fields, e.valid
			FROM expressions e`

	// FTS5 search requires a JOIN with the FTS table.
	if p.FullText != "" {
		query += ` JOIN expressions_fts fts ON e.id = fts.rowid`
		conditions = append([]string{"expressions_fts MATCH ?"}, conditions...)
		args = append([]any{p.FullText}, args...)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" ORDER BY e.set_id, e.seq LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expressions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []ExpressionRecord
	for rows.Next() {
		var r ExpressionRecord
		var elements, missing sql.NullString
		var valid int
		err := rows.Scan(&r.ID, &r.SetID, &r.Seq, &r.Kind, &r.FirstLine, &r.SegmentText,
			&r.FieldsJSON, &elements, &missing, &valid)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.ElementsJSON = elements.String
		r.MissingFields = missing.String
		r.Valid = valid == 1
		records = append(records, r)
	}
	return records, rows.Err()
}

// LoadSet rebuilds a stored set with its expressions. It returns nil when the
// set does not exist.
func (d *SQLiteDB) LoadSet(ctx context.Context, id uuid.UUID) (*passthru.ExpressionSet, error) {
	rec, err := d.GetSet(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}

	records, err := d.Query(ctx, QueryParams{SetID: rec.ID, Limit: rec.Expressions + 1})
	if err != nil {
		return nil, err
	}

	set := &passthru.ExpressionSet{
		ID:         id,
		Source:     rec.Source,
		CreatedAt:  rec.CreatedAt,
		OutputPath: rec.OutputPath,
	}
	for _, r := range records {
		e, err := r.Expression()
		if err != nil {
			return nil, fmt.Errorf("expression %d: %w", r.Seq, err)
		}
		set.Expressions = append(set.Expressions, e)
	}
	return set, nil
}

// ArchiveStats holds aggregate statistics about the archive.
type ArchiveStats struct {
	Sets             int            `json:"sets"`
	Expressions      int            `json:"expressions"`
	Invalid          int            `json:"invalid"`
	ByKind           map[string]int `json:"by_kind"`
	TopMissingFields map[string]int `json:"top_missing_fields"`
}

// GetStats returns statistics about the stored expressions.
func (d *SQLiteDB) GetStats(ctx context.Context) (*ArchiveStats, error) {
	stats := &ArchiveStats{
		ByKind:           make(map[string]int),
		TopMissingFields: make(map[string]int),
	}

	row := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM expression_sets")
	if err := row.Scan(&stats.Sets); err != nil {
		return nil, err
	}
	row = d.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(valid = 0), 0) FROM expressions")
	if err := row.Scan(&stats.Expressions, &stats.Invalid); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM expressions GROUP BY kind")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByKind[kind] = count
	}
	_ = rows.Close()

	// Missing fields are stored comma-separated.
	rows, err = d.db.QueryContext(ctx, "SELECT missing_fields FROM expressions WHERE missing_fields != '' AND missing_fields IS NOT NULL")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var fields string
		if err := rows.Scan(&fields); err != nil {
			_ = rows.Close()
			return nil, err
		}
		for _, f := range strings.Split(fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				stats.TopMissingFields[f]++
			}
		}
	}
	_ = rows.Close()

	return stats, nil
}
