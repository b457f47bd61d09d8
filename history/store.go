// Package history records evaluation runs in a SQLite database so models and
// feature sets can be compared over time.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	"github.com/swdee/go-reideval/migrations"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no run has the requested id
var ErrNotFound = errors.New("run not found")

// Run is the summary of one evaluation
type Run struct {
	ID           string    `json:"id" yaml:"id"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	Model        string    `json:"model" yaml:"model"`
	Fingerprint  string    `json:"fingerprint" yaml:"fingerprint"`
	NumQuery     int       `json:"num_query" yaml:"num_query"`
	NumGallery   int       `json:"num_gallery" yaml:"num_gallery"`
	ValidQueries int       `json:"valid_queries" yaml:"valid_queries"`
	Rank1        float64   `json:"rank1" yaml:"rank1"`
	Rank5        float64   `json:"rank5" yaml:"rank5"`
	Rank10       float64   `json:"rank10" yaml:"rank10"`
	MAP          float64   `json:"map" yaml:"map"`
	PosMean      float64   `json:"pos_mean" yaml:"pos_mean"`
	NegMean      float64   `json:"neg_mean" yaml:"neg_mean"`
}

// Store is the SQLite backed run history
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path and applies pending
// migrations
func Open(path string) (*Store, error) {

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// runMigrations applies all pending goose migrations from the embedded files
func runMigrations(db *sql.DB) error {

	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a run, assigning its ID and creation time
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {

	run.ID = ulid.Make().String()
	run.CreatedAt = time.Now().UTC().Truncate(time.Second)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, model, fingerprint, num_query, num_gallery,
			valid_queries, rank1, rank5, rank10, map, pos_mean, neg_mean)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt.Format(time.RFC3339), run.Model, run.Fingerprint,
		run.NumQuery, run.NumGallery, run.ValidQueries, run.Rank1, run.Rank5,
		run.Rank10, run.MAP, run.PosMean, run.NegMean)

	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	return run, nil
}

const selectRun = `
	SELECT id, created_at, model, fingerprint, num_query, num_gallery,
		valid_queries, rank1, rank5, rank10, map, pos_mean, neg_mean
	FROM runs`

// Get returns the run with the given id
func (s *Store) Get(ctx context.Context, id string) (Run, error) {

	row := s.db.QueryRowContext(ctx, selectRun+" WHERE id = ?", id)
	run, err := scanRun(row)

	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return run, err
}

// List returns up to limit runs, newest first.  A non positive limit
// returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {

	query := selectRun + " ORDER BY id DESC"
	args := []any{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)

	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	defer rows.Close()

	var runs []Run

	for rows.Next() {
		run, err := scanRun(rows)

		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ListByFingerprint returns all runs evaluated on the same feature set,
// newest first
func (s *Store) ListByFingerprint(ctx context.Context, fingerprint string) ([]Run, error) {

	rows, err := s.db.QueryContext(ctx,
		selectRun+" WHERE fingerprint = ? ORDER BY id DESC", fingerprint)

	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	defer rows.Close()

	var runs []Run

	for rows.Next() {
		run, err := scanRun(rows)

		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {

	var run Run
	var created string

	err := sc.Scan(&run.ID, &created, &run.Model, &run.Fingerprint, &run.NumQuery,
		&run.NumGallery, &run.ValidQueries, &run.Rank1, &run.Rank5, &run.Rank10,
		&run.MAP, &run.PosMean, &run.NegMean)

	if err != nil {
		return Run{}, err
	}

	run.CreatedAt, err = time.Parse(time.RFC3339, created)

	if err != nil {
		return Run{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}

	return run, nil
}
