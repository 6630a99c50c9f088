package tally

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
    pragma foreign_keys = on;

    create table if not exists runs (
        id         text primary key not NULL,
        model      text not NULL,
        engine     text not NULL,
        source     text not NULL,
        tokens     integer not NULL,
        detections integer not NULL,
        created_at text not NULL
    );

    create table if not exists occurrences (
        run_id   text not NULL references runs(id) on delete cascade,
        seq      integer not NULL,
        text     text not NULL,
        category text not NULL,
        count    integer not NULL
    );

    create index if not exists occurrence_key on occurrences(category, text);
`

// RunSummary describes a stored run.
type RunSummary struct {
	ID         string
	Model      string
	Engine     string
	Source     string
	Tokens     int
	Detections int
	CreatedAt  time.Time
}

// Store keeps a history of reports in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path. ":memory:" is accepted.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// one connection keeps ":memory:" databases and pragmas consistent
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReport stores rep and its occurrence records in one transaction.
func (s *Store) SaveReport(ctx context.Context, rep Report) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`insert into runs (id, model, engine, source, tokens, detections, created_at)
		 values (?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.Model, rep.Engine, rep.Source, rep.TokenCount, len(rep.Detections),
		rep.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`insert into occurrences (run_id, seq, text, category, count) values (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare occurrences: %w", err)
	}
	defer stmt.Close()
	for i, rec := range rep.Results.Records {
		if _, err = stmt.ExecContext(ctx, rep.RunID, i, rec.Text, rec.Category, rec.Count); err != nil {
			return fmt.Errorf("insert occurrence %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Totals sums counts over every stored run, most frequent first. Ties are
// ordered by first appearance.
func (s *Store) Totals(ctx context.Context) ([]OccurrenceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`select text, category, sum(count) as total, min(rowid) as first
		 from occurrences group by category, text
		 order by total desc, first asc`)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	var out []OccurrenceRecord
	for rows.Next() {
		var rec OccurrenceRecord
		var first int64
		if err := rows.Scan(&rec.Text, &rec.Category, &rec.Count, &first); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Runs lists stored runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, model, engine, source, tokens, detections, created_at
		 from runs order by created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var created string
		if err := rows.Scan(&r.ID, &r.Model, &r.Engine, &r.Source, &r.Tokens, &r.Detections, &created); err != nil {
			return nil, fmt.Errorf("scan runs: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse run time: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
