package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/rohankatakam/defectminer/internal/models"
)

// SQLiteStore implements storage using SQLite (the local default)
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore creates a new SQLite storage. ":memory:" opens a private
// in-memory database.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, dmerrors.DatabaseErrorf(err, "connect to sqlite")
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, dmerrors.DatabaseErrorf(err, "init schema")
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		repo TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS commit_rows (
		run_id TEXT NOT NULL,
		commit_hash TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		directory_name TEXT NOT NULL,
		commit_author TEXT,
		timestamp DATETIME,
		line_total INTEGER,
		line_minor INTEGER,
		line_major INTEGER,
		line_ownership REAL,
		line_author REAL,
		line_author_owner INTEGER,
		commit_total INTEGER,
		commit_minor INTEGER,
		commit_major INTEGER,
		commit_ownership REAL,
		commit_author_ratio REAL,
		commit_author_owner INTEGER,
		bugs_induced INTEGER NOT NULL DEFAULT 0,
		post_release_bugs INTEGER NOT NULL DEFAULT 0,
		dev_time_bugs INTEGER NOT NULL DEFAULT 0,
		fix_commits TEXT,
		fix_timestamps TEXT,
		PRIMARY KEY (run_id, commit_hash, path),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS release_rows (
		run_id TEXT NOT NULL,
		release_tag TEXT NOT NULL,
		release_date DATETIME,
		file_name TEXT NOT NULL,
		comm INTEGER,
		adev INTEGER,
		ddev INTEGER,
		added REAL,
		deleted REAL,
		own REAL,
		minor INTEGER,
		buggy INTEGER,
		bug_after_next_release INTEGER,
		PRIMARY KEY (run_id, release_tag, file_name),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_commit_rows_hash ON commit_rows(commit_hash);
	CREATE INDEX IF NOT EXISTS idx_release_rows_release ON release_rows(release_tag);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Run operations
func (s *SQLiteStore) BeginRun(ctx context.Context, kind, repo string) (string, error) {
	run := newRunRecord(kind, repo)
	query := `
		INSERT INTO runs (id, kind, repo, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, run.ID, run.Kind, run.Repo, run.StartedAt, run.Status); err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{"run_id": run.ID, "kind": kind}).Debug("run started")
	return run.ID, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, rows int, runErr error) error {
	status, msg := finishStatus(runErr)
	query := `
		UPDATE runs SET finished_at = ?, status = ?, row_count = ?, error = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query, time.Now().UTC(), status, rows, msg, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	var run runRecord
	query := `SELECT * FROM runs WHERE id = ?`

	err := s.db.GetContext(ctx, &run, query, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return run.toModel(), nil
}

// Row operations
func (s *SQLiteStore) SaveCommitRows(ctx context.Context, runID string, rows []models.CommitRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT OR REPLACE INTO commit_rows
		(run_id, commit_hash, path, file_name, directory_name, commit_author, timestamp,
		 line_total, line_minor, line_major, line_ownership, line_author, line_author_owner,
		 commit_total, commit_minor, commit_major, commit_ownership, commit_author_ratio, commit_author_owner,
		 bugs_induced, post_release_bugs, dev_time_bugs, fix_commits, fix_timestamps)
		VALUES
		(:run_id, :commit_hash, :path, :file_name, :directory_name, :commit_author, :timestamp,
		 :line_total, :line_minor, :line_major, :line_ownership, :line_author, :line_author_owner,
		 :commit_total, :commit_minor, :commit_major, :commit_ownership, :commit_author_ratio, :commit_author_owner,
		 :bugs_induced, :post_release_bugs, :dev_time_bugs, :fix_commits, :fix_timestamps)
	`

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, newCommitRecord(runID, row)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) SaveReleaseRows(ctx context.Context, runID string, rows []models.ReleaseRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT OR REPLACE INTO release_rows
		(run_id, release_tag, release_date, file_name, comm, adev, ddev,
		 added, deleted, own, minor, buggy, bug_after_next_release)
		VALUES
		(:run_id, :release_tag, :release_date, :file_name, :comm, :adev, :ddev,
		 :added, :deleted, :own, :minor, :buggy, :bug_after_next_release)
	`

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, newReleaseRecord(runID, row)); err != nil {
			return err
		}
	}

	return tx.Commit()
}
