package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/rohankatakam/defectminer/internal/models"
)

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, dmerrors.DatabaseErrorf(err, "connect to postgres")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, dmerrors.DatabaseErrorf(err, "init schema")
	}

	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		repo TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS commit_rows (
		run_id TEXT NOT NULL REFERENCES runs(id),
		commit_hash TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		directory_name TEXT NOT NULL,
		commit_author TEXT,
		timestamp TIMESTAMPTZ,
		line_total INTEGER,
		line_minor INTEGER,
		line_major INTEGER,
		line_ownership DOUBLE PRECISION,
		line_author DOUBLE PRECISION,
		line_author_owner BOOLEAN,
		commit_total INTEGER,
		commit_minor INTEGER,
		commit_major INTEGER,
		commit_ownership DOUBLE PRECISION,
		commit_author_ratio DOUBLE PRECISION,
		commit_author_owner BOOLEAN,
		bugs_induced INTEGER NOT NULL DEFAULT 0,
		post_release_bugs INTEGER NOT NULL DEFAULT 0,
		dev_time_bugs INTEGER NOT NULL DEFAULT 0,
		fix_commits TEXT,
		fix_timestamps TEXT,
		PRIMARY KEY (run_id, commit_hash, path)
	);

	CREATE TABLE IF NOT EXISTS release_rows (
		run_id TEXT NOT NULL REFERENCES runs(id),
		release_tag TEXT NOT NULL,
		release_date TIMESTAMPTZ,
		file_name TEXT NOT NULL,
		comm INTEGER,
		adev INTEGER,
		ddev INTEGER,
		added DOUBLE PRECISION,
		deleted DOUBLE PRECISION,
		own DOUBLE PRECISION,
		minor INTEGER,
		buggy BOOLEAN,
		bug_after_next_release BOOLEAN,
		PRIMARY KEY (run_id, release_tag, file_name)
	);

	CREATE INDEX IF NOT EXISTS idx_commit_rows_hash ON commit_rows(commit_hash);
	CREATE INDEX IF NOT EXISTS idx_release_rows_release ON release_rows(release_tag);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Run operations

func (s *PostgresStore) BeginRun(ctx context.Context, kind, repo string) (string, error) {
	run := newRunRecord(kind, repo)
	query := `
		INSERT INTO runs (id, kind, repo, started_at, status)
		VALUES (:id, :kind, :repo, :started_at, :status)
	`

	if _, err := s.db.NamedExecContext(ctx, query, run); err != nil {
		return "", dmerrors.DatabaseErrorf(err, "begin run")
	}

	s.logger.WithFields(logrus.Fields{"run_id": run.ID, "kind": kind}).Debug("run started")
	return run.ID, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, rows int, runErr error) error {
	status, msg := finishStatus(runErr)
	query := `
		UPDATE runs SET finished_at = $1, status = $2, row_count = $3, error = $4
		WHERE id = $5
	`

	res, err := s.db.ExecContext(ctx, query, time.Now().UTC(), status, rows, msg, runID)
	if err != nil {
		return dmerrors.DatabaseErrorf(err, "finish run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	var run runRecord
	query := `SELECT * FROM runs WHERE id = $1`

	err := s.db.GetContext(ctx, &run, query, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dmerrors.DatabaseErrorf(err, "get run")
	}

	return run.toModel(), nil
}

// Row operations

func (s *PostgresStore) SaveCommitRows(ctx context.Context, runID string, rows []models.CommitRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return dmerrors.DatabaseErrorf(err, "begin transaction")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO commit_rows
		(run_id, commit_hash, path, file_name, directory_name, commit_author, timestamp,
		 line_total, line_minor, line_major, line_ownership, line_author, line_author_owner,
		 commit_total, commit_minor, commit_major, commit_ownership, commit_author_ratio, commit_author_owner,
		 bugs_induced, post_release_bugs, dev_time_bugs, fix_commits, fix_timestamps)
		VALUES
		(:run_id, :commit_hash, :path, :file_name, :directory_name, :commit_author, :timestamp,
		 :line_total, :line_minor, :line_major, :line_ownership, :line_author, :line_author_owner,
		 :commit_total, :commit_minor, :commit_major, :commit_ownership, :commit_author_ratio, :commit_author_owner,
		 :bugs_induced, :post_release_bugs, :dev_time_bugs, :fix_commits, :fix_timestamps)
		ON CONFLICT (run_id, commit_hash, path) DO UPDATE SET
			bugs_induced = EXCLUDED.bugs_induced,
			post_release_bugs = EXCLUDED.post_release_bugs,
			dev_time_bugs = EXCLUDED.dev_time_bugs,
			fix_commits = EXCLUDED.fix_commits,
			fix_timestamps = EXCLUDED.fix_timestamps
	`

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, newCommitRecord(runID, row)); err != nil {
			return dmerrors.DatabaseErrorf(err, "save commit row")
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) SaveReleaseRows(ctx context.Context, runID string, rows []models.ReleaseRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return dmerrors.DatabaseErrorf(err, "begin transaction")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO release_rows
		(run_id, release_tag, release_date, file_name, comm, adev, ddev,
		 added, deleted, own, minor, buggy, bug_after_next_release)
		VALUES
		(:run_id, :release_tag, :release_date, :file_name, :comm, :adev, :ddev,
		 :added, :deleted, :own, :minor, :buggy, :bug_after_next_release)
		ON CONFLICT (run_id, release_tag, file_name) DO UPDATE SET
			buggy = EXCLUDED.buggy,
			bug_after_next_release = EXCLUDED.bug_after_next_release
	`

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, newReleaseRecord(runID, row)); err != nil {
			return dmerrors.DatabaseErrorf(err, "save release row")
		}
	}

	return tx.Commit()
}
