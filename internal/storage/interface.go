package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/rohankatakam/defectminer/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Backend types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeNone     = "none"
)

// Store persists dataset runs and their rows
type Store interface {
	// BeginRun records a new run and returns its identifier
	BeginRun(ctx context.Context, kind, repo string) (string, error)
	// FinishRun marks a run finished or failed with the number of rows written
	FinishRun(ctx context.Context, runID string, rows int, runErr error) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)

	SaveCommitRows(ctx context.Context, runID string, rows []models.CommitRow) error
	SaveReleaseRows(ctx context.Context, runID string, rows []models.ReleaseRow) error

	Close() error
}

// Config selects and configures a backend
type Config struct {
	Type        string
	LocalPath   string
	PostgresDSN string
}

// DefaultLocalPath is the SQLite database used when none is configured
func DefaultLocalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".defectminer", "runs.db")
	}
	return filepath.Join(home, ".defectminer", "runs.db")
}

// New opens the configured backend. An empty type means sqlite.
func New(cfg Config, logger *logrus.Logger) (Store, error) {
	switch cfg.Type {
	case "", TypeSQLite:
		path := cfg.LocalPath
		if path == "" {
			path = DefaultLocalPath()
		}
		return NewSQLiteStore(path, logger)
	case TypePostgres:
		if cfg.PostgresDSN == "" {
			return nil, dmerrors.ConfigError("postgres storage requires a DSN")
		}
		return NewPostgresStore(cfg.PostgresDSN, logger)
	case TypeNone:
		return NopStore{}, nil
	default:
		return nil, dmerrors.ConfigError(fmt.Sprintf("unknown storage type %q", cfg.Type))
	}
}
