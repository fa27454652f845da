package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rohankatakam/defectminer/internal/cache"
	"github.com/rohankatakam/defectminer/internal/config"
	"github.com/rohankatakam/defectminer/internal/git"
	"github.com/rohankatakam/defectminer/internal/ingestion"
	"github.com/rohankatakam/defectminer/internal/jira"
	"github.com/rohankatakam/defectminer/internal/storage"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// validate runs the configuration checks for a command
func validate(vctx config.ValidationContext) error {
	result := cfg.Validate(vctx)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	return result.Err()
}

// openRepo returns the repository to mine, cloning repo.url first when set
func openRepo(ctx context.Context) (*git.Repo, error) {
	path := cfg.Repo.Path
	if cfg.Repo.URL != "" {
		logger.WithField("url", cfg.Repo.URL).Info("Cloning repository")
		cloned, err := ingestion.CloneRepository(ctx, cfg.Repo.URL, ingestion.DefaultReposDir())
		if err != nil {
			return nil, err
		}
		path = cloned
	}

	repo := git.NewRepo(path, cfg.Repo.GitTimeout)
	if err := repo.Verify(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// jiraClientConfig maps the jira section onto client settings. Zero values
// keep the client defaults, except max_retries where 0 means no retries.
func jiraClientConfig(c config.JiraConfig) jira.Config {
	jc := jira.DefaultConfig()
	jc.BaseURL = c.BaseURL
	jc.User = c.User
	jc.Token = c.Token
	jc.MaxRetries = c.MaxRetries
	if c.PageSize > 0 {
		jc.PageSize = c.PageSize
	}
	if c.RateLimit > 0 {
		jc.RateLimit = c.RateLimit
	}
	if c.Burst > 0 {
		jc.Burst = c.Burst
	}
	if c.Timeout > 0 {
		jc.Timeout = c.Timeout
	}
	return jc
}

// openJira builds the tracker client with its response cache. The returned
// closer releases the cache.
func openJira() (*jira.Client, io.Closer, error) {
	jc := jiraClientConfig(cfg.Jira)

	opts := []jira.Option{jira.WithLogger(componentLogger("jira"))}

	var closer io.Closer = nopCloser{}
	if cfg.Jira.CachePath != "" {
		m, err := cache.Open(cfg.Jira.CachePath, componentLogger("cache"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open tracker cache: %w", err)
		}
		opts = append(opts, jira.WithCache(m))
		closer = m
	}

	client, err := jira.NewClient(jc, opts...)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return client, closer, nil
}

func openStore() (storage.Store, error) {
	return storage.New(storage.Config{
		Type:        cfg.Storage.Type,
		LocalPath:   cfg.Storage.LocalPath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}, logger.Logger)
}

// newOrchestrator wires repository, tracker and store. With offline set no
// tracker is used.
func newOrchestrator(ctx context.Context, offline bool) (*ingestion.Orchestrator, func(), error) {
	repo, err := openRepo(ctx)
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	var oracle ingestion.BugOracle
	closer := io.Closer(nopCloser{})
	if !offline {
		client, c, err := openJira()
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		oracle, closer = client, c
	}

	cleanup := func() {
		if err := closer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close tracker cache")
		}
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close store")
		}
	}

	return ingestion.NewOrchestrator(repo, oracle, store, logger.Logger, cfg), cleanup, nil
}
