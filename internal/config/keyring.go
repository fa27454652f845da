package config

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"

	"github.com/rohankatakam/defectminer/internal/logging"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "defectminer"

	// KeyringGitHubTokenItem is the key for the GitHub token
	KeyringGitHubTokenItem = "github-token"

	// KeyringJiraTokenItem is the key for the Jira API token
	KeyringJiraTokenItem = "jira-token"
)

// KeyringManager handles credential storage in the OS keychain
type KeyringManager struct {
	logger logrus.FieldLogger
}

// NewKeyringManager creates a new keyring manager. A nil logger discards.
func NewKeyringManager(logger logrus.FieldLogger) *KeyringManager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &KeyringManager{
		logger: logger.WithField("component", "keyring"),
	}
}

// Get returns the stored secret, or "" when none is stored
func (km *KeyringManager) Get(item string) (string, error) {
	secret, err := keyring.Get(KeyringService, item)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		km.logger.WithError(err).Debug("keychain read failed")
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return secret, nil
}

// Set stores a secret
func (km *KeyringManager) Set(item, secret string) error {
	if secret == "" {
		return fmt.Errorf("%s cannot be empty", item)
	}
	if err := keyring.Set(KeyringService, item, secret); err != nil {
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.WithField("item", item).Info("secret saved to keychain")
	return nil
}

// Delete removes a secret; deleting a missing secret is not an error
func (km *KeyringManager) Delete(item string) error {
	err := keyring.Delete(KeyringService, item)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}

// IsAvailable reports whether an OS keychain can be reached. Headless
// machines usually have none.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return true
	}
	km.logger.WithError(err).Debug("keychain not available")
	return false
}

// MaskSecret masks a token for display: first 4 and last 4 characters
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:4], secret[len(secret)-4:])
}
