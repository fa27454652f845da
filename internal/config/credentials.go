package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/rohankatakam/defectminer/internal/errors"
)

// Credential names accepted by StoreCredential
var credentialItems = map[string]string{
	"github": KeyringGitHubTokenItem,
	"jira":   KeyringJiraTokenItem,
}

// CredentialItem maps a service name (github, jira) to its keychain item
func CredentialItem(service string) (string, error) {
	item, ok := credentialItems[strings.ToLower(service)]
	if !ok {
		return "", errors.ValidationErrorf("unknown credential %q (want github or jira)", service)
	}
	return item, nil
}

// PromptSecret prints prompt to out and reads one line from in. Terminal
// input is not echoed.
func PromptSecret(prompt string, in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, prompt)

	if term.IsTerminal(int(in.Fd())) {
		bytes, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// StoreCredential saves secret for service in the OS keychain
func StoreCredential(km *KeyringManager, service, secret string) error {
	item, err := CredentialItem(service)
	if err != nil {
		return err
	}
	if secret == "" {
		return errors.ConfigError(service + " token is required")
	}
	if !km.IsAvailable() {
		return errors.ConfigError("no OS keychain available; set the token through the environment instead")
	}
	return km.Set(item, secret)
}
