package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/defectminer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage defectminer configuration",
	Long:  `Create configuration files, store tokens and check settings.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the default configuration as YAML. Tokens are never written; set
them with "config set-token" or through GITHUB_TOKEN and JIRA_TOKEN.`,
	RunE: runConfigInit,
}

var configSetTokenCmd = &cobra.Command{
	Use:   "set-token <github|jira>",
	Short: "Store an API token in the OS keychain",
	Long: `Prompt for a token and store it in the OS keychain. Input is not echoed
when read from a terminal; otherwise one line is read from stdin.

Examples:
  defectminer config set-token github
  echo "$JIRA_TOKEN" | defectminer config set-token jira`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"github", "jira"},
	RunE:      runConfigSetToken,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the whole configuration",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetTokenCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().String("path", filepath.Join(".defectminer", "config.yaml"), "where to write the file")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func runConfigSetToken(cmd *cobra.Command, args []string) error {
	service := args[0]
	if _, err := config.CredentialItem(service); err != nil {
		return err
	}

	secret, err := config.PromptSecret(fmt.Sprintf("%s token: ", service), os.Stdin, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	km := config.NewKeyringManager(componentLogger("keyring"))
	if err := config.StoreCredential(km, service, secret); err != nil {
		return err
	}

	fmt.Printf("Stored %s token %s in the OS keychain\n", service, config.MaskSecret(secret))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	result := cfg.Validate(config.ValidationContextAll)
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if err := result.Err(); err != nil {
		return err
	}
	fmt.Println("Configuration is valid")
	return nil
}
