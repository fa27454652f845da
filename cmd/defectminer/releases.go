package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/defectminer/internal/config"
)

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "Build the release-level dataset",
	Long: `Build one CSV per release with the process metrics of every file in the
release snapshot (COMM, ADEV, DDEV, ADD, DEL, OWN, MINOR) and whether a bug
was introduced into the file while the release was developed.

Tags must be listed oldest first. The first tag only opens the first window.

Examples:
  defectminer releases --tags release-2.4.1,release-2.5.0,release-2.5.1 \
    --jira-keys HADOOP,HDFS,MAPREDUCE,YARN`,
	RunE: runReleases,
}

func init() {
	releasesCmd.Flags().StringSlice("tags", nil, "release tags ordered by date")
	releasesCmd.Flags().StringSlice("jira-keys", nil, "tracker project keys")
	releasesCmd.Flags().String("bugs-since", "", "only bugs created on or after this date (default: first tag)")
	releasesCmd.Flags().String("output-dir", "", "directory for the CSV files")
}

func runReleases(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	flags := cmd.Flags()
	if flags.Changed("tags") {
		cfg.Releases.Tags, _ = flags.GetStringSlice("tags")
	}
	if flags.Changed("jira-keys") {
		cfg.Releases.JiraKeys, _ = flags.GetStringSlice("jira-keys")
	}
	overrideString(cmd, "bugs-since", &cfg.Releases.BugsSince)
	overrideString(cmd, "output-dir", &cfg.Output.Dir)

	if err := validate(config.ValidationContextReleases); err != nil {
		return err
	}

	orch, cleanup, err := newOrchestrator(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := orch.RunReleases(ctx)
	if err != nil {
		return err
	}
	return formatter().Format(summary, os.Stdout)
}
