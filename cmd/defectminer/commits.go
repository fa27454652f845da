package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/defectminer/internal/config"
)

var commitsCmd = &cobra.Command{
	Use:   "commits",
	Short: "Build the commit-level dataset",
	Long: `Build one row per file changed by every commit in the analysis window.

Each row carries line and commit contributor metrics of the file and the
number of bugs the revision introduced: post-release bugs (the fix title
references a known tracker bug) and development-time bugs (the fix title
contains a bug keyword).

Examples:
  # Lucene core in 2013, fixes until 2016
  defectminer commits --since 2013-01-01 --until 2014-01-01 --fix-until 2016-01-01

  # Keyword detection only, no tracker
  defectminer commits --offline`,
	RunE: runCommits,
}

func init() {
	commitsCmd.Flags().String("since", "", "analysis window start (YYYY-MM-DD)")
	commitsCmd.Flags().String("until", "", "analysis window end (YYYY-MM-DD)")
	commitsCmd.Flags().String("fix-since", "", "fix window start (YYYY-MM-DD)")
	commitsCmd.Flags().String("fix-until", "", "fix window end (YYYY-MM-DD)")
	commitsCmd.Flags().StringSlice("issue-keys", nil, "tracker project keys, e.g. LUCENE")
	commitsCmd.Flags().String("output-dir", "", "directory for the CSV file")
	commitsCmd.Flags().Bool("offline", false, "do not query the issue tracker")
}

func runCommits(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	flags := cmd.Flags()
	overrideString(cmd, "since", &cfg.Commits.Since)
	overrideString(cmd, "until", &cfg.Commits.Until)
	overrideString(cmd, "fix-since", &cfg.Commits.FixSince)
	overrideString(cmd, "fix-until", &cfg.Commits.FixUntil)
	overrideString(cmd, "output-dir", &cfg.Output.Dir)
	if flags.Changed("issue-keys") {
		cfg.Commits.IssueKeys, _ = flags.GetStringSlice("issue-keys")
	}
	offline, _ := flags.GetBool("offline")

	vctx := config.ValidationContextCommits
	if offline {
		vctx = config.ValidationContextCommitsOffline
	}
	if err := validate(vctx); err != nil {
		return err
	}

	orch, cleanup, err := newOrchestrator(ctx, offline)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := orch.RunCommits(ctx)
	if err != nil {
		return err
	}
	return formatter().Format(summary, os.Stdout)
}

// overrideString copies a string flag into dst when it was given
func overrideString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}
