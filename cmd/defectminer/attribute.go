package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/defectminer/internal/attribution"
	"github.com/rohankatakam/defectminer/internal/config"
	"github.com/rohankatakam/defectminer/internal/output"
)

var attributeCmd = &cobra.Command{
	Use:   "attribute <fix-commit> <path>",
	Short: "Show which commits introduced the lines a fix removed",
	Long: `Run bug attribution for one fix commit and one file it touched: the lines
the fix removed are blamed in the fix's first parent and every distinct
(commit, original path) pair is printed with its author time.

Examples:
  defectminer attribute 3f2a9c1 lucene/core/src/java/org/apache/lucene/index/IndexWriter.java

  # Output as CSV
  defectminer attribute --format=csv 3f2a9c1 src/A.java`,
	Args: cobra.ExactArgs(2),
	RunE: runAttribute,
}

func init() {
	attributeCmd.Flags().String("format", "table", "Output format: table, json, csv")
}

func runAttribute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fixCommit, path := args[0], args[1]

	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" && format != "csv" {
		return fmt.Errorf("invalid format %q, must be: table, json, or csv", format)
	}

	if err := validate(config.ValidationContextAttribute); err != nil {
		return err
	}

	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}

	engine := attribution.NewEngine(repo, componentLogger("attribution"))
	attrs, err := engine.Attribute(ctx, fixCommit, path)
	if err != nil {
		return err
	}

	return output.NewBlameFormatter(format).FormatAttributions(os.Stdout, fixCommit, path, attrs)
}
