package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/defectminer/internal/config"
	"github.com/rohankatakam/defectminer/internal/github"
	"github.com/rohankatakam/defectminer/internal/output"
)

var giniCmd = &cobra.Command{
	Use:   "gini <projects.csv>",
	Short: "Compute the Gini index of contributions for GitHub projects",
	Long: `Read a project list (a CSV with a url and a name column) and compute the
Gini coefficient of the contribution counts of every project's contributors.
Projects that cannot be read keep only their name in the output.

Examples:
  defectminer gini apache_projects.csv --out gini.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runGini,
}

var giniPlotCmd = &cobra.Command{
	Use:   "gini-plot <projects.csv>",
	Short: "Plot contribution curves and Gini indexes as an HTML page",
	Long: `Compute the Gini index of every project like "gini" and render an HTML
page with the normalised contribution curves and a scatter of contributors
against Gini index. Projects at or above the median Gini form the high
group.

Examples:
  defectminer gini-plot apache_projects.csv --out gini.html`,
	Args: cobra.ExactArgs(1),
	RunE: runGiniPlot,
}

func init() {
	giniCmd.Flags().String("out", "gini.csv", "output CSV file")
	giniPlotCmd.Flags().String("out", "gini.html", "output HTML file")
}

// projectGinis reads the project list and queries every project
func projectGinis(ctx context.Context, listPath string) ([]github.ProjectGini, error) {
	if err := validate(config.ValidationContextGini); err != nil {
		return nil, err
	}

	f, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open project list: %w", err)
	}
	defer f.Close()

	projects, err := github.ReadProjects(f)
	if err != nil {
		return nil, err
	}
	logger.WithField("projects", len(projects)).Info("Loaded project list")

	opts := []github.Option{
		github.WithWorkers(cfg.GitHub.Workers),
		github.WithLogger(componentLogger("github")),
	}
	if cfg.GitHub.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.GitHub.BaseURL))
	}

	client, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.RateLimit, opts...)
	if err != nil {
		return nil, err
	}
	return client.GiniAll(ctx, projects)
}

func runGini(cmd *cobra.Command, args []string) error {
	results, err := projectGinis(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	outPath, _ := cmd.Flags().GetString("out")
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	if err := output.WriteGiniCSV(out, results); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	logger.WithField("path", outPath).Info("Wrote Gini indexes")

	return formatter().FormatGini(results, os.Stdout)
}

func runGiniPlot(cmd *cobra.Command, args []string) error {
	results, err := projectGinis(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	outPath, _ := cmd.Flags().GetString("out")
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	if err := output.RenderGiniPlot(out, results); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	logger.WithField("path", outPath).Info("Wrote Gini plot")
	return nil
}
