package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/defectminer/internal/config"
	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/rohankatakam/defectminer/internal/logging"
	"github.com/rohankatakam/defectminer/internal/output"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile    string
	verbose    bool
	logFile    string
	jsonLogs   bool
	jsonOutput bool
	quiet      bool

	logger *logging.Logger
	cfg    *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logger != nil {
		logger.Close()
	}
	if err != nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "Error: %s\n", dmerrors.Detailed(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "defectminer",
	Short: "Build defect-prediction datasets from git history and an issue tracker",
	Long: `defectminer mines a git repository together with its Jira bug tracker and
writes labelled datasets for defect prediction: one row per changed file of
every commit, or one CSV per release with process metrics and bug labels.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.NewLogger(logging.Config{
			Verbose:    verbose,
			OutputFile: logFile,
			JSONFormat: jsonLogs,
		})
		if err != nil {
			return err
		}

		cfg, err = config.Load(cfgFile)
		if err != nil {
			if cfgFile != "" {
				return err
			}
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .defectminer/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write progress to this file")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log as JSON")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print the run summary as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print a one-line summary")

	rootCmd.SetVersionTemplate(`defectminer {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(commitsCmd)
	rootCmd.AddCommand(releasesCmd)
	rootCmd.AddCommand(attributeCmd)
	rootCmd.AddCommand(giniCmd)
	rootCmd.AddCommand(giniPlotCmd)
	rootCmd.AddCommand(configCmd)
}

// formatter picks the summary format from the flags, then the environment
func formatter() output.Formatter {
	switch {
	case jsonOutput:
		return output.NewFormatter(output.VerbosityJSON)
	case quiet:
		return output.NewFormatter(output.VerbosityQuiet)
	default:
		return output.NewFormatter(output.GetDefaultVerbosity())
	}
}

// componentLogger tags a logger entry with the component name
func componentLogger(name string) *logrus.Entry {
	return logger.WithField("component", name)
}
