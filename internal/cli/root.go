// Package cli provides the docragctl command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"docrag/internal/bootstrap"
	"docrag/internal/config"
	"docrag/internal/logging"
	"docrag/internal/model"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	configPath string
	verbose    bool

	cfg         *config.Config
	application *bootstrap.App
	closeLog    func() error
)

var rootCmd = &cobra.Command{
	Use:   "docragctl",
	Short: "Document ingestion and similarity search",
	Long: `docragctl manages a docrag store: it ingests documents and webpages,
runs the background ingestion worker and answers similarity queries.

Every command reads the same configuration as the HTTP server
(configs/config.toml, .env and the environment).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		if configPath != "" {
			if err := os.Setenv("CONFIG_FILE", configPath); err != nil {
				return err
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		levelName := cfg.Log.Level
		if verbose {
			levelName = "debug"
		}
		level, err := logging.ParseLevel(levelName)
		if err != nil {
			return err
		}
		_, closeLog = logging.Setup(cfg.Log.File, level)

		application, err = bootstrap.New(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			if err := application.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close resources: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// Execute runs the root command with ctx, which is cancelled on shutdown
// signals by the caller.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(reprocessCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(reembedCmd)
	rootCmd.AddCommand(conversationCmd)
	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(tagsCmd)
}

// parseSource reads a "<kind> <id>" argument pair.
func parseSource(kindArg, idArg string) (model.SourceRef, error) {
	kind, err := model.ParseSourceKind(kindArg)
	if err != nil {
		return model.SourceRef{}, err
	}
	id, err := parseID(idArg)
	if err != nil {
		return model.SourceRef{}, err
	}
	return model.SourceRef{Kind: kind, ID: id}, nil
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}
