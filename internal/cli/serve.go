package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	httptransport "docrag/internal/transport/http"
)

var serveNoWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background ingestion worker",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run only the background ingestion worker",
	Long: `Run the ingestion worker, the health checker and, when configured,
the broker listener and the inbox watcher until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWorker, "no-worker", false, "serve the API without processing jobs")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if cfg.Worker.Enabled && !serveNoWorker {
		if err := application.StartBackground(ctx); err != nil {
			return err
		}
	}
	return httptransport.Serve(ctx, application)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := application.StartBackground(ctx); err != nil {
		return err
	}
	fmt.Printf("Worker %s running. Press Ctrl+C to stop.\n", application.Supervisor.WorkerID())
	<-ctx.Done()
	slog.Info("shutdown signal received")
	return nil
}
