package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/app"
)

var (
	jobsStatus string
	jobsLimit  int
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id> | status <document|webpage> <id>",
	Short: "Show the state of one ingestion job",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runStatus,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List ingestion jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <job-id>",
	Short: "Reset a finished job to pending",
	Args:  cobra.ExactArgs(1),
	RunE:  runReprocess,
}

func init() {
	jobsCmd.Flags().StringVarP(&jobsStatus, "status", "s", "", "filter by status (pending, processing, completed, failed)")
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 50, "max jobs")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var (
		view *app.JobStatusView
		err  error
	)
	if len(args) == 2 {
		ref, perr := parseSource(args[0], args[1])
		if perr != nil {
			return perr
		}
		view, err = application.Ingest.GetStatusBySource(ctx, ref)
	} else {
		id, perr := parseID(args[0])
		if perr != nil {
			return perr
		}
		view, err = application.Ingest.GetStatus(ctx, id)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Job:      %d\n", view.JobID)
	fmt.Printf("Source:   %s\n", view.Source)
	fmt.Printf("Status:   %s\n", view.Status)
	fmt.Printf("Attempts: %d\n", view.Attempts)
	fmt.Printf("Queued:   %s\n", view.QueuedAt.Format(time.RFC3339))
	if view.StartedAt != nil {
		fmt.Printf("Started:  %s\n", view.StartedAt.Format(time.RFC3339))
	}
	if view.CompletedAt != nil {
		fmt.Printf("Finished: %s\n", view.CompletedAt.Format(time.RFC3339))
	}
	if view.ErrorMessage != "" {
		fmt.Printf("Error:    [%s] %s\n", view.ErrorKind, view.ErrorMessage)
	}
	return nil
}

func runJobs(cmd *cobra.Command, args []string) error {
	views, err := application.Ingest.ListJobs(cmd.Context(), jobsStatus, jobsLimit)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tATTEMPTS\tQUEUED\tERROR")
	for _, v := range views {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			v.JobID, v.Source, v.Status, v.Attempts, v.QueuedAt.Format(time.DateTime), v.ErrorKind)
	}
	return w.Flush()
}

func runReprocess(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := application.Ingest.Reprocess(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Job %d reset to pending\n", id)
	return nil
}
