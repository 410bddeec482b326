package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dreamtide/veod/internal/util"
	"github.com/dreamtide/veod/job"
)

var (
	jobsStatus   string
	jobsCategory string
)

// JobsCmd groups job ledger operations.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage generation jobs",
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List jobs, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(context.Background())
		if err != nil {
			return err
		}
		defer rt.close()

		var filter job.Filter
		if jobsStatus != "" {
			if !job.IsValidStatus(jobsStatus) {
				return fmt.Errorf("invalid status %q", jobsStatus)
			}
			filter.Status = util.Ptr(job.Status(jobsStatus))
		}
		if jobsCategory != "" {
			filter.Category = util.Ptr(jobsCategory)
		}

		jobs := rt.store.List(filter)
		if len(jobs) == 0 {
			fmt.Println("No jobs")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tCREATED\tPROMPT")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%3.0f%%\t%s\t%s\n",
				j.ID, j.Status, j.Progress*100,
				j.CreatedAt.Format("2006-01-02 15:04"), truncatePrompt(j.Prompt))
		}
		return w.Flush()
	},
}

var jobsRmCmd = &cobra.Command{
	Use:   "rm <job-id>",
	Short: "Delete a job record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(context.Background())
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.service.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel an in-flight job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(context.Background())
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.service.Cancel(args[0]); err != nil {
			return err
		}
		fmt.Printf("Cancelled %s\n", args[0])
		return nil
	},
}

func truncatePrompt(p string) string {
	if len(p) > 60 {
		return p[:57] + "..."
	}
	return p
}

func init() {
	jobsLsCmd.Flags().StringVarP(&jobsStatus, "status", "s", "", "Filter by status")
	jobsLsCmd.Flags().StringVarP(&jobsCategory, "category", "c", "", "Filter by category")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsRmCmd)
	JobsCmd.AddCommand(jobsCancelCmd)
}
