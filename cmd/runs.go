package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/queue"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect queued and finished runs",
	Long:  "Commands for listing, viewing, and summarizing runs recorded by the server queue.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.LoadRuns(ctx)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		runs = filterRuns(runs, model.RunStatus(status), limit)

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.LoadRuns(ctx)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		for _, r := range runs {
			if r.ID == args[0] {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
		}
		return eris.Errorf("runs show: run %q not found", args[0])
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.LoadRuns(ctx)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, queue.BuildStats(runs))
		return nil
	},
}

// filterRuns keeps runs with status (all when empty), newest first, up to
// limit (all when zero).
func filterRuns(runs []model.Run, status model.RunStatus, limit int) []model.Run {
	out := make([]model.Run, 0, len(runs))
	for _, r := range runs {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tINPUT\tAPPENDED\tFAILURES\tCREATED")
	for _, r := range runs {
		appended, failures := "-", "-"
		if r.Result != nil {
			appended = fmt.Sprintf("%d", r.Result.Appended)
			failures = fmt.Sprintf("%d", len(r.Result.Failures))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Status,
			truncate(runInput(r.Options), 40),
			appended,
			failures,
			r.CreatedAt.Format(time.DateTime),
		)
	}
	_ = tw.Flush()
}

func formatRunStats(w io.Writer, s model.RunStats) {
	fmt.Fprintf(w, "Runs:        %d total (%d queued, %d running, %d completed, %d failed)\n",
		s.Runs.Total, s.Runs.Queued, s.Runs.Running, s.Runs.Completed, s.Runs.Failed)
	fmt.Fprintf(w, "Targets:     %d discovered, %d processed, %d succeeded, %d failed\n",
		s.Totals.TargetsDiscovered, s.Totals.TargetsProcessed, s.Totals.Successes, s.Totals.Failures)
	fmt.Fprintf(w, "Appended:    %d rows\n", s.Totals.Appended)
	fmt.Fprintf(w, "Pages:       %d (%d directory, %d target, est. $%.4f)\n",
		s.Firecrawl.TotalPages, s.Firecrawl.DirectoryPages, s.Firecrawl.TargetPages, s.Firecrawl.EstimatedCostUSD)
	fmt.Fprintf(w, "LLM calls:   %d (est. $%.4f)\n", s.LLM.TotalCalls, s.LLM.EstimatedCostUSD)

	if len(s.LLM.Models) > 0 {
		ids := make([]string, 0, len(s.LLM.Models))
		for id := range s.LLM.Models {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  MODEL\tINPUT\tOUTPUT\tTOTAL")
		for _, id := range ids {
			u := s.LLM.Models[id]
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\n", id, u.InputTokens, u.OutputTokens, u.TotalTokens)
		}
		_ = tw.Flush()
	}

	if s.LastFinishedAt != nil {
		fmt.Fprintf(w, "Last finish: %s\n", s.LastFinishedAt.Format(time.RFC3339))
	}
}

func runInput(o model.RunOptions) string {
	switch {
	case o.URL != "":
		return o.URL
	case len(o.URLs) > 0:
		if len(o.URLs) == 1 {
			return o.URLs[0]
		}
		return fmt.Sprintf("%s (+%d)", o.URLs[0], len(o.URLs)-1)
	case o.DomainsFile != "":
		return o.DomainsFile
	default:
		return "-"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by status (queued, running, completed, failed)")
	runsListCmd.Flags().Int("limit", 20, "max runs to show")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}
