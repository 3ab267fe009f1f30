package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/signals"
)

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Inspect per-domain crawl state",
}

var domainsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known domains",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		states, err := st.ListDomainStates(ctx)
		if err != nil {
			return eris.Wrap(err, "domains list")
		}
		if len(states) == 0 {
			fmt.Fprintln(os.Stderr, "No domains recorded.")
			return nil
		}
		formatDomainStates(os.Stdout, states)
		return nil
	},
}

var domainsShowCmd = &cobra.Command{
	Use:   "show <domain>",
	Short: "Show the recorded state of a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		key := domainKey(args[0])
		state, err := st.GetDomainState(ctx, key)
		if err != nil {
			return eris.Wrap(err, "domains show")
		}
		if state == nil {
			return eris.Errorf("domains show: no state for %q", key)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	},
}

var domainsClearCmd = &cobra.Command{
	Use:   "clear <domain>",
	Short: "Forget the recorded state of a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		key := domainKey(args[0])
		if err := st.ClearDomain(ctx, key); err != nil {
			return eris.Wrap(err, "domains clear")
		}
		fmt.Fprintf(os.Stderr, "Cleared %s\n", key)
		return nil
	},
}

// domainKey maps a URL or bare host to the key domain state is stored
// under.
func domainKey(arg string) string {
	if host := signals.Hostname(arg); host != "" {
		return host
	}
	return arg
}

func formatDomainStates(w io.Writer, states []model.DomainState) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tPAGES\tVISITED\tLAST SUCCESS\tLAST FAILURE\tUPDATED")
	for _, s := range states {
		success, failure := "-", "-"
		if s.LastSuccess != nil {
			success = s.LastSuccess.Format(time.DateTime)
		}
		if s.LastFailure != nil {
			failure = truncate(s.LastFailure.Message, 40)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
			s.Key, s.PagesFetched, len(s.Visited), success, failure, s.UpdatedAt.Format(time.DateTime))
	}
	_ = tw.Flush()
}

func init() {
	domainsCmd.AddCommand(domainsListCmd, domainsShowCmd, domainsClearCmd)
	rootCmd.AddCommand(domainsCmd)
}
