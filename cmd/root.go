package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leadgen",
	Short: "Turn business websites into scored leads on a Google Sheet",
	Long: `leadgen crawls business websites with Firecrawl, extracts contact signals
with tiered Claude models, scores each lead against an ICP and appends the
rows to a Google spreadsheet.

"leadgen run" executes one run in the foreground. "leadgen serve" accepts runs
over HTTP and executes them from a persistent queue. With --mock-llm (or
llm.mock) Claude is replaced by a deterministic answerer, so a dry run needs
only a Firecrawl key or a local --html-folder.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyRootFlags(cmd.Flags(), c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		zap.L().Debug("leadgen: config loaded",
			zap.String("command", cmd.Name()),
			zap.String("store", cfg.Store.Driver),
			zap.String("model", cfg.Anthropic.Model),
			zap.Bool("mock_llm", cfg.LLM.Mock),
			zap.Bool("dry_run", cfg.DryRun),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func registerRootFlags(f *pflag.FlagSet) {
	f.String("log-level", "", "override log.level (debug, info, warn, error)")
	f.String("store", "", "override store.driver (sqlite, postgres, memory)")
	f.Bool("mock-llm", false, "answer extraction, scoring and summaries with the mock LLM")
}

// applyRootFlags copies explicitly set root flags over the loaded config.
func applyRootFlags(f *pflag.FlagSet, c *config.Config) {
	if f.Changed("log-level") {
		c.Log.Level, _ = f.GetString("log-level")
	}
	if f.Changed("store") {
		c.Store.Driver, _ = f.GetString("store")
	}
	if f.Changed("mock-llm") {
		c.LLM.Mock, _ = f.GetBool("mock-llm")
	}
}

func init() {
	registerRootFlags(rootCmd.PersistentFlags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
