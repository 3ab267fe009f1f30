package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/config"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/export"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl, extract, score, and sync leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := runOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		xlsxPath, _ := cmd.Flags().GetString("xlsx")

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, opts)
		if err != nil {
			zap.L().Error("pipeline failed", zap.Error(err))
			return eris.Wrap(err, "run")
		}

		zap.L().Info("pipeline completed",
			zap.Int("appended", result.Appended),
			zap.Int("targets_processed", result.TargetsProcessed),
			zap.Int("failures", len(result.Failures)),
			zap.Bool("dry_run", result.DryRun),
			zap.Float64("estimated_cost_usd", result.Metrics.LLM.EstimatedCostUSD),
			zap.Float64("crawl_cost_usd", result.Metrics.Firecrawl.EstimatedCostUSD),
		)

		if xlsxPath != "" {
			if err := export.WriteXLSX(xlsxPath, opts.SheetName, result.Leads); err != nil {
				return err
			}
			zap.L().Info("leads exported", zap.String("path", xlsxPath), zap.Int("rows", len(result.Leads)))
		}

		if !result.DryRun && result.SpreadsheetURL != "" {
			fmt.Fprintf(os.Stdout, "Spreadsheet URL: %s\n", result.SpreadsheetURL)
		}
		return nil
	},
}

// runOptionsFromFlags freezes the run flags into RunOptions. Unset numeric
// flags stay zero so the configured defaults apply.
func runOptionsFromFlags(cmd *cobra.Command) (model.RunOptions, error) {
	f := cmd.Flags()
	var opts model.RunOptions
	var err error
	get := func(name string) string {
		v, e := f.GetString(name)
		if e != nil && err == nil {
			err = e
		}
		return v
	}
	getInt := func(name string) int {
		v, e := f.GetInt(name)
		if e != nil && err == nil {
			err = e
		}
		return v
	}
	getBool := func(name string) bool {
		v, e := f.GetBool(name)
		if e != nil && err == nil {
			err = e
		}
		return v
	}

	opts.URL = get("url")
	opts.URLs, _ = f.GetStringSlice("urls")
	opts.DomainsFile = get("domains")
	opts.HTMLFolder = get("html-folder")
	opts.ICP = get("icp")
	opts.Directory = getBool("directory")
	opts.MaxBusinesses = getInt("max-businesses")
	opts.SheetName = get("sheet")
	opts.Title = get("title")
	opts.Keyword = get("keyword")
	opts.ShareWith = config.SplitList(get("share"))
	opts.SheetFolderID = get("sheet-folder")
	opts.ReuseSheet = getBool("reuse-sheet")
	opts.MaxDepth = getInt("max-depth")
	opts.MaxPages = getInt("max-pages")
	opts.PageConcurrency = getInt("page-concurrency")
	opts.DomainConcurrency = getInt("domain-concurrency")
	opts.Model = get("model")
	opts.Delay = getInt("delay")
	opts.PollInterval = getInt("poll-interval")
	opts.DryRun = getBool("dry-run")

	if err != nil {
		return model.RunOptions{}, eris.Wrap(err, "read run flags")
	}
	return opts, nil
}

func init() {
	registerRunFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}

func registerRunFlags(f *pflag.FlagSet) {
	f.String("url", "", "starting URL to crawl")
	f.StringSlice("urls", nil, "multiple starting URLs")
	f.String("domains", "", "path to a newline-separated, YAML, or .xlsx list of domains/URLs")
	f.String("html-folder", "", "folder of HTML/Markdown files to analyze instead of crawling")
	f.String("icp", "", "ideal customer profile description to guide scoring")
	f.Bool("directory", false, "treat the inputs as directories/listings and fan out to business sites")
	f.Int("max-businesses", 0, "maximum businesses to extract from directory sources (default from config)")
	f.String("sheet", "", "tab name inside the spreadsheet (default Leads)")
	f.String("title", "", "spreadsheet title override for this run")
	f.String("keyword", "", "keyword to include in the auto-generated spreadsheet title")
	f.String("share", "", "additional comma/space separated emails to share the spreadsheet with")
	f.String("sheet-folder", "", "Drive folder ID where new spreadsheets are stored")
	f.Bool("reuse-sheet", false, "append to the configured SHEET_ID instead of creating a new spreadsheet")
	f.Int("max-depth", 0, "max crawl depth (default from config)")
	f.Int("max-pages", 0, "max pages to fetch (default from config)")
	f.Int("page-concurrency", 0, "concurrent page extractions (default from config)")
	f.Int("domain-concurrency", 0, "domains processed in parallel (default from config)")
	f.String("model", "", "override the extraction/scoring model")
	f.Int("delay", 0, "delay between crawl requests in seconds")
	f.Int("poll-interval", 0, "crawl status poll interval in seconds")
	f.Bool("dry-run", false, "run without writing to Google Sheets")
	f.String("xlsx", "", "also export the prepared rows to this .xlsx file")
}
