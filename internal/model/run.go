package model

import "time"

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the status is completed or failed.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// RunOptions is the frozen pipeline configuration captured when a run is
// submitted.
type RunOptions struct {
	URL         string   `json:"url,omitempty"`
	URLs        []string `json:"urls,omitempty"`
	DomainsFile string   `json:"domains_file,omitempty"`
	HTMLFolder  string   `json:"html_folder,omitempty"`
	ICP         string   `json:"icp,omitempty"`

	Directory     bool `json:"directory"`
	MaxBusinesses int  `json:"max_businesses,omitempty"`

	SheetName     string   `json:"sheet_name,omitempty"`
	Title         string   `json:"title,omitempty"`
	Keyword       string   `json:"keyword,omitempty"`
	Label         string   `json:"label,omitempty"`
	ShareWith     []string `json:"share_with,omitempty"`
	SheetFolderID string   `json:"sheet_folder_id,omitempty"`
	ReuseSheet    bool     `json:"reuse_sheet"`
	SheetID       string   `json:"sheet_id,omitempty"`

	MaxDepth          int      `json:"max_depth,omitempty"`
	MaxPages          int      `json:"max_pages,omitempty"`
	PageConcurrency   int      `json:"page_concurrency,omitempty"`
	DomainConcurrency int      `json:"domain_concurrency,omitempty"`
	Model             string   `json:"model,omitempty"`
	Delay             int      `json:"delay,omitempty"`
	PollInterval      int      `json:"poll_interval,omitempty"`
	IncludePaths      []string `json:"include_paths,omitempty"`
	ExcludePaths      []string `json:"exclude_paths,omitempty"`
	DryRun            bool     `json:"dry_run"`
}

// HasInputs reports whether at least one input source is set.
func (o RunOptions) HasInputs() bool {
	return o.URL != "" || len(o.URLs) > 0 || o.DomainsFile != ""
}

// FailureKind classifies a recorded failure.
type FailureKind string

const (
	FailureFetch         FailureKind = "fetch_failure"
	FailureExtraction    FailureKind = "extraction_failure"
	FailureConfiguration FailureKind = "configuration_error"
	FailureSync          FailureKind = "sync_failure"
	FailureUnknown       FailureKind = "unknown"
)

// Failure is a structured failure record attached to a run result.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Domain  string      `json:"domain,omitempty"`
	URL     string      `json:"url,omitempty"`
}

// RunError describes why a run ended in the failed state.
type RunError struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// RunTotals counts targets across a run.
type RunTotals struct {
	TargetsDiscovered int `json:"targets_discovered"`
	Processed         int `json:"processed"`
	Successes         int `json:"successes"`
	Failures          int `json:"failures"`
}

// CrawlTotals counts fetched pages across a run.
type CrawlTotals struct {
	DirectoryPages   int     `json:"directory_pages"`
	TargetPages      int     `json:"target_pages"`
	TotalPages       int     `json:"total_pages"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// LLMTotals aggregates model usage across a run.
type LLMTotals struct {
	TotalCalls       int                   `json:"total_calls"`
	Models           map[string]TokenUsage `json:"models"`
	EstimatedCostUSD float64               `json:"estimated_cost_usd"`
}

// RunMetrics is the metrics block produced for each run.
type RunMetrics struct {
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	DurationMs int64       `json:"duration_ms"`
	Totals     RunTotals   `json:"totals"`
	Firecrawl  CrawlTotals `json:"firecrawl"`
	LLM        LLMTotals   `json:"llm"`
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	Appended         int        `json:"appended"`
	Failures         []Failure  `json:"failures"`
	DryRun           bool       `json:"dry_run"`
	SheetID          string     `json:"sheet_id,omitempty"`
	SpreadsheetURL   string     `json:"spreadsheet_url,omitempty"`
	CreatedNewSheet  bool       `json:"created_new_sheet"`
	DirectoryMode    bool       `json:"directory_mode"`
	TargetsProcessed int        `json:"targets_processed"`
	Leads            []SheetRow `json:"leads,omitempty"`
	Metrics          RunMetrics `json:"metrics"`
}

// Run is one end-to-end execution of the pipeline tracked by the job queue.
type Run struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Options    RunOptions `json:"options"`
	Result     *RunResult `json:"result,omitempty"`
	Error      *RunError  `json:"error,omitempty"`
}

// RunCounts tallies runs by status.
type RunCounts struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// StatsTotals sums run results across all known runs.
type StatsTotals struct {
	Appended          int `json:"appended"`
	TargetsDiscovered int `json:"targets_discovered"`
	TargetsProcessed  int `json:"targets_processed"`
	Successes         int `json:"successes"`
	Failures          int `json:"failures"`
}

// RunStats is the aggregate view across all known runs.
type RunStats struct {
	Runs           RunCounts   `json:"runs"`
	Totals         StatsTotals `json:"totals"`
	Firecrawl      CrawlTotals `json:"firecrawl"`
	LLM            LLMTotals   `json:"llm"`
	LastFinishedAt *time.Time  `json:"last_finished_at"`
}
