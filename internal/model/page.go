package model

// Document is a single fetched page handed to the enrichment pipeline.
// Documents are produced by a crawler or the local folder loader and are
// never mutated afterwards.
type Document struct {
	URL      string           `json:"url"`
	Markdown string           `json:"markdown,omitempty"`
	HTML     string           `json:"html,omitempty"`
	Links    []string         `json:"links,omitempty"`
	Metadata DocumentMetadata `json:"metadata"`
}

// DocumentMetadata holds the page metadata reported by the crawler.
type DocumentMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	StatusCode  int    `json:"status_code,omitempty"`
}

// Target is one unit of work for the dispatcher. SourceDirectoryURL is set
// when the target was discovered by directory fan-out.
type Target struct {
	URL                string `json:"url"`
	SourceDirectoryURL string `json:"source_directory_url,omitempty"`
}

// CrawlOptions controls a single crawl of a target.
type CrawlOptions struct {
	Depth        int      `json:"depth"`
	PageLimit    int      `json:"page_limit"`
	IncludePaths []string `json:"include_paths,omitempty"`
	ExcludePaths []string `json:"exclude_paths,omitempty"`
	PollInterval int      `json:"poll_interval"` // seconds
	Delay        int      `json:"delay"`         // seconds
}
