// Package scrape fetches the documents of one crawl target, either from
// Firecrawl or from a local folder of saved pages.
package scrape

import (
	"context"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

// Crawler fetches every document reachable from startURL within opts.
type Crawler interface {
	Crawl(ctx context.Context, startURL string, opts model.CrawlOptions) ([]model.Document, error)
}

// VisitedRecorder remembers which URLs were crawled for a domain.
type VisitedRecorder interface {
	AppendVisited(ctx context.Context, key string, urls []string) error
}
