package scrape

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

var pageFileRe = regexp.MustCompile(`(?i)\.(html?|md)$`)

var whitespaceRe = regexp.MustCompile(`[ \t]+`)

// LocalLoader serves saved .html and .md files from a folder instead of
// crawling. The start URL is ignored.
type LocalLoader struct {
	folder string
}

// NewLocalLoader creates a LocalLoader rooted at folder.
func NewLocalLoader(folder string) *LocalLoader {
	return &LocalLoader{folder: folder}
}

// Crawl implements Crawler. Include and exclude patterns are matched against
// each file's path relative to the folder.
func (l *LocalLoader) Crawl(ctx context.Context, _ string, opts model.CrawlOptions) ([]model.Document, error) {
	root, err := filepath.Abs(l.folder)
	if err != nil {
		return nil, eris.Wrapf(err, "local: resolve %s", l.folder)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, eris.Wrapf(err, "local: folder not found: %s", root)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("local: %s is not a directory", root)
	}

	matcher := NewPathMatcher(opts.IncludePaths, opts.ExcludePaths)
	var docs []model.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !pageFileRe.MatchString(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if !matcher.Allowed("/" + filepath.ToSlash(rel)) {
			return nil
		}
		doc, err := loadFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "local: walk %s", root)
	}
	return docs, nil
}

func loadFile(path string) (model.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, eris.Wrapf(err, "local: read %s", path)
	}
	doc := model.Document{URL: "file://" + filepath.ToSlash(path)}
	base := filepath.Base(path)

	if strings.HasSuffix(strings.ToLower(path), ".md") {
		doc.Markdown = string(raw)
		doc.Metadata.Title = base
		return doc, nil
	}

	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return model.Document{}, eris.Wrapf(err, "local: parse %s", path)
	}
	parsed.Find("script, style").Remove()
	doc.HTML = string(raw)
	doc.Markdown = collapse(parsed.Find("body").Text())
	doc.Metadata.Title = strings.TrimSpace(parsed.Find("title").First().Text())
	if doc.Metadata.Title == "" {
		doc.Metadata.Title = base
	}
	if desc, ok := parsed.Find(`meta[name="description"]`).Attr("content"); ok {
		doc.Metadata.Description = strings.TrimSpace(desc)
	}
	parsed.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href := strings.TrimSpace(s.AttrOr("href", "")); href != "" {
			doc.Links = append(doc.Links, href)
		}
	})
	return doc, nil
}

func collapse(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
