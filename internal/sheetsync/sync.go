// Package sheetsync writes leads to a Google spreadsheet.
package sheetsync

import (
	"context"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/pipeline"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/resilience"
	"github.com/ShaunandDavid/lead-generator-firecrawl/pkg/sheets"
)

// Sync implements pipeline.SheetSync on a sheets.Client.
type Sync struct {
	client      sheets.Client
	retry       resilience.RetryConfig
	shareNotify bool
}

// Option configures a Sync.
type Option func(*Sync)

// WithRetry sets the retry policy for API calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Sync) { s.retry = cfg }
}

// WithShareNotify sends a notification email when sharing.
func WithShareNotify(notify bool) Option {
	return func(s *Sync) { s.shareNotify = notify }
}

// New creates a Sync.
func New(client sheets.Client, opts ...Option) *Sync {
	s := &Sync{client: client, retry: resilience.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ pipeline.SheetSync = (*Sync)(nil)

// EnsureHeader writes the header row when row 1 is empty. A missing tab is
// created first.
func (s *Sync) EnsureHeader(ctx context.Context, sheetID, tab string) error {
	rows, err := s.getValues(ctx, sheetID, sheets.A1(tab, "1:1"))
	if err != nil {
		if resilience.StatusCode(err) != http.StatusBadRequest {
			return eris.Wrapf(err, "sheetsync: read header of %q", tab)
		}
		zap.L().Info("sheetsync: adding missing tab", zap.String("sheet_id", sheetID), zap.String("tab", tab))
		if err := s.call(ctx, func(ctx context.Context) error {
			return s.client.AddSheet(ctx, sheetID, tab)
		}); err != nil {
			return eris.Wrapf(err, "sheetsync: add tab %q", tab)
		}
		rows = nil
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		return nil
	}

	header := make([]any, len(model.SheetHeader))
	for i, h := range model.SheetHeader {
		header[i] = h
	}
	return eris.Wrap(s.call(ctx, func(ctx context.Context) error {
		return s.client.UpdateValues(ctx, sheetID, sheets.A1(tab, "A1"), [][]any{header})
	}), "sheetsync: write header")
}

// FetchExistingKeys returns the lead ids already present in the tab.
func (s *Sync) FetchExistingKeys(ctx context.Context, sheetID, tab string) (map[string]struct{}, error) {
	rows, err := s.getValues(ctx, sheetID, sheets.A1(tab, "B2:B"))
	if err != nil {
		return nil, eris.Wrap(err, "sheetsync: read lead ids")
	}
	keys := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		id, _ := row[0].(string)
		if id = strings.TrimSpace(id); id != "" {
			keys[id] = struct{}{}
		}
	}
	return keys, nil
}

// AppendRows appends rows below the existing data.
func (s *Sync) AppendRows(ctx context.Context, rows []model.SheetRow, sheetID, tab string) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.EnsureHeader(ctx, sheetID, tab); err != nil {
		return err
	}
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = r.Values()
	}
	err := s.call(ctx, func(ctx context.Context) error {
		return s.client.AppendValues(ctx, sheetID, sheets.A1(tab, "A:A"), values)
	})
	if err != nil {
		return eris.Wrapf(err, "sheetsync: append %d rows", len(rows))
	}
	zap.L().Info("sheetsync: rows appended", zap.String("sheet_id", sheetID), zap.Int("rows", len(rows)))
	return nil
}

// CreateSpreadsheet creates a spreadsheet with one tab. Moving it into a
// folder and sharing it are best effort.
func (s *Sync) CreateSpreadsheet(ctx context.Context, spec pipeline.SpreadsheetSpec) (*pipeline.Spreadsheet, error) {
	created, err := callVal(ctx, s, func(ctx context.Context) (*sheets.Created, error) {
		return s.client.CreateSpreadsheet(ctx, spec.Title, spec.SheetName)
	})
	if err != nil {
		return nil, eris.Wrap(err, "sheetsync: create spreadsheet")
	}
	log := zap.L().With(zap.String("sheet_id", created.ID))

	if spec.FolderID != "" {
		if err := s.call(ctx, func(ctx context.Context) error {
			return s.client.MoveToFolder(ctx, created.ID, spec.FolderID)
		}); err != nil {
			log.Warn("sheetsync: move to folder failed", zap.String("folder_id", spec.FolderID), zap.Error(err))
		}
	}

	for _, email := range spec.ShareWith {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		if err := s.call(ctx, func(ctx context.Context) error {
			return s.client.ShareWithWriter(ctx, created.ID, email, s.shareNotify)
		}); err != nil {
			log.Warn("sheetsync: share failed", zap.String("email", email), zap.Error(err))
		}
	}

	log.Info("sheetsync: spreadsheet created", zap.String("title", spec.Title))
	return &pipeline.Spreadsheet{ID: created.ID, URL: created.URL}, nil
}

func (s *Sync) getValues(ctx context.Context, sheetID, rng string) ([][]any, error) {
	return callVal(ctx, s, func(ctx context.Context) ([][]any, error) {
		return s.client.GetValues(ctx, sheetID, rng)
	})
}

func (s *Sync) call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := callVal(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// callVal retries fn on transient API errors and attaches the HTTP status
// of any googleapi.Error.
func callVal[T any](ctx context.Context, s *Sync, fn func(ctx context.Context) (T, error)) (T, error) {
	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (T, error) {
		val, err := fn(ctx)
		if err != nil {
			return val, classify(err)
		}
		return val, nil
	})
}

func classify(err error) error {
	var gerr *googleapi.Error
	if eris.As(err, &gerr) {
		return resilience.WrapStatus(err, gerr.Code)
	}
	return err
}
