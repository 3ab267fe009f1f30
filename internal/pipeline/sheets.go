package pipeline

import (
	"context"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

// SpreadsheetSpec describes a spreadsheet to create for a run.
type SpreadsheetSpec struct {
	Title     string
	SheetName string
	ShareWith []string
	FolderID  string
}

// Spreadsheet identifies a created spreadsheet.
type Spreadsheet struct {
	ID  string
	URL string
}

// SheetSync is the leads sheet the pipeline writes to. Keys are lead ids.
type SheetSync interface {
	EnsureHeader(ctx context.Context, sheetID, tab string) error
	FetchExistingKeys(ctx context.Context, sheetID, tab string) (map[string]struct{}, error)
	AppendRows(ctx context.Context, rows []model.SheetRow, sheetID, tab string) error
	CreateSpreadsheet(ctx context.Context, spec SpreadsheetSpec) (*Spreadsheet, error)
}

// SpreadsheetURL returns the browser URL of a spreadsheet id.
func SpreadsheetURL(id string) string {
	if id == "" {
		return ""
	}
	return "https://docs.google.com/spreadsheets/d/" + id
}
