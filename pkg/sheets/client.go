// Package sheets is a thin client over the Google Sheets v4 and Drive v3
// APIs for creating, sharing, reading and appending to spreadsheets.
package sheets

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Value input and insert modes used for writes.
const (
	inputRaw   = "RAW"
	insertRows = "INSERT_ROWS"
)

// Scopes are the OAuth scopes the client requests.
var Scopes = []string{sheetsapi.SpreadsheetsScope, drive.DriveScope}

// Created identifies a new spreadsheet.
type Created struct {
	ID  string
	URL string
}

// Client performs spreadsheet operations.
type Client interface {
	CreateSpreadsheet(ctx context.Context, title, tab string) (*Created, error)
	MoveToFolder(ctx context.Context, fileID, folderID string) error
	ShareWithWriter(ctx context.Context, fileID, email string, notify bool) error
	AddSheet(ctx context.Context, spreadsheetID, title string) error
	GetValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error
	AppendValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

// Option configures the client.
type Option func(*settings)

type settings struct {
	credentialsFile string
	endpoint        string
	extra           []option.ClientOption
}

// WithCredentialsFile authenticates with a service account key file.
func WithCredentialsFile(path string) Option {
	return func(s *settings) { s.credentialsFile = path }
}

// WithEndpoint points both APIs at base without authentication. Sheets
// requests go to base/v4/... and Drive requests to base/drive/v3/....
func WithEndpoint(base string) Option {
	return func(s *settings) { s.endpoint = strings.TrimRight(base, "/") }
}

// WithClientOptions appends raw google API client options.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *settings) { s.extra = append(s.extra, opts...) }
}

type apiClient struct {
	sheets *sheetsapi.Service
	drive  *drive.Service
}

// NewClient builds a Client. Without options it uses application default
// credentials.
func NewClient(ctx context.Context, opts ...Option) (Client, error) {
	var s settings
	for _, o := range opts {
		o(&s)
	}

	common := []option.ClientOption{option.WithScopes(Scopes...)}
	if s.credentialsFile != "" {
		common = append(common, option.WithCredentialsFile(s.credentialsFile))
	}
	common = append(common, s.extra...)

	sheetOpts := append([]option.ClientOption{}, common...)
	driveOpts := append([]option.ClientOption{}, common...)
	if s.endpoint != "" {
		sheetOpts = append(sheetOpts, option.WithEndpoint(s.endpoint+"/"), option.WithoutAuthentication())
		driveOpts = append(driveOpts, option.WithEndpoint(s.endpoint+"/drive/v3/"), option.WithoutAuthentication())
	}

	sheetSvc, err := sheetsapi.NewService(ctx, sheetOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create sheets service")
	}
	driveSvc, err := drive.NewService(ctx, driveOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create drive service")
	}
	return &apiClient{sheets: sheetSvc, drive: driveSvc}, nil
}

func (c *apiClient) CreateSpreadsheet(ctx context.Context, title, tab string) (*Created, error) {
	req := &sheetsapi.Spreadsheet{
		Properties: &sheetsapi.SpreadsheetProperties{Title: title},
		Sheets:     []*sheetsapi.Sheet{{Properties: &sheetsapi.SheetProperties{Title: tab}}},
	}
	resp, err := c.sheets.Spreadsheets.Create(req).Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create spreadsheet")
	}
	url := resp.SpreadsheetUrl
	if url == "" {
		url = "https://docs.google.com/spreadsheets/d/" + resp.SpreadsheetId
	}
	return &Created{ID: resp.SpreadsheetId, URL: url}, nil
}

func (c *apiClient) MoveToFolder(ctx context.Context, fileID, folderID string) error {
	_, err := c.drive.Files.Update(fileID, &drive.File{}).
		AddParents(folderID).
		RemoveParents("root").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	return eris.Wrap(err, "sheets: move to folder")
}

func (c *apiClient) ShareWithWriter(ctx context.Context, fileID, email string, notify bool) error {
	perm := &drive.Permission{Type: "user", Role: "writer", EmailAddress: strings.TrimSpace(email)}
	_, err := c.drive.Permissions.Create(fileID, perm).
		SendNotificationEmail(notify).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	return eris.Wrap(err, "sheets: share spreadsheet")
}

func (c *apiClient) AddSheet(ctx context.Context, spreadsheetID, title string) error {
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{Properties: &sheetsapi.SheetProperties{Title: title}},
		}},
	}
	_, err := c.sheets.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return eris.Wrap(err, "sheets: add sheet")
}

func (c *apiClient) GetValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := c.sheets.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrap(err, "sheets: get values")
	}
	return resp.Values, nil
}

func (c *apiClient) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := c.sheets.Spreadsheets.Values.Update(spreadsheetID, rng, &sheetsapi.ValueRange{Values: values}).
		ValueInputOption(inputRaw).
		Context(ctx).
		Do()
	return eris.Wrap(err, "sheets: update values")
}

func (c *apiClient) AppendValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := c.sheets.Spreadsheets.Values.Append(spreadsheetID, rng, &sheetsapi.ValueRange{Values: values}).
		ValueInputOption(inputRaw).
		InsertDataOption(insertRows).
		Context(ctx).
		Do()
	return eris.Wrap(err, "sheets: append values")
}

// A1 returns the A1 notation for rng on tab, quoting the tab name.
func A1(tab, rng string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + rng
}

// ServiceAccountEmail reads client_email from a service account key file.
func ServiceAccountEmail(path string) (string, error) {
	if path == "" {
		return "", eris.New("sheets: credentials path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrap(err, "sheets: read credentials")
	}
	var key struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return "", eris.Wrap(err, "sheets: parse credentials")
	}
	if key.ClientEmail == "" {
		return "", eris.New("sheets: credentials have no client_email")
	}
	return key.ClientEmail, nil
}
