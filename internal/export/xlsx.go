// Package export writes prepared leads to local spreadsheet files and reads
// domain lists back from them.
package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

// DefaultSheetName is used when no tab name is given.
const DefaultSheetName = "Leads"

// WriteXLSX saves rows under a header row to path. Numeric cells are
// written as numbers and everything else as text.
func WriteXLSX(path, sheetName string, rows []model.SheetRow) error {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "xlsx: add sheet %q", sheetName)
	}

	header := sheet.AddRow()
	for _, h := range model.SheetHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r.Values() {
			cell := row.AddCell()
			switch val := v.(type) {
			case float64:
				cell.SetFloat(val)
			case int:
				cell.SetInt(val)
			case string:
				cell.SetString(val)
			default:
				cell.SetValue(val)
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

// ReadColumn returns the non-empty trimmed cells of column col in the first
// sheet, skipping skipRows leading rows.
func ReadColumn(path string, col, skipRows int) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", path)
	}

	var out []string
	for i, row := range f.Sheets[0].Rows {
		if i < skipRows || row == nil || col >= len(row.Cells) {
			continue
		}
		if v := strings.TrimSpace(row.Cells[col].String()); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// ReadRows returns every row of the named sheet as strings.
func ReadRows(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	sheet, ok := f.Sheet[sheetName]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", sheetName)
	}
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
