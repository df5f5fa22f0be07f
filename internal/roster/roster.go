package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"mostracker/internal/history"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Entity is a tracked official.
type Entity struct {
	Name string
	// Handles maps a platform to the handle on it, a missing or empty
	// handle means the entity is not tracked there.
	Handles map[history.Platform]string
}

func (e Entity) Handle(p history.Platform) string {
	return e.Handles[p]
}

var columnAliases = map[string][]string{
	"name":                     {"name"},
	string(history.X):         {"x handle", "twitter handle", "x", "twitter"},
	string(history.Instagram): {"insta handle", "instagram handle", "instagram", "ig handle"},
}

// Load reads a roster from a .csv or .xlsx file, for spreadsheets the first
// sheet is used.
func Load(path string) ([]Entity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(file)
	case ".csv":
		return ReadCSV(file)
	}
	return nil, fmt.Errorf("unsupported roster format %q", filepath.Ext(path))
}

func ReadCSV(r io.Reader) ([]Entity, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read roster csv: %w", err)
	}
	return parse(rows)
}

func ReadXLSX(r io.Reader) ([]Entity, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open roster workbook: %w", err)
	}
	defer book.Close()

	sheet := book.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("roster workbook has no sheets")
	}
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return parse(rows)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// NormalizeHandle trims a handle cell, strips a leading @ and a profile url
// prefix, and maps spreadsheet placeholders to the empty handle.
func NormalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	if idx := strings.Index(handle, "://"); idx >= 0 {
		handle = strings.Trim(handle[idx+3:], "/")
		if slash := strings.LastIndex(handle, "/"); slash >= 0 {
			handle = handle[slash+1:]
		}
	}
	handle = strings.TrimPrefix(handle, "@")
	switch strings.ToLower(handle) {
	case "", "nan", "none", "-", "n/a":
		return ""
	}
	return handle
}

func parse(rows [][]string) ([]Entity, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("roster is empty")
	}

	columns := map[string]int{}
	for i, raw := range rows[0] {
		header := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		for key, aliases := range columnAliases {
			for _, alias := range aliases {
				if header == alias {
					if _, taken := columns[key]; !taken {
						columns[key] = i
					}
				}
			}
		}
	}

	nameIdx, ok := columns["name"]
	if !ok {
		return nil, fmt.Errorf("roster has no Name column")
	}
	if _, ok := columns[string(history.X)]; !ok {
		return nil, fmt.Errorf("roster has no X Handle column")
	}
	if _, ok := columns[string(history.Instagram)]; !ok {
		return nil, fmt.Errorf("roster has no Insta Handle column")
	}

	var entities []Entity
	seen := map[string]int{}
	for lineNo, row := range rows[1:] {
		name := cell(row, nameIdx)
		if name == "" {
			continue
		}
		if first, dup := seen[name]; dup {
			return nil, fmt.Errorf("roster row %d repeats %q from row %d", lineNo+2, name, first)
		}
		seen[name] = lineNo + 2

		handles := map[history.Platform]string{}
		for _, p := range history.Platforms {
			handle := NormalizeHandle(cell(row, columns[string(p)]))
			if handle != "" {
				handles[p] = handle
			}
		}
		entities = append(entities, Entity{Name: name, Handles: handles})
	}

	return entities, nil
}
