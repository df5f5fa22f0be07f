package history

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	ColumnDate      = "Date"
	ColumnName      = "Name"
	ColumnTwitter   = "Twitter Followers"
	ColumnInstagram = "Instagram Followers"
)

var (
	// ErrSchemaDrift means stored columns cannot be mapped onto a known schema.
	ErrSchemaDrift = errors.New("history: schema drift")
	// ErrCorrupt means the stored log exists but cannot be decoded.
	ErrCorrupt = errors.New("history: corrupt log")
	// ErrPersist means a commit to durable storage failed.
	ErrPersist = errors.New("history: persist failed")
	// ErrPoisoned is returned by Ingest after Load failed, committing then
	// would overwrite the unreadable log with fewer days.
	ErrPoisoned = errors.New("history: store not loaded")
)

// Schema is a versioned column layout of the historical log.
type Schema struct {
	Version int
	Columns []string
}

var (
	SchemaV1 = Schema{Version: 1, Columns: []string{ColumnDate, ColumnName, ColumnTwitter}}
	SchemaV2 = Schema{Version: 2, Columns: []string{ColumnDate, ColumnName, ColumnTwitter, ColumnInstagram}}

	// CurrentSchema is what every commit and export writes.
	CurrentSchema = SchemaV2

	knownSchemas = []Schema{SchemaV1, SchemaV2}
)

func (s Schema) Has(column string) bool {
	return slices.Contains(s.Columns, column)
}

// PlatformColumn returns the column holding a platform's counts.
func PlatformColumn(p Platform) string {
	switch p {
	case X:
		return ColumnTwitter
	case Instagram:
		return ColumnInstagram
	}
	return ""
}

// columnMap maps a column name to its position in a stored header.
type columnMap map[string]int

// cell returns the value of a column in a row, or "" when the layout does
// not carry that column.
func (m columnMap) cell(row []string, column string) string {
	idx, ok := m[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// resolveHeader maps a header onto a known schema by column name. Position
// does not matter, but the set of columns must match a schema exactly.
func resolveHeader(header []string) (Schema, columnMap, error) {
	columns := columnMap{}
	for i, raw := range header {
		name := raw
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if _, dup := columns[name]; dup {
			return Schema{}, nil, fmt.Errorf("%w: column %q appears twice", ErrSchemaDrift, name)
		}
		if !CurrentSchema.Has(name) {
			return Schema{}, nil, fmt.Errorf("%w: unknown column %q", ErrSchemaDrift, name)
		}
		columns[name] = i
	}

	for _, required := range []string{ColumnDate, ColumnName} {
		if _, ok := columns[required]; !ok {
			return Schema{}, nil, fmt.Errorf("%w: missing column %q", ErrSchemaDrift, required)
		}
	}

	for _, schema := range knownSchemas {
		if len(schema.Columns) != len(columns) {
			continue
		}
		matches := true
		for _, c := range schema.Columns {
			if _, ok := columns[c]; !ok {
				matches = false
				break
			}
		}
		if matches {
			return schema, columns, nil
		}
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	slices.Sort(names)
	return Schema{}, nil, fmt.Errorf("%w: columns %q match no known schema", ErrSchemaDrift, names)
}
