package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	ExportFilename    = "followers_history.csv"
	ExportContentType = "text/csv"
)

func encodeCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	err := writer.Write(CurrentSchema.Columns)
	if err != nil {
		return err
	}
	for _, r := range records {
		err = writer.Write([]string{
			r.Date.String(),
			r.Name,
			r.Twitter.String(),
			r.Instagram.String(),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// decodeCSV reads a stored csv log. An input without any bytes is an empty
// log in the current schema.
func decodeCSV(r io.Reader) (Snapshot, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Snapshot{Schema: CurrentSchema}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: read header: %w", ErrCorrupt, err)
	}

	schema, columns, err := resolveHeader(header)
	if err != nil {
		return Snapshot{}, err
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		line, _ := reader.FieldPos(0)
		if len(row) != len(header) {
			return Snapshot{}, fmt.Errorf(
				"%w: line %d has %d fields, header has %d",
				ErrCorrupt, line, len(row), len(header),
			)
		}

		record, err := decodeRow(schema, columns, row)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: line %d: %w", ErrCorrupt, line, err)
		}
		records = append(records, record)
	}

	return Snapshot{Schema: schema, Records: records}, nil
}

func decodeRow(schema Schema, columns columnMap, row []string) (Record, error) {
	date, err := ParseDate(columns.cell(row, ColumnDate))
	if err != nil {
		return Record{}, err
	}
	name := strings.TrimSpace(columns.cell(row, ColumnName))
	if name == "" {
		return Record{}, fmt.Errorf("empty name")
	}

	record := Record{Date: date, Name: name}
	for _, p := range Platforms {
		column := PlatformColumn(p)
		if !schema.Has(column) {
			// column did not exist in this version, every value is absent
			continue
		}
		count, err := ParseCount(columns.cell(row, column))
		if err != nil {
			return Record{}, fmt.Errorf("%s: %w", column, err)
		}
		switch p {
		case X:
			record.Twitter = count
		case Instagram:
			record.Instagram = count
		}
	}
	return record, nil
}

// CSVFile stores the log as a single human-inspectable csv file.
type CSVFile struct {
	path string
}

func NewCSVFile(path string) CSVFile {
	return CSVFile{path: path}
}

func (f CSVFile) Name() string {
	return fmt.Sprintf("csv:%s", f.path)
}

func (f CSVFile) Path() string {
	return f.path
}

func (f CSVFile) Read(ctx context.Context) (Snapshot, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return Snapshot{}, err
	}
	defer file.Close()
	return decodeCSV(file)
}

// Commit rewrites the whole file. The new contents go to a temp file in the
// same directory which is then renamed over the old one, so readers only
// ever see the previous or the next complete log.
func (f CSVFile) Commit(ctx context.Context, commit Commit) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".%s.*.tmp", filepath.Base(f.path)))
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	err = encodeCSV(tmp, commit.All)
	if err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	err = tmp.Sync()
	if err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	err = os.Chmod(tmpPath, 0644)
	if err != nil {
		return err
	}
	err = os.Rename(tmpPath, f.path)
	if err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true
	return nil
}
