package history

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeaders(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		schema  Schema
		records []Record
		drift   bool
	}{
		{
			name:    "empty file",
			input:   "",
			schema:  CurrentSchema,
			records: nil,
		},
		{
			name:    "header only",
			input:   "Date,Name,Twitter Followers,Instagram Followers\n",
			schema:  SchemaV2,
			records: nil,
		},
		{
			name:   "columns are trimmed and mapped by name",
			input:  "\ufeff Name ,Instagram Followers, Date,Twitter Followers\nA,5,2024-01-01,6\n",
			schema: SchemaV2,
			records: []Record{
				{Date: "2024-01-01", Name: "A", Twitter: Some(6), Instagram: Some(5)},
			},
		},
		{
			name:   "legacy layout",
			input:  "Date,Name,Twitter Followers\n2024-01-01,A,6\n",
			schema: SchemaV1,
			records: []Record{
				{Date: "2024-01-01", Name: "A", Twitter: Some(6), Instagram: None},
			},
		},
		{
			name:   "float counts from dataframe tooling",
			input:  "Date,Name,Twitter Followers,Instagram Followers\n2024-01-01,A,1234.0,\n",
			schema: SchemaV2,
			records: []Record{
				{Date: "2024-01-01", Name: "A", Twitter: Some(1234), Instagram: None},
			},
		},
		{
			name:  "unknown column",
			input: "Date,Name,Twitter Followers,Instagram Followers,Threads Followers\n",
			drift: true,
		},
		{
			name:  "missing name",
			input: "Date,Twitter Followers,Instagram Followers\n",
			drift: true,
		},
		{
			name:  "repeated column",
			input: "Date,Name,Twitter Followers,Twitter Followers\n",
			drift: true,
		},
		{
			name:  "instagram without twitter matches no schema",
			input: "Date,Name,Instagram Followers\n",
			drift: true,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			snapshot, err := decodeCSV(strings.NewReader(test.input))
			if test.drift {
				require.ErrorIs(t, err, ErrSchemaDrift)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			require.Equal(t, test.schema, snapshot.Schema)
			diff := cmp.Diff(test.records, snapshot.Records)
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestDecodeCorruptRows(t *testing.T) {
	header := "Date,Name,Twitter Followers,Instagram Followers\n"
	rows := []string{
		"2024-13-01,A,1,2\n",
		"2024-01-01,A,-1,2\n",
		"2024-01-01,A,1.5,2\n",
		"2024-01-01,A,1\n",
		"2024-01-01,,1,2\n",
		"2024-01-01,\"A,1,2\n",
	}
	for _, row := range rows {
		_, err := decodeCSV(strings.NewReader(header + row))
		require.ErrorIs(t, err, ErrCorrupt, row)
	}
}

func TestExportRoundTrip(t *testing.T) {
	records := []Record{
		{Date: "2024-01-02", Name: "Doe, Jane", Twitter: Some(10), Instagram: None},
		{Date: "2024-01-01", Name: "Doe, Jane", Twitter: Some(9), Instagram: Some(0)},
		{Date: "2024-01-01", Name: `R. "Bob" Roe`, Twitter: None, Instagram: Some(1_000_000)},
	}
	log, dropped := buildLog(CurrentSchema, records)
	require.Empty(t, dropped)

	var buf bytes.Buffer
	err := log.Export(&buf)
	if err != nil {
		t.Fatal(err)
	}

	snapshot, err := decodeCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	reloaded, _ := buildLog(snapshot.Schema, snapshot.Records)

	diff := cmp.Diff(log.Records(), reloaded.Records())
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, log.Schema(), reloaded.Schema())
}

func TestCSVCommitReplacesAtomically(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "data.csv")
	file := NewCSVFile(path)

	_, err := file.Read(ctx)
	require.True(t, os.IsNotExist(err))

	first := []Record{{Date: "2024-01-01", Name: "A", Twitter: Some(1)}}
	err = file.Commit(ctx, Commit{All: first, Added: first})
	if err != nil {
		t.Fatal(err)
	}

	second := append(first, Record{Date: "2024-01-02", Name: "A", Twitter: Some(2)})
	err = file.Commit(ctx, Commit{All: second, Added: second[1:]})
	if err != nil {
		t.Fatal(err)
	}

	snapshot, err := file.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, second, snapshot.Records)

	// no temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, entries, 1)
	require.Equal(t, "data.csv", entries[0].Name())
}

func TestCSVCommitFailureKeepsPreviousLog(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.csv")
	file := NewCSVFile(path)

	first := []Record{{Date: "2024-01-01", Name: "A", Twitter: Some(1)}}
	err := file.Commit(ctx, Commit{All: first, Added: first})
	if err != nil {
		t.Fatal(err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = file.Commit(cancelled, Commit{All: nil})
	require.Error(t, err)

	snapshot, err := file.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, first, snapshot.Records)
}
