package roster

import (
	"bytes"
	"mostracker/internal/history"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		" Name , X Handle ,Insta Handle ,Ministry",
		" Jane Doe ,@janedoe,jane.doe,Finance",
		"John Roe,nan,https://www.instagram.com/johnroe/,Health",
		",orphan,orphan,",
		"Solo",
	}, "\n")

	entities, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	expected := []Entity{
		{Name: "Jane Doe", Handles: map[history.Platform]string{
			history.X:         "janedoe",
			history.Instagram: "jane.doe",
		}},
		{Name: "John Roe", Handles: map[history.Platform]string{
			history.Instagram: "johnroe",
		}},
		{Name: "Solo", Handles: map[history.Platform]string{}},
	}
	diff := cmp.Diff(expected, entities)
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, "", entities[1].Handle(history.X))
}

func TestReadCSVErrors(t *testing.T) {
	cases := map[string]string{
		"no name column":      "Who,X Handle,Insta Handle\nA,a,a\n",
		"no instagram column": "Name,X Handle\nA,a\n",
		"repeated name":       "Name,X Handle,Insta Handle\nA,a,a\nA,b,b\n",
		"empty":               "",
	}
	for name, input := range cases {
		_, err := ReadCSV(strings.NewReader(input))
		require.Error(t, err, name)
	}
}

func TestLoadXLSX(t *testing.T) {
	book := excelize.NewFile()
	defer book.Close()

	sheet := book.GetSheetName(0)
	rows := [][]any{
		{"Name ", "X Handle", "Insta Handle"},
		{"Jane Doe", "janedoe", "jane.doe"},
		{"John Roe", "johnroe"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		err = book.SetSheetRow(sheet, cellName, &row)
		if err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	_, err := book.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	err = os.WriteFile(path, buf.Bytes(), 0644)
	if err != nil {
		t.Fatal(err)
	}

	entities, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, entities, 2)
	require.Equal(t, "jane.doe", entities[0].Handle(history.Instagram))
	require.Equal(t, "johnroe", entities[1].Handle(history.X))
	require.Equal(t, "", entities[1].Handle(history.Instagram))
}

func TestLoadUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	err := os.WriteFile(path, []byte("[]"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Load(path)
	require.Error(t, err)
}

func TestSimilarNames(t *testing.T) {
	entities := []Entity{
		{Name: "Jyotiraditya Scindia"},
		{Name: "Nirmala Sitharaman"},
		{Name: "Brand New Person"},
	}
	historical := []string{"Jyotiraditya M. Scindia", "Nirmala Sitharaman", "Someone Else"}

	matches := SimilarNames(entities, historical, DefaultSimilarity)
	require.Len(t, matches, 1)
	require.Equal(t, "Jyotiraditya Scindia", matches[0].Roster)
	require.Equal(t, "Jyotiraditya M. Scindia", matches[0].Historical)
	require.GreaterOrEqual(t, matches[0].Score, DefaultSimilarity)
}
