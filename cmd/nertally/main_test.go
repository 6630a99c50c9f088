package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/nertally/tally"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func fixtures(t *testing.T) (model, text string) {
	t.Helper()
	dir := t.TempDir()
	model = writeFile(t, dir, "names.tsv", "Paris\tLOC\nJohn Smith\tPER\n# comment\n")
	text = writeFile(t, dir, "sample.txt", "John Smith flew to Paris. Paris was cold.\n")
	return model, text
}

func TestRunPrintsReport(t *testing.T) {
	model, text := fixtures(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{"-env", "", model, text}, &stdout, &stderr)
	require.Equal(t, 0, code, stdout.String())

	out := stdout.String()
	assert.Contains(t, out, "The tagger supports 2 tags:")
	assert.Contains(t, out, "Number of named entities detected: 3")
	assert.Contains(t, out, "Tag LOCATION: Paris (2 occurrences)")
	assert.Contains(t, out, "Tag PERSON: John Smith (1 occurrences)")
	assert.Empty(t, stderr.String())
}

func TestRunMissingArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"only-model"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "You must give a NER model file")
}

func TestRunMissingModel(t *testing.T) {
	_, text := fixtures(t)
	var stdout, stderr bytes.Buffer
	code := run([]string{"-env", "", filepath.Join(t.TempDir(), "nope.tsv"), text}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "Unable to load model file")
}

func TestRunMissingTextFile(t *testing.T) {
	model, _ := fixtures(t)
	var stdout, stderr bytes.Buffer
	code := run([]string{"-env", "", model, filepath.Join(t.TempDir(), "nope.txt")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "Unable to tokenize file")
	assert.NotContains(t, stdout.String(), "The tagger supports")
}

func TestRunBadFormat(t *testing.T) {
	model, text := fixtures(t)
	var stdout, stderr bytes.Buffer
	code := run([]string{"-env", "", "-format", "xml", model, text}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "xml")
}

func TestRunWritesOutputAndStore(t *testing.T) {
	model, text := fixtures(t)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out", "report.csv")
	dbPath := filepath.Join(dir, "runs.db")
	var stdout, stderr bytes.Buffer

	code := run([]string{"-env", "", "-format", "csv", "-output", outPath, "-db", dbPath, "-verbose", model, text}, &stdout, &stderr)
	require.Equal(t, 0, code, stdout.String())
	assert.Contains(t, stdout.String(), "Report saved to")
	assert.Contains(t, stderr.String(), "Tag LOCATION: Score:")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Paris,LOCATION,2,yes")

	store, err := tally.OpenStore(dbPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Detections)
}

func TestRunHistory(t *testing.T) {
	model, text := fixtures(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	for i := 0; i < 2; i++ {
		var stdout, stderr bytes.Buffer
		require.Equal(t, 0, run([]string{"-env", "", "-db", dbPath, model, text}, &stdout, &stderr), stdout.String())
	}

	var stdout, stderr bytes.Buffer
	code := run([]string{"-env", "", "-history", "-db", dbPath}, &stdout, &stderr)
	require.Equal(t, 0, code, stdout.String())
	out := stdout.String()
	assert.Contains(t, out, "Stored runs: 2\n")
	assert.Contains(t, out, "   4  LOCATION     Paris\n")
	assert.Contains(t, out, "   2  PERSON       John Smith\n")
	assert.Less(t, strings.Index(out, "Paris"), strings.Index(out, "John Smith\n"))
}

func TestRunHistoryErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-env", "", "-history"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "-history needs -db")

	stdout.Reset()
	assert.Equal(t, 1, run([]string{"-env", "", "-history", "-db", filepath.Join(t.TempDir(), "none.db")}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "open store")

	stdout.Reset()
	assert.Equal(t, 1, run([]string{"-history", "model.tsv"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "You must give a NER model file")
}
