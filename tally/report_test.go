package tally

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	agg := NewAggregator(AggregatorOptions{})
	ds := []Detection{
		{Text: "Paris", Category: "LOCATION", Score: 0.91},
		{Text: "Paris", Category: "LOCATION", Score: 0.85},
		{Text: "John", Category: "PERSON", Score: 0.77},
	}
	agg.RecordAll(ds)
	return Report{
		RunID:      "run-1",
		Engine:     "fake",
		Source:     "sample.txt",
		Tags:       []string{"LOCATION", "PERSON"},
		Tracked:    []string{"PERSON", "LOCATION", "ORGANIZATION"},
		TokenCount: 12,
		Detections: ds,
		Results:    agg.Results(),
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteReportText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), ReportOptions{Format: FormatText, Verbose: true}))
	out := buf.String()

	assert.Contains(t, out, "The tagger supports 2 tags:\n   LOCATION\n   PERSON\n")
	assert.Contains(t, out, "Number of named entities detected: 3")
	assert.Contains(t, out, "   Tag PERSON: Score: 0.770: John\n")
	assert.Contains(t, out, "   2  LOCATION     Paris\n")
	assert.Contains(t, out, "Tag PERSON: John (1 occurrences), top score 0.770: John\n")
	assert.Contains(t, out, "Tag LOCATION: Paris (2 occurrences), top score 0.910: Paris\n")
	assert.Contains(t, out, "Tag ORGANIZATION: (none)\n")
	assert.Less(t, strings.Index(out, "Tag PERSON: John"), strings.Index(out, "Tag LOCATION: Paris"))
}

func TestWriteReportTextQuiet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), ReportOptions{}))
	assert.NotContains(t, buf.String(), "Score: 0.850")
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), ReportOptions{Format: FormatJSON}))

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 2, got.Results.Best["LOCATION"].Count)
	assert.Len(t, got.Detections, 3)
}

func TestWriteReportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), ReportOptions{Format: FormatCSV}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"text", "category", "count", "best"},
		{"Paris", "LOCATION", "2", "yes"},
		{"John", "PERSON", "1", "yes"},
	}, rows)
}

func TestWriteHistory(t *testing.T) {
	runs := []RunSummary{{
		ID:         "run-1",
		Source:     "sample.txt",
		Tokens:     12,
		Detections: 3,
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}
	totals := []OccurrenceRecord{
		{Text: "Paris", Category: "LOCATION", Count: 12},
		{Text: "John", Category: "PERSON", Count: 3},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteHistory(&buf, runs, totals))
	out := buf.String()

	assert.Contains(t, out, "Stored runs: 1\n")
	assert.Contains(t, out, "   2026-01-02T03:04:05Z  run-1  sample.txt  12 tokens, 3 detections\n")
	assert.Contains(t, out, "   12  LOCATION     Paris\n")
	assert.Contains(t, out, "    3  PERSON       John\n")

	buf.Reset()
	require.NoError(t, WriteHistory(&buf, nil, nil))
	assert.Contains(t, buf.String(), "Stored runs: 0\n")
	assert.Contains(t, buf.String(), "   (none)\n")
}
