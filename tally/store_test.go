package tally

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreTotals(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	first := sampleReport()
	first.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.SaveReport(ctx, first))

	second := sampleReport()
	second.RunID = "run-2"
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	second.Results.Records = []OccurrenceRecord{
		{Text: "John", Category: "PERSON", Count: 3},
		{Text: "Sochi", Category: "LOCATION", Count: 2},
	}
	require.NoError(t, store.SaveReport(ctx, second))

	totals, err := store.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, []OccurrenceRecord{
		{Text: "John", Category: "PERSON", Count: 4},
		{Text: "Paris", Category: "LOCATION", Count: 2},
		{Text: "Sochi", Category: "LOCATION", Count: 2},
	}, totals)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, 3, runs[0].Detections)
	assert.Equal(t, 12, runs[0].Tokens)
	assert.True(t, runs[0].CreatedAt.Equal(first.CreatedAt))

	// duplicate run ids roll back
	assert.Error(t, store.SaveReport(ctx, second))
	totals, err = store.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, totals[0].Count)
}
