package metrics_test

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faisalnazir/rllab/metrics"
)

func TestAggregatorAppendOnly(t *testing.T) {
	agg := metrics.NewAggregator()

	agg.Record(metrics.Record{Source: metrics.SourceTrain, Episode: 1, RewardScore: 10})
	agg.Record(metrics.Record{Source: metrics.SourceTrain, Episode: 2, RewardScore: 20})

	first := agg.Snapshot()
	require.Len(t, first, 2)

	agg.Record(metrics.Record{Source: metrics.SourceEval, Episode: 1, RewardScore: 15})

	second := agg.Snapshot()
	require.Len(t, second, 3)

	// Later snapshots extend earlier ones without reordering.
	for i := range first {
		assert.Equal(t, first[i].Episode, second[i].Episode)
		assert.Equal(t, first[i].RewardScore, second[i].RewardScore)
	}
	assert.Equal(t, 3, agg.Len())
}

func TestAggregatorStampsTime(t *testing.T) {
	agg := metrics.NewAggregator()

	agg.Record(metrics.Record{Episode: 1})
	stamped := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	agg.Record(metrics.Record{Episode: 2, RecordedAt: stamped})

	records := agg.Snapshot()
	require.Len(t, records, 2)
	assert.False(t, records[0].RecordedAt.IsZero())
	assert.Equal(t, stamped, records[1].RecordedAt)
}

func TestAggregatorSnapshotIsolation(t *testing.T) {
	agg := metrics.NewAggregator()
	agg.Record(metrics.Record{Episode: 1, RewardScore: 10})

	snap := agg.Snapshot()
	snap[0].RewardScore = 99

	assert.InDelta(t, 10, agg.Snapshot()[0].RewardScore, 1e-12)
}

func TestAggregatorConcurrent(t *testing.T) {
	agg := metrics.NewAggregator()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				agg.Record(metrics.Record{Source: metrics.SourceTrain, Episode: int64(i)})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, agg.Len())
}

func TestExportFieldNames(t *testing.T) {
	records := []metrics.Record{
		{
			Source:               metrics.SourceTrain,
			Episode:              7,
			Trial:                2,
			RewardScore:          42.5,
			CompletionPercentage: 87.5,
			ElapsedTime:          12.25,
			RecordedAt:           time.Now(),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, metrics.Export(&buf, records))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)

	row := rows[0]
	assert.InDelta(t, 7, row["episode"], 1e-12)
	assert.InDelta(t, 42.5, row["reward_score"], 1e-12)
	assert.InDelta(t, 2, row["trial"], 1e-12)
	assert.InDelta(t, 87.5, row["completion_percentage"], 1e-12)
	assert.InDelta(t, 12.25, row["elapsed_time"], 1e-12)
	assert.Equal(t, "train", row["source"])

	// Timestamps stay internal; the export rows are flat scalar records.
	_, ok := row["recorded_at"]
	assert.False(t, ok)
}

func TestExportOrder(t *testing.T) {
	records := []metrics.Record{
		{Episode: 1, RewardScore: 1},
		{Episode: 2, RewardScore: 2},
		{Episode: 3, RewardScore: 3},
	}

	var buf bytes.Buffer
	require.NoError(t, metrics.Export(&buf, records))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.InDelta(t, float64(i+1), row["episode"], 1e-12)
	}
}

func TestExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, metrics.Export(&buf, nil))
	assert.JSONEq(t, "[]", buf.String())
}
