package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/service-agreement/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.InitSchema())
	return c
}

func TestClient_InsertAndGetRun(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := &models.GenerationRun{
		TraceID:      "trace-1",
		Flow:         "generate",
		Model:        "gpt-5-mini",
		Status:       models.RunStatusFailed,
		ErrorKind:    "missing_clause",
		ErrorMessage: `missing clause "signatures"`,
		RawContent:   `{"clauses":[]}`,
		KbItemIDs:    []string{"24_hour_notice_cleaning"},
		PromptTokens: 120,
		LatencyMS:    850,
		CreatedAt:    created,
	}
	require.NoError(t, c.InsertRun(ctx, run))

	got, err := c.GetRun(ctx, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)

	_, err = c.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.Error(t, c.InsertRun(ctx, run), "trace ids are unique")
}

func TestClient_ListRunsAndStats(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	runs := []models.GenerationRun{
		{TraceID: "a", Flow: "intake", Status: models.RunStatusOK, LatencyMS: 100, Cached: true},
		{TraceID: "b", Flow: "generate", Status: models.RunStatusOK, LatencyMS: 300},
		{TraceID: "c", Flow: "generate", Status: models.RunStatusFailed, ErrorKind: "upstream", LatencyMS: 100},
	}
	for i := range runs {
		runs[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, c.InsertRun(ctx, &runs[i]))
	}

	all, err := c.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].TraceID)
	assert.Equal(t, []string{}, all[2].KbItemIDs)
	assert.True(t, all[2].Cached)

	gen, err := c.ListRuns(ctx, "generate", 1)
	require.NoError(t, err)
	require.Len(t, gen, 1)
	assert.Equal(t, "c", gen[0].TraceID)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.RunStats{
		{Flow: "generate", Total: 2, Failed: 1, AvgLatency: 200},
		{Flow: "intake", Total: 1, Failed: 0, AvgLatency: 100},
	}, stats)
}
