package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/service-agreement/backend/internal/contract"
	"github.com/service-agreement/backend/internal/contract/contracttest"
	"github.com/service-agreement/backend/internal/kb"
	"github.com/service-agreement/backend/internal/retrieval"
)

const dataset = `{
  "name": "smoke",
  "items": [
    {
      "name": "cleaning cancellation",
      "brief": {"service_type": "cleaning", "cancellation_notice_hours": 24, "cancellation_fee_policy": "full_fee"},
      "expected_ids": ["24_hour_notice_cleaning"]
    },
    {
      "name": "lawn weather",
      "brief": {"service_type": "lawn_care", "how_often": "weekly"},
      "expected_ids": ["lawn_weather_reschedule"]
    },
    {
      "brief": {"service_type": "pet_sitting"},
      "expected_ids": ["not_in_kb"]
    }
  ]
}`

func TestRunDatasetEvaluation(t *testing.T) {
	ds, err := LoadDatasetFromJSON([]byte(dataset))
	require.NoError(t, err)
	require.Len(t, ds.Items, 3)

	ranker := retrieval.NewRanker(kb.NewStaticStore(contracttest.KbItems()))
	report, err := NewEvaluator(ranker, 2).RunDatasetEvaluation(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, "smoke", report.Dataset)
	assert.Equal(t, 3, report.TotalCases)
	assert.Equal(t, 2, report.Hits)
	assert.InDelta(t, 2.0/3.0, report.HitRate, 1e-9)
	assert.Equal(t, 1.0, report.Cases[0].ReciprocalRank)
	assert.Equal(t, "case_3", report.Cases[2].Name)
	assert.False(t, report.Cases[2].Hit)

	text := GenerateReport(report)
	assert.Contains(t, text, "Hit Rate: 66.7% (2 / 3)")
	assert.Contains(t, text, "case_3")
}

type fixedSelector []contract.KbItem

func (f fixedSelector) Select(ctx context.Context, brief contract.Brief, limit int, extraTopics []string) []contract.KbItem {
	return f
}

func TestEvaluateCase(t *testing.T) {
	sel := fixedSelector{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	e := NewEvaluator(sel, 3)

	r := e.EvaluateCase(context.Background(), DatasetItem{ExpectedIDs: []string{"b", "z"}})
	assert.True(t, r.Hit)
	assert.Equal(t, 0.5, r.Recall)
	assert.Equal(t, 0.5, r.ReciprocalRank)

	r = NewEvaluator(fixedSelector{}, 3).EvaluateCase(context.Background(), DatasetItem{})
	assert.True(t, r.Hit)
	assert.Equal(t, 1.0, r.Recall)

	r = e.EvaluateCase(context.Background(), DatasetItem{})
	assert.False(t, r.Hit)
}

func TestLoadDatasetFromJSON_Invalid(t *testing.T) {
	_, err := LoadDatasetFromJSON([]byte(`{"items": 5}`))
	assert.Error(t, err)
}
