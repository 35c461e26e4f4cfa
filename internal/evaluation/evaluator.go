// Package evaluation measures KB selection quality against a labelled dataset.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/service-agreement/backend/internal/contract"
	"github.com/service-agreement/backend/internal/metrics"
	"github.com/service-agreement/backend/pkg/logger"
)

// Selector is the ranking entry point under evaluation. *retrieval.Ranker
// satisfies it.
type Selector interface {
	Select(ctx context.Context, brief contract.Brief, limit int, extraTopics []string) []contract.KbItem
}

type Evaluator struct {
	selector Selector
	limit    int
}

type EvaluationDataset struct {
	Name  string        `json:"name"`
	Items []DatasetItem `json:"items"`
}

type DatasetItem struct {
	Name        string         `json:"name"`
	Brief       contract.Brief `json:"brief"`
	ExtraTopics []string       `json:"extra_topics,omitempty"`
	ExpectedIDs []string       `json:"expected_ids"`
}

type CaseResult struct {
	Name     string   `json:"name"`
	Selected []string `json:"selected"`
	Expected []string `json:"expected"`
	Hit      bool     `json:"hit"`
	Recall   float64  `json:"recall"`
	// ReciprocalRank is 1/rank of the first expected item, or 0.
	ReciprocalRank float64 `json:"reciprocal_rank"`
}

type EvaluationReport struct {
	Dataset    string       `json:"dataset"`
	Limit      int          `json:"limit"`
	TotalCases int          `json:"total_cases"`
	Hits       int          `json:"hits"`
	HitRate    float64      `json:"hit_rate"`
	MeanRecall float64      `json:"mean_recall"`
	MRR        float64      `json:"mrr"`
	Cases      []CaseResult `json:"cases"`
}

func NewEvaluator(selector Selector, limit int) *Evaluator {
	return &Evaluator{selector: selector, limit: limit}
}

// EvaluateCase ranks the KB for one brief and compares the selection with the
// expected ids. A case with no expected ids counts as a hit only when nothing
// is selected.
func (e *Evaluator) EvaluateCase(ctx context.Context, item DatasetItem) CaseResult {
	brief := item.Brief
	brief.Normalize(contract.DefaultCurrency)
	selected := contract.KbIDs(e.selector.Select(ctx, brief, e.limit, item.ExtraTopics))

	result := CaseResult{Name: item.Name, Selected: selected, Expected: item.ExpectedIDs}
	if len(item.ExpectedIDs) == 0 {
		result.Hit = len(selected) == 0
		if result.Hit {
			result.Recall = 1
		}
		return result
	}

	expected := make(map[string]bool, len(item.ExpectedIDs))
	for _, id := range item.ExpectedIDs {
		expected[id] = true
	}
	found := 0
	for rank, id := range selected {
		if !expected[id] {
			continue
		}
		if found == 0 {
			result.ReciprocalRank = 1 / float64(rank+1)
		}
		found++
	}
	result.Hit = found > 0
	result.Recall = float64(found) / float64(len(expected))
	return result
}

func (e *Evaluator) RunDatasetEvaluation(ctx context.Context, dataset *EvaluationDataset) (*EvaluationReport, error) {
	logger.Info("Running ranking evaluation", zap.String("dataset", dataset.Name), zap.Int("items", len(dataset.Items)))

	report := &EvaluationReport{
		Dataset:    dataset.Name,
		Limit:      e.limit,
		TotalCases: len(dataset.Items),
		Cases:      make([]CaseResult, 0, len(dataset.Items)),
	}

	var totalRecall, totalRR float64
	for i, item := range dataset.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if item.Name == "" {
			item.Name = fmt.Sprintf("case_%d", i+1)
		}

		result := e.EvaluateCase(ctx, item)
		if result.Hit {
			report.Hits++
		}
		totalRecall += result.Recall
		totalRR += result.ReciprocalRank
		report.Cases = append(report.Cases, result)

		logger.Debug("Case evaluated",
			zap.String("case", result.Name),
			zap.Bool("hit", result.Hit),
			zap.Float64("recall", result.Recall),
		)
	}

	if report.TotalCases > 0 {
		n := float64(report.TotalCases)
		report.HitRate = float64(report.Hits) / n
		report.MeanRecall = totalRecall / n
		report.MRR = totalRR / n
	}
	metrics.RetrievalHitRate.WithLabelValues(dataset.Name).Set(report.HitRate)

	logger.Info("Ranking evaluation completed",
		zap.Int("total", report.TotalCases),
		zap.Int("hits", report.Hits),
		zap.Float64("hit_rate", report.HitRate),
	)

	return report, nil
}

func LoadDatasetFromJSON(data []byte) (*EvaluationDataset, error) {
	var dataset EvaluationDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	if dataset.Name == "" {
		dataset.Name = "default"
	}
	return &dataset, nil
}

func GenerateReport(report *EvaluationReport) string {
	var misses []string
	for _, c := range report.Cases {
		if !c.Hit {
			misses = append(misses, fmt.Sprintf("- %s: expected %v, selected %v", c.Name, c.Expected, c.Selected))
		}
	}
	missText := "(none)"
	if len(misses) > 0 {
		missText = strings.Join(misses, "\n")
	}

	return fmt.Sprintf(`
Ranking Evaluation Report
=========================

Dataset: %s
Limit: %d
Total Cases: %d

Hit Rate: %.1f%% (%d / %d)
Mean Recall@%d: %.3f
MRR: %.3f

Misses:
%s
`,
		report.Dataset,
		report.Limit,
		report.TotalCases,
		report.HitRate*100, report.Hits, report.TotalCases,
		report.Limit, report.MeanRecall,
		report.MRR,
		missText,
	)
}
