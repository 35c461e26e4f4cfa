// Package retrieval selects the KB items most relevant to a brief by blending
// TF-IDF similarity with service-type and topic bonuses.
package retrieval

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/service-agreement/backend/internal/contract"
	"github.com/service-agreement/backend/internal/metrics"
)

const (
	DefaultLimit = 4

	similarityWeight  = 0.65
	exactServiceBonus = 0.35
	genericBonus      = 0.2
	unstatedTypeBonus = 0.08
	topicMatchBonus   = 0.2
)

// ItemSource provides the candidate KB items. *kb.Store satisfies it.
type ItemSource interface {
	Load(ctx context.Context) []contract.KbItem
}

type Ranker struct {
	source ItemSource
}

func NewRanker(source ItemSource) *Ranker {
	return &Ranker{source: source}
}

// Scored is a KB item with its final score.
type Scored struct {
	Item  contract.KbItem `json:"item"`
	Score float64         `json:"score"`
}

// Select returns at most limit items for the brief, best first. A limit <= 0
// uses DefaultLimit.
func (r *Ranker) Select(ctx context.Context, brief contract.Brief, limit int, extraTopics []string) []contract.KbItem {
	scored := r.Rank(ctx, brief, limit, extraTopics)
	items := make([]contract.KbItem, len(scored))
	for i, s := range scored {
		items[i] = s.Item
	}
	return items
}

// Rank is Select with scores attached.
func (r *Ranker) Rank(ctx context.Context, brief contract.Brief, limit int, extraTopics []string) []Scored {
	if limit <= 0 {
		limit = DefaultLimit
	}
	scored := Score(r.source.Load(ctx), brief, extraTopics, limit)
	metrics.KBSelectionSize.Observe(float64(len(scored)))
	return scored
}

// Score ranks candidates for the brief. Items scoring zero are dropped and ties
// keep candidate order.
func Score(candidates []contract.KbItem, brief contract.Brief, extraTopics []string, limit int) []Scored {
	if len(candidates) == 0 {
		return []Scored{}
	}

	candidates = dedupe(candidates)
	topics := Topics(brief, extraTopics)
	query := Tokenize(QueryText(brief, topics))

	docs := make([][]string, len(candidates))
	for i, item := range candidates {
		docs[i] = Tokenize(DocumentText(item))
	}
	c := newCorpus(docs)

	out := make([]Scored, 0, len(candidates))
	for i, item := range candidates {
		score := similarityWeight*c.similarity(query, i) + bonus(item, brief, topics)
		if score <= 0 {
			continue
		}
		out = append(out, Scored{Item: item, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// dedupe keeps one item per id: the last one wins, at the position of the first.
func dedupe(items []contract.KbItem) []contract.KbItem {
	pos := make(map[string]int, len(items))
	out := make([]contract.KbItem, 0, len(items))
	for _, item := range items {
		if i, ok := pos[item.ID]; ok {
			out[i] = item
			continue
		}
		pos[item.ID] = len(out)
		out = append(out, item)
	}
	return out
}

func bonus(item contract.KbItem, brief contract.Brief, topics map[string]bool) float64 {
	var b float64
	itemType := strings.ToLower(item.ServiceType)
	switch {
	case brief.ServiceType != nil && itemType == string(*brief.ServiceType):
		b += exactServiceBonus
	case item.IsGeneric():
		b += genericBonus
	case brief.ServiceType == nil && itemType != "":
		b += unstatedTypeBonus
	}

	if topics[strings.ToLower(item.Topic)] || topics[strings.ToLower(item.ClauseType)] {
		return b + topicMatchBonus
	}
	for _, tag := range item.Tags {
		if topics[strings.ToLower(tag)] {
			return b + topicMatchBonus
		}
	}
	return b
}

// Topics derives the topic set implied by the brief, merged with extra topics.
func Topics(brief contract.Brief, extra []string) map[string]bool {
	topics := make(map[string]bool)
	add := func(ts ...string) {
		for _, t := range ts {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				topics[t] = true
			}
		}
	}

	if brief.CancellationNoticeHours != nil || brief.CancellationFeePolicy != nil {
		add("cancellation", "reschedule")
	}
	if brief.DamageCapAmount != nil {
		add("damage", "liability")
	}
	if brief.HasPets != nil && *brief.HasPets {
		add("pets", "safety")
	}
	if brief.HowChargeModel != nil || brief.HowChargeText != nil {
		add("payment", "pricing")
	}
	if brief.HowOften != nil && brief.HowOften.Recurring() {
		add("recurring", "schedule")
	}
	add(extra...)
	return topics
}

// QueryText concatenates the brief's text and categorical fields, the topics
// and the numeric fields rendered as "24 hours" and "500 USD".
func QueryText(brief contract.Brief, topics map[string]bool) string {
	var parts []string
	str := func(s *string) {
		if s != nil {
			parts = append(parts, *s)
		}
	}
	if brief.ServiceType != nil {
		parts = append(parts, string(*brief.ServiceType))
	}
	str(brief.WhatService)
	if brief.HowOften != nil {
		parts = append(parts, string(*brief.HowOften))
	}
	if brief.HowChargeModel != nil {
		parts = append(parts, string(*brief.HowChargeModel))
	}
	str(brief.HowChargeText)
	str(brief.LocationArea)
	if brief.CancellationFeePolicy != nil {
		parts = append(parts, string(*brief.CancellationFeePolicy))
	}
	str(brief.ShortNotes)
	if brief.CancellationNoticeHours != nil {
		parts = append(parts, formatNumber(*brief.CancellationNoticeHours)+" hours")
	}
	if brief.DamageCapAmount != nil {
		parts = append(parts, formatNumber(*brief.DamageCapAmount)+" "+brief.DamageCapCurrency)
	}

	sorted := make([]string, 0, len(topics))
	for t := range topics {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)
	parts = append(parts, sorted...)
	return strings.Join(parts, " ")
}

// DocumentText concatenates the searchable fields of an item.
func DocumentText(item contract.KbItem) string {
	clauseType := item.ClauseType
	if strings.EqualFold(clauseType, item.Topic) {
		clauseType = ""
	}
	parts := []string{
		item.Label,
		item.Summary,
		item.Topic,
		clauseType,
		item.ServiceType,
		strings.Join(item.Tags, " "),
		item.NormalizedClause,
		item.SourceQuote,
		item.NotesForLLM,
	}
	return strings.Join(parts, " ")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
