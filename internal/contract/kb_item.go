package contract

import "strings"

// Sentinel service types for items that apply to any home service.
const (
	ServiceHomeServices = "home_services"
	ServiceGeneric      = "generic"
)

type KbItem struct {
	ID               string   `json:"id" validate:"required"`
	ServiceType      string   `json:"service_type"`
	Topic            string   `json:"topic"`
	ClauseType       string   `json:"clause_type,omitempty"`
	Label            string   `json:"label"`
	Summary          string   `json:"summary"`
	URL              string   `json:"url"`
	SourceType       string   `json:"source_type,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	NormalizedClause string   `json:"normalized_clause_en,omitempty"`
	RiskLevel        string   `json:"risk_level,omitempty"`
	SourceQuote      string   `json:"source_quote,omitempty"`
	NotesForLLM      string   `json:"notes_for_llm,omitempty"`
	LastReviewedAt   string   `json:"last_reviewed_at,omitempty"`
}

func (k KbItem) IsGeneric() bool {
	st := strings.ToLower(k.ServiceType)
	return st == ServiceHomeServices || st == ServiceGeneric
}

// KbIDs returns the ids of items in order.
func KbIDs(items []KbItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
