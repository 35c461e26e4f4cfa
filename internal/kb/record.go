package kb

import (
	"strings"

	"github.com/service-agreement/backend/internal/contract"
)

// rawRecord accepts both the current record shape (clause_type, title,
// short_summary, source.url) and the older flat one (topic, label, summary, url).
type rawRecord struct {
	ID               string     `json:"id"`
	ServiceType      string     `json:"service_type"`
	ClauseType       string     `json:"clause_type"`
	Topic            string     `json:"topic"`
	Title            string     `json:"title"`
	Label            string     `json:"label"`
	ShortSummary     string     `json:"short_summary"`
	Summary          string     `json:"summary"`
	NormalizedClause string     `json:"normalized_clause_en"`
	RiskLevel        string     `json:"risk_level"`
	Tags             []string   `json:"tags"`
	URL              string     `json:"url"`
	SourceType       string     `json:"source_type"`
	Source           *rawSource `json:"source"`
	SourceQuote      string     `json:"source_quote"`
	NotesForLLM      string     `json:"notes_for_llm"`
	Enabled          *bool      `json:"enabled"`
	LastReviewedAt   string     `json:"last_reviewed_at"`
}

type rawSource struct {
	URL         string `json:"url"`
	PageTitle   string `json:"page_title"`
	RetrievedAt string `json:"retrieved_at"`
	ContentType string `json:"content_type"`
}

var serviceTypeAliases = map[string]string{
	"pool":             string(contract.ServicePoolCleaning),
	"pool_care":        string(contract.ServicePoolCleaning),
	"pool_maintenance": string(contract.ServicePoolCleaning),
	"spa_maintenance":  string(contract.ServicePoolCleaning),
	"lawn":             string(contract.ServiceLawnCare),
	"landscaping":      string(contract.ServiceLawnCare),
	"yard_work":        string(contract.ServiceLawnCare),
	"pet":              string(contract.ServicePetSitting),
	"pets":             string(contract.ServicePetSitting),
	"pet_care":         string(contract.ServicePetSitting),
	"dog_walking":      string(contract.ServicePetSitting),
	"house_cleaning":   string(contract.ServiceCleaning),
	"housekeeping":     string(contract.ServiceCleaning),
	"maid_service":     string(contract.ServiceCleaning),
	"home_organizing":  string(contract.ServiceOrganizing),
	"decluttering":     string(contract.ServiceOrganizing),
	"home_service":     contract.ServiceHomeServices,
	"home":             contract.ServiceHomeServices,
	"all":              contract.ServiceGeneric,
}

// CanonicalServiceType lowercases, snake-cases and resolves aliases. Unknown
// values pass through in snake case.
func CanonicalServiceType(raw string) string {
	st := strings.ToLower(strings.TrimSpace(raw))
	st = strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(st)
	if canon, ok := serviceTypeAliases[st]; ok {
		return canon
	}
	return st
}

func (r rawRecord) enabled() bool {
	return r.Enabled == nil || *r.Enabled
}

func (r rawRecord) normalize() contract.KbItem {
	item := contract.KbItem{
		ID:               strings.TrimSpace(r.ID),
		ServiceType:      CanonicalServiceType(r.ServiceType),
		Topic:            firstNonEmpty(r.Topic, r.ClauseType),
		ClauseType:       r.ClauseType,
		Label:            firstNonEmpty(r.Title, r.Label),
		Summary:          firstNonEmpty(r.ShortSummary, r.Summary),
		URL:              r.URL,
		SourceType:       r.SourceType,
		NormalizedClause: r.NormalizedClause,
		RiskLevel:        r.RiskLevel,
		SourceQuote:      r.SourceQuote,
		NotesForLLM:      r.NotesForLLM,
		LastReviewedAt:   r.LastReviewedAt,
	}
	if r.Source != nil {
		item.URL = firstNonEmpty(r.Source.URL, item.URL)
		item.SourceType = firstNonEmpty(item.SourceType, r.Source.ContentType)
		item.LastReviewedAt = firstNonEmpty(item.LastReviewedAt, r.Source.RetrievedAt)
	}
	for _, tag := range r.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			item.Tags = append(item.Tags, tag)
		}
	}
	return item
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
