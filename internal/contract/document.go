package contract

// RequiredClauseOrder is the mandated skeleton of every generated agreement.
var RequiredClauseOrder = []string{
	"services",
	"fees_payment",
	"schedule_cancellations",
	"access_safety",
	"pets_special",
	"exclusions",
	"term_termination",
	"liability_damage",
	"governing_law_disputes",
	"general_provisions",
	"signatures",
}

type Explanation struct {
	Summary          string   `json:"summary"`
	BusinessRiskNote string   `json:"business_risk_note"`
	KbIDsUsed        []string `json:"kb_ids_used"`
}

type Clause struct {
	ClauseID     string      `json:"clause_id" validate:"required"`
	Title        string      `json:"title"`
	Body         string      `json:"body"`
	Explanation  Explanation `json:"explanation"`
	ReferenceIDs []string    `json:"reference_ids"`
}

// ClauseRewriteResult replaces exactly one clause, matched by ClauseID.
type ClauseRewriteResult = Clause

type Footnote struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

type GenerationMeta struct {
	Model       string `json:"model"`
	Version     string `json:"version"`
	GeneratedAt string `json:"generated_at"`
}

type Document struct {
	ContractTitle  string         `json:"contract_title"`
	Preamble       string         `json:"preamble"`
	GoverningNote  string         `json:"governing_note"`
	Clauses        []Clause       `json:"clauses"`
	Footnotes      []Footnote     `json:"footnotes"`
	GenerationMeta GenerationMeta `json:"generation_meta"`
}

// ClauseIndex returns the position of the clause with the given id, or -1.
func (d *Document) ClauseIndex(clauseID string) int {
	for i := range d.Clauses {
		if d.Clauses[i].ClauseID == clauseID {
			return i
		}
	}
	return -1
}

// WithClause returns a copy of d whose clause with the rewrite's id is replaced.
// The receiver is left untouched; ok is false when no clause matches.
func (d *Document) WithClause(rewrite Clause) (Document, bool) {
	idx := d.ClauseIndex(rewrite.ClauseID)
	if idx < 0 {
		return *d, false
	}
	out := *d
	out.Clauses = make([]Clause, len(d.Clauses))
	copy(out.Clauses, d.Clauses)
	out.Clauses[idx] = rewrite
	return out, true
}

// FootnoteIDs returns the set of footnote ids in the document.
func (d *Document) FootnoteIDs() map[string]bool {
	ids := make(map[string]bool, len(d.Footnotes))
	for _, f := range d.Footnotes {
		ids[f.ID] = true
	}
	return ids
}

type GenerateOptions struct {
	Locale              *string `json:"locale,omitempty"`
	IncludeExplanations *bool   `json:"include_explanations,omitempty"`
	IncludeReferences   *bool   `json:"include_references,omitempty"`
}

// ResolvedOptions is GenerateOptions with every default applied.
type ResolvedOptions struct {
	Locale              string `json:"locale"`
	IncludeExplanations bool   `json:"include_explanations"`
	IncludeReferences   bool   `json:"include_references"`
}

const DefaultLocale = "en-US"

func (o *GenerateOptions) Resolve() ResolvedOptions {
	r := ResolvedOptions{Locale: DefaultLocale, IncludeExplanations: true, IncludeReferences: true}
	if o == nil {
		return r
	}
	if o.Locale != nil && *o.Locale != "" {
		r.Locale = *o.Locale
	}
	if o.IncludeExplanations != nil {
		r.IncludeExplanations = *o.IncludeExplanations
	}
	if o.IncludeReferences != nil {
		r.IncludeReferences = *o.IncludeReferences
	}
	return r
}
