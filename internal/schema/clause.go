package schema

import (
	"fmt"

	"github.com/service-agreement/backend/internal/contract"
)

// ClauseRules parameterizes the checks of a single clause rewrite.
type ClauseRules struct {
	// ClauseID is the id of the clause being rewritten; the result must keep it.
	ClauseID string
	// AllowedRefIDs is the reference universe: offered kb ids plus the original clause's references.
	AllowedRefIDs []string
}

// Clause validates an optimize completion. Document order rules do not apply.
func (v *Validator) Clause(raw []byte, rules ClauseRules) (contract.Clause, error) {
	var c contract.Clause
	if err := v.decodeShaped(TargetClause, raw, &c); err != nil {
		return contract.Clause{}, err
	}
	if err := CheckClause(&c, rules); err != nil {
		return contract.Clause{}, err
	}
	return c, nil
}

func CheckClause(c *contract.Clause, rules ClauseRules) error {
	if rules.ClauseID != "" && c.ClauseID != rules.ClauseID {
		return &SchemaViolation{
			Target:  TargetClause,
			Path:    "clause_id",
			Message: fmt.Sprintf("expected %q, got %q", rules.ClauseID, c.ClauseID),
		}
	}
	return checkClauseRefs(c, toSet(rules.AllowedRefIDs))
}

// Merge replaces the matching clause in doc with the rewrite and returns the new
// document. Every reference of the rewrite must already be footnoted in doc.
func Merge(doc *contract.Document, rewrite contract.Clause) (contract.Document, error) {
	merged, ok := doc.WithClause(rewrite)
	if !ok {
		return contract.Document{}, &MissingClauseError{ClauseID: rewrite.ClauseID}
	}
	notes := doc.FootnoteIDs()
	for _, ref := range rewrite.ReferenceIDs {
		if !notes[ref] {
			return contract.Document{}, &FootnoteMissingError{ClauseID: rewrite.ClauseID, RefID: ref}
		}
	}
	return merged, nil
}
