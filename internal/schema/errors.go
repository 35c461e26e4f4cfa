package schema

import (
	"errors"
	"fmt"
)

// Kinds reported by KindOf. They are stable and used as metric labels.
const (
	KindSchemaViolation    = "schema_violation"
	KindMissingClause      = "missing_clause"
	KindClauseOrder        = "clause_order_violation"
	KindUnknownReference   = "unknown_reference"
	KindKbUsageNotDeclared = "kb_usage_not_declared"
	KindUnknownFootnote    = "unknown_footnote"
	KindReferencesRequired = "references_required_but_missing"
	KindFootnoteMissing    = "footnote_missing"
)

// SchemaViolation reports a value with the wrong shape. Path uses dotted
// notation with indices, e.g. clauses[3].title.
type SchemaViolation struct {
	Target  string
	Path    string
	Message string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("%s: schema violation at %s: %s", e.Target, e.Path, e.Message)
}

type MissingClauseError struct {
	ClauseID string
}

func (e *MissingClauseError) Error() string {
	return fmt.Sprintf("required clause %q is missing", e.ClauseID)
}

// ClauseOrderError reports a required clause placed before one that must precede it.
type ClauseOrderError struct {
	ClauseID string
	After    string
}

func (e *ClauseOrderError) Error() string {
	return fmt.Sprintf("required clause %q must come after %q", e.ClauseID, e.After)
}

type UnknownReferenceError struct {
	ClauseID string
	RefID    string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("clause %q references %q which was not offered", e.ClauseID, e.RefID)
}

type KbUsageNotDeclaredError struct {
	ClauseID string
	KbID     string
}

func (e *KbUsageNotDeclaredError) Error() string {
	return fmt.Sprintf("clause %q uses kb item %q without listing it in reference_ids", e.ClauseID, e.KbID)
}

type UnknownFootnoteError struct {
	FootnoteID string
}

func (e *UnknownFootnoteError) Error() string {
	return fmt.Sprintf("footnote %q does not match an offered kb item", e.FootnoteID)
}

type ReferencesRequiredError struct {
	Offered int
}

func (e *ReferencesRequiredError) Error() string {
	return fmt.Sprintf("references requested and %d kb items offered, but no clause cites any", e.Offered)
}

type FootnoteMissingError struct {
	ClauseID string
	RefID    string
}

func (e *FootnoteMissingError) Error() string {
	return fmt.Sprintf("reference %q in clause %q has no footnote", e.RefID, e.ClauseID)
}

// KindOf returns the kind of the first validation error in err's chain, or "".
func KindOf(err error) string {
	var (
		sv *SchemaViolation
		mc *MissingClauseError
		co *ClauseOrderError
		ur *UnknownReferenceError
		ku *KbUsageNotDeclaredError
		uf *UnknownFootnoteError
		rr *ReferencesRequiredError
		fm *FootnoteMissingError
	)
	switch {
	case errors.As(err, &sv):
		return KindSchemaViolation
	case errors.As(err, &mc):
		return KindMissingClause
	case errors.As(err, &co):
		return KindClauseOrder
	case errors.As(err, &ur):
		return KindUnknownReference
	case errors.As(err, &ku):
		return KindKbUsageNotDeclared
	case errors.As(err, &uf):
		return KindUnknownFootnote
	case errors.As(err, &rr):
		return KindReferencesRequired
	case errors.As(err, &fm):
		return KindFootnoteMissing
	}
	return ""
}
