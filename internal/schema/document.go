package schema

import (
	"fmt"
	"strings"

	"github.com/service-agreement/backend/internal/contract"
)

// DocumentRules parameterizes the referential checks of a generated document.
type DocumentRules struct {
	OfferedKbIDs      []string
	IncludeReferences bool
}

// Document validates a generate completion and returns the typed document.
func (v *Validator) Document(raw []byte, rules DocumentRules) (contract.Document, error) {
	var doc contract.Document
	if err := v.decodeShaped(TargetDocument, raw, &doc); err != nil {
		return contract.Document{}, err
	}
	if err := CheckDocument(&doc, rules); err != nil {
		return contract.Document{}, err
	}
	return doc, nil
}

// CheckDocument runs the structural and referential rules on an already shaped document.
func CheckDocument(doc *contract.Document, rules DocumentRules) error {
	if err := checkStructure(doc); err != nil {
		return err
	}
	return checkReferences(doc, rules)
}

func checkStructure(doc *contract.Document) error {
	if strings.TrimSpace(doc.ContractTitle) == "" {
		return &SchemaViolation{Target: TargetDocument, Path: "contract_title", Message: "contract_title is missing"}
	}
	if strings.TrimSpace(doc.Preamble) == "" {
		return &SchemaViolation{Target: TargetDocument, Path: "preamble", Message: "preamble is missing"}
	}

	index := make(map[string]int, len(doc.Clauses))
	for i, c := range doc.Clauses {
		if _, dup := index[c.ClauseID]; dup {
			return &SchemaViolation{
				Target:  TargetDocument,
				Path:    fmt.Sprintf("clauses[%d].clause_id", i),
				Message: fmt.Sprintf("duplicate clause_id %q", c.ClauseID),
			}
		}
		index[c.ClauseID] = i
	}

	for _, id := range contract.RequiredClauseOrder {
		if _, ok := index[id]; !ok {
			return &MissingClauseError{ClauseID: id}
		}
	}

	prev := -1
	for i, id := range contract.RequiredClauseOrder {
		at := index[id]
		if at < prev {
			return &ClauseOrderError{ClauseID: id, After: contract.RequiredClauseOrder[i-1]}
		}
		prev = at
	}
	return nil
}

func checkReferences(doc *contract.Document, rules DocumentRules) error {
	offered := toSet(rules.OfferedKbIDs)

	cited := false
	for _, c := range doc.Clauses {
		if err := checkClauseRefs(&c, offered); err != nil {
			return err
		}
		if len(c.ReferenceIDs) > 0 {
			cited = true
		}
	}

	for _, f := range doc.Footnotes {
		if !offered[f.ID] {
			return &UnknownFootnoteError{FootnoteID: f.ID}
		}
	}

	if rules.IncludeReferences && len(offered) > 0 && !cited {
		return &ReferencesRequiredError{Offered: len(offered)}
	}

	return CheckFootnotes(doc)
}

// CheckFootnotes requires every cited id in the document to have a footnote.
func CheckFootnotes(doc *contract.Document) error {
	notes := doc.FootnoteIDs()
	for _, c := range doc.Clauses {
		for _, ref := range c.ReferenceIDs {
			if !notes[ref] {
				return &FootnoteMissingError{ClauseID: c.ClauseID, RefID: ref}
			}
		}
	}
	return nil
}

func checkClauseRefs(c *contract.Clause, offered map[string]bool) error {
	declared := toSet(c.ReferenceIDs)
	for _, ref := range c.ReferenceIDs {
		if !offered[ref] {
			return &UnknownReferenceError{ClauseID: c.ClauseID, RefID: ref}
		}
	}
	for _, used := range c.Explanation.KbIDsUsed {
		if !declared[used] {
			return &KbUsageNotDeclaredError{ClauseID: c.ClauseID, KbID: used}
		}
	}
	return nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
