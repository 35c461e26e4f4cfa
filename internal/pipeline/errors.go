package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/service-agreement/backend/internal/llm"
	"github.com/service-agreement/backend/internal/schema"
)

// Error kinds reported by KindOf, in addition to the validator's kinds.
const (
	KindInput           = "input"
	KindPrecondition    = "precondition"
	KindClauseNotFound  = "clause_not_found"
	KindUpstream        = "upstream"
	KindUpstreamTimeout = "upstream_timeout"
	KindMalformed       = "malformed_completion"
	KindInternal        = "internal"
)

// FlowError wraps every failure returned by a flow.
type FlowError struct {
	Flow    string
	TraceID string
	Err     error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s flow failed (trace %s): %v", e.Flow, e.TraceID, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// InputError lists every field of a request that failed validation.
type InputError struct {
	Fields []FieldError
}

func (e *InputError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		if f.Param != "" {
			parts[i] = fmt.Sprintf("%s (%s=%s)", f.Field, f.Rule, f.Param)
		} else {
			parts[i] = fmt.Sprintf("%s (%s)", f.Field, f.Rule)
		}
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

type ClauseNotFoundError struct {
	ClauseID string
}

func (e *ClauseNotFoundError) Error() string {
	return fmt.Sprintf("clause %q not found in the current document", e.ClauseID)
}

// MalformedCompletionError means the completion text is not JSON. Raw keeps
// the text for diagnosis.
type MalformedCompletionError struct {
	Raw string
	Err error
}

func (e *MalformedCompletionError) Error() string {
	return fmt.Sprintf("completion is not valid JSON: %v", e.Err)
}

func (e *MalformedCompletionError) Unwrap() error { return e.Err }

type UpstreamError = llm.UpstreamError

// KindOf classifies err for the HTTP layer, metrics and the run log.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var (
		in *InputError
		pc *PreconditionError
		cn *ClauseNotFoundError
		mc *MalformedCompletionError
		up *UpstreamError
	)
	switch {
	case errors.As(err, &in):
		return KindInput
	case errors.As(err, &pc):
		return KindPrecondition
	case errors.As(err, &cn):
		return KindClauseNotFound
	case errors.As(err, &mc):
		return KindMalformed
	case errors.As(err, &up):
		if up.Timeout {
			return KindUpstreamTimeout
		}
		return KindUpstream
	}
	if kind := schema.KindOf(err); kind != "" {
		return kind
	}
	return KindInternal
}

// TraceIDOf returns the trace id carried by a FlowError, or "".
func TraceIDOf(err error) string {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.TraceID
	}
	return ""
}
