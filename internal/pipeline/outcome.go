package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Outcome is the interpretation of one completion text: Parsed, Rejected or
// Malformed. Call sites switch over all three.
type Outcome[T any] interface {
	outcome() T
}

// Parsed carries a value that passed validation.
type Parsed[T any] struct {
	Value T
}

// Rejected carries a validator error for JSON that parsed but broke the rules.
type Rejected[T any] struct {
	Err error
}

// Malformed carries text that is not JSON at all.
type Malformed[T any] struct {
	Raw string
	Err error
}

func (p Parsed[T]) outcome() T { return p.Value }

func (Rejected[T]) outcome() T {
	var zero T
	return zero
}

func (Malformed[T]) outcome() T {
	var zero T
	return zero
}

var errEmptyCompletion = errors.New("empty completion")

// Interpret parses content as JSON and hands it to validate.
func Interpret[T any](content string, validate func(raw []byte) (T, error)) Outcome[T] {
	raw := bytes.TrimSpace([]byte(content))
	if len(raw) == 0 {
		return Malformed[T]{Raw: content, Err: errEmptyCompletion}
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Malformed[T]{Raw: content, Err: err}
	}
	v, err := validate(raw)
	if err != nil {
		return Rejected[T]{Err: err}
	}
	return Parsed[T]{Value: v}
}
