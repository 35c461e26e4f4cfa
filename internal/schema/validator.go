// Package schema validates completion output before it is trusted: JSON Schema
// shape first, then the structural and referential rules of contract documents.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const baseURL = "https://service-agreement.dev/schemas/"

// Schema targets.
const (
	TargetIntake     = "intake_result"
	TargetDocument   = "contract_document"
	TargetClause     = "clause"
	TargetKbDocument = "kb_document"
)

var targets = []string{TargetIntake, TargetDocument, TargetClause, TargetKbDocument}

// Validator holds the compiled schemas. It is safe for concurrent use.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

var (
	defaultOnce sync.Once
	defaultV    *Validator
)

// Default returns a process-wide validator compiled from the embedded schemas.
func Default() *Validator {
	defaultOnce.Do(func() {
		v, err := New()
		if err != nil {
			panic(fmt.Sprintf("schema: embedded schemas do not compile: %v", err))
		}
		defaultV = v
	})
	return defaultV
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	for _, name := range targets {
		data, err := schemaFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(baseURL+name+".json", bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(targets))}
	for _, name := range targets {
		compiled, err := compiler.Compile(baseURL + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = compiled
	}
	return v, nil
}

// Shape validates raw JSON against the named schema and returns the decoded
// instance. Any failure is a *SchemaViolation.
func (v *Validator) Shape(target string, raw []byte) (any, error) {
	compiled, ok := v.schemas[target]
	if !ok {
		return nil, fmt.Errorf("schema: unknown target %q", target)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return nil, &SchemaViolation{Target: target, Path: "$", Message: "not a JSON value: " + err.Error()}
	}

	if err := compiled.Validate(instance); err != nil {
		return nil, violationFrom(target, err)
	}
	return instance, nil
}

// decodeShaped runs Shape and then decodes raw into out.
func (v *Validator) decodeShaped(target string, raw []byte, out any) error {
	if _, err := v.Shape(target, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &SchemaViolation{Target: target, Path: "$", Message: err.Error()}
	}
	return nil
}

func violationFrom(target string, err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &SchemaViolation{Target: target, Path: "$", Message: err.Error()}
	}

	leaves := leafCauses(ve, nil)
	// Property iteration inside the validator is unordered; pick deterministically.
	sort.SliceStable(leaves, func(i, j int) bool {
		if leaves[i].InstanceLocation != leaves[j].InstanceLocation {
			return leaves[i].InstanceLocation < leaves[j].InstanceLocation
		}
		return leaves[i].Message < leaves[j].Message
	})
	leaf := leaves[0]
	return &SchemaViolation{
		Target:  target,
		Path:    pointerToPath(leaf.InstanceLocation),
		Message: leaf.Message,
	}
}

func leafCauses(ve *jsonschema.ValidationError, acc []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return append(acc, ve)
	}
	for _, c := range ve.Causes {
		acc = leafCauses(c, acc)
	}
	return acc
}

// pointerToPath turns "/clauses/3/title" into "clauses[3].title".
func pointerToPath(ptr string) string {
	if ptr == "" || ptr == "/" {
		return "$"
	}
	var b strings.Builder
	for _, seg := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}
