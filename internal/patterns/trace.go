package patterns

import (
	"passthru_parser/internal/passthru"
)

// DefinitionTrace contains debug information about one definition evaluated
// against a segment.
type DefinitionTrace struct {
	Name    string `json:"name"`            // Definition name.
	Pattern string `json:"pattern"`         // The expanded regex pattern.
	Groups  []int  `json:"groups"`          // Requested capture groups.
	Matched bool   `json:"matched"`         // Whether evaluation succeeded.
	Value   string `json:"value,omitempty"` // Extracted value (if matched).
	Error   string `json:"error,omitempty"` // Evaluation error (if not matched).
}

// Trace contains complete trace information for one segment.
type Trace struct {
	Kind        passthru.CommandKind `json:"kind"`        // Kind the text classified as.
	Definitions []DefinitionTrace    `json:"definitions"` // Shared definitions first, then the kind's own.
}

// Trace classifies text and evaluates every shared definition plus every
// definition owned by the resulting kind. This is useful for debugging why a
// field came out unresolved.
func (r *Registry) Trace(text string) *Trace {
	kind := passthru.Classify(text)
	trace := &Trace{Kind: kind}

	defs := r.ForKind(passthru.None)
	if kind != passthru.None {
		defs = append(defs, r.ForKind(kind)...)
	}

	for _, d := range defs {
		dt := DefinitionTrace{
			Name:    d.Name,
			Pattern: d.Compiled.String(),
			Groups:  d.Groups,
		}
		value, err := d.Evaluate(text)
		if err != nil {
			dt.Error = err.Error()
		} else {
			dt.Matched = true
			dt.Value = value
		}
		trace.Definitions = append(trace.Definitions, dt)
	}

	return trace
}

// Unmatched returns the names of definitions that failed.
func (t *Trace) Unmatched() []string {
	var names []string
	for _, d := range t.Definitions {
		if !d.Matched {
			names = append(names, d.Name)
		}
	}
	return names
}
