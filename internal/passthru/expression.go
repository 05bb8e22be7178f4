package passthru

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Unresolved is the value recorded for a field whose pattern did not match.
const Unresolved = "unresolved"

// Segment is the slice of a log buffer attributed to one PassThru call.
type Segment struct {
	Start     int    `json:"start"`      // First byte owned by this segment.
	End       int    `json:"end"`        // One past the last byte owned by this segment.
	CallStart int    `json:"call_start"` // Offset of the call-start marker.
	Text      string `json:"text"`       // Call text up to and including its status line.
	Lines     int    `json:"lines"`
}

// FirstLine returns the first non-empty line of the segment text.
func (s Segment) FirstLine() string {
	for _, line := range strings.Split(s.Text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// FieldResult is one named value extracted from a segment.
type FieldResult struct {
	Name  string          `json:"name"`
	Value string          `json:"value"`
	State ValidationState `json:"state"`
}

// Resolved reports whether the field's pattern matched.
func (f FieldResult) Resolved() bool { return f.Value != Unresolved }

// Property is a single name/value pair inside an Element.
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Element is one repeated sub-structure of a call, such as a single message
// returned by PTReadMsgs or the mask of a filter.
type Element struct {
	Label      string     `json:"label"`
	Properties []Property `json:"properties"`
}

// Get returns the value of the named property.
func (e Element) Get(name string) (string, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Expression is the structured record built from one segment.
type Expression struct {
	Kind     CommandKind   `json:"kind"`
	Segment  Segment       `json:"segment"`
	Fields   []FieldResult `json:"fields"`
	Elements []Element     `json:"elements,omitempty"`
}

// Field returns the named field.
func (e *Expression) Field(name string) (FieldResult, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldResult{}, false
}

// Valid reports whether every field passed validation.
func (e *Expression) Valid() bool {
	for _, f := range e.Fields {
		if f.State != Valid {
			return false
		}
	}
	return true
}

// MissingFields lists the names of fields left unresolved.
func (e *Expression) MissingFields() []string {
	var missing []string
	for _, f := range e.Fields {
		if !f.Resolved() {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// ExpressionSet is the ordered collection of expressions built from one
// input buffer.
type ExpressionSet struct {
	ID          uuid.UUID     `json:"id"`
	Source      string        `json:"source"`
	CreatedAt   time.Time     `json:"created_at"`
	OutputPath  string        `json:"output_path,omitempty"`
	Expressions []*Expression `json:"expressions"`
}

// NewExpressionSet creates an empty set for the given source path.
func NewExpressionSet(source string) *ExpressionSet {
	return &ExpressionSet{
		ID:        uuid.New(),
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}

// Len returns the number of expressions in the set.
func (s *ExpressionSet) Len() int { return len(s.Expressions) }

// CountByKind returns the number of expressions of each kind.
func (s *ExpressionSet) CountByKind() map[CommandKind]int {
	counts := make(map[CommandKind]int)
	for _, e := range s.Expressions {
		counts[e.Kind]++
	}
	return counts
}
