// Package builders provides one expression builder per PassThru command kind.
//
// Every builder is a static table of field descriptors run through the same
// extraction loop; builders for calls with repeated sub-structures (messages,
// filter blocks, ioctl parameters) add an element table.
package builders

import (
	"fmt"
	"strings"

	"passthru_parser/internal/logging"
	"passthru_parser/internal/passthru"
	"passthru_parser/internal/patterns"
)

// Field names shared by several builders.
const (
	FieldCommandLine   = "Command Line"
	FieldTimeIssued    = "Time Issued"
	FieldTimeCompleted = "Time Completed"
	FieldReturnStatus  = "Return Status"
	FieldCallResult    = "Call Result"
	FieldDeviceID      = "Device ID"
	FieldChannelID     = "Channel ID"
	FieldFilterID      = "Filter ID"
)

// StatusOK is the status marker a successful call must carry.
const StatusOK = "STATUS_NOERROR"

// invalidID is the identifier value the shim writes when a call failed to
// produce one.
const invalidID = "-1"

// FieldSpec declares one field of an expression.
type FieldSpec struct {
	Name    string // Display name.
	Pattern string // Registry definition name.
	Fatal   bool   // An unresolved fatal field drops the whole segment.
	Invert  bool   // Valid when Marker is absent instead of present.
	Marker  string // Validation marker; empty means always valid once resolved.
}

// PropertySpec maps one capture group of an element pattern to a property.
type PropertySpec struct {
	Name  string
	Group int
}

// ElementSpec declares a repeated sub-structure walked after the call line.
type ElementSpec struct {
	Pattern    string
	Label      func(groups []string, i int) string
	Properties []PropertySpec
}

// ExtractionError reports a fatal field that could not be resolved.
type ExtractionError struct {
	Kind  passthru.CommandKind
	Field string
	Line  string // First line of the offending segment.
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("build %v: field %q: %v (segment %q)", e.Kind, e.Field, e.Err, e.Line)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type boundField struct {
	FieldSpec
	def *patterns.Definition
}

// Builder builds expressions of one kind from a descriptor table.
type Builder struct {
	name     string
	kind     passthru.CommandKind
	fields   []boundField
	elements *ElementSpec
	element  *patterns.Definition
	log      logging.Logger
}

// NewBuilder binds a descriptor table to the registry. Every referenced
// pattern must exist.
func NewBuilder(name string, kind passthru.CommandKind, reg *patterns.Registry, fields []FieldSpec, elements *ElementSpec, log logging.Logger) (*Builder, error) {
	if log == nil {
		log = logging.Discard()
	}
	b := &Builder{name: name, kind: kind, elements: elements, log: log}

	for _, f := range fields {
		def, err := reg.Lookup(f.Pattern)
		if err != nil {
			return nil, fmt.Errorf("builder %s: field %q: %w", name, f.Name, err)
		}
		b.fields = append(b.fields, boundField{FieldSpec: f, def: def})
	}

	if elements != nil {
		def, err := reg.Lookup(elements.Pattern)
		if err != nil {
			return nil, fmt.Errorf("builder %s: elements: %w", name, err)
		}
		b.element = def
	}

	return b, nil
}

func (b *Builder) Name() string               { return b.name }
func (b *Builder) Kind() passthru.CommandKind { return b.kind }

// Fields returns the builder's field descriptors in output order.
func (b *Builder) Fields() []FieldSpec {
	out := make([]FieldSpec, len(b.fields))
	for i, f := range b.fields {
		out[i] = f.FieldSpec
	}
	return out
}

// Build extracts every declared field from the segment. A non-fatal miss is
// recorded as unresolved and logged; a fatal miss returns an *ExtractionError.
func (b *Builder) Build(seg passthru.Segment) (*passthru.Expression, error) {
	expr := &passthru.Expression{
		Kind:    b.kind,
		Segment: seg,
		Fields:  make([]passthru.FieldResult, 0, len(b.fields)),
	}

	for _, f := range b.fields {
		value, err := f.def.Evaluate(seg.Text)
		if err != nil {
			if f.Fatal {
				return nil, &ExtractionError{Kind: b.kind, Field: f.Name, Line: seg.FirstLine(), Err: err}
			}
			b.log.Warn("field unresolved",
				"builder", b.name,
				"field", f.Name,
				"segment", seg.FirstLine(),
				"error", err)
			value = passthru.Unresolved
		}

		expr.Fields = append(expr.Fields, passthru.FieldResult{
			Name:  f.Name,
			Value: value,
			State: passthru.Validate(value, f.Marker, f.Invert),
		})
	}

	if b.element != nil {
		expr.Elements = b.extractElements(seg.Text)
	}

	return expr, nil
}

// extractElements walks the text after the call line and turns every match
// of the element pattern into a labelled property list.
func (b *Builder) extractElements(text string) []passthru.Element {
	nl := strings.IndexByte(text, '\n')
	if nl < 0 {
		return nil
	}
	body := text[nl+1:]

	var elements []passthru.Element
	for i, groups := range b.element.Compiled.FindAllStringSubmatch(body, -1) {
		el := passthru.Element{Label: b.elements.Label(groups, i)}
		for _, p := range b.elements.Properties {
			if p.Group >= len(groups) {
				continue
			}
			v := strings.TrimSpace(groups[p.Group])
			if v == "" {
				continue
			}
			el.Properties = append(el.Properties, passthru.Property{Name: p.Name, Value: v})
		}
		elements = append(elements, el)
	}
	return elements
}

// callFields are the leading fields of every dedicated builder.
func callFields(command string) []FieldSpec {
	return []FieldSpec{
		{Name: FieldCommandLine, Pattern: command, Fatal: true},
		{Name: FieldTimeIssued, Pattern: patterns.TimeIssued},
	}
}

// statusFields close every dedicated builder's field list.
var statusFields = []FieldSpec{
	{Name: FieldTimeCompleted, Pattern: patterns.TimeDone},
	{Name: FieldReturnStatus, Pattern: patterns.Status, Marker: StatusOK},
}

// idField declares an identifier that must not carry the -1 sentinel.
func idField(name, pattern string) FieldSpec {
	return FieldSpec{Name: name, Pattern: pattern, Invert: true, Marker: invalidID}
}

// table concatenates descriptor groups.
func table(groups ...[]FieldSpec) []FieldSpec {
	var out []FieldSpec
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
