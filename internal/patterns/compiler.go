// Package patterns provides the pattern registry used to pull field values out
// of PassThru log segments.
// This file contains the grok-style pattern compiler and evaluator.

package patterns

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"passthru_parser/internal/passthru"
)

var (
	// ErrNoMatch is returned when a pattern does not match the text at all.
	ErrNoMatch = errors.New("pattern did not match")

	// ErrPartialCapture is returned when fewer groups captured than requested.
	ErrPartialCapture = errors.New("pattern captured fewer groups than requested")

	// ErrUnknownPattern is returned when a definition name is not registered.
	ErrUnknownPattern = errors.New("unknown pattern")
)

// Definition maps a logical field name to a pattern and the capture groups
// holding its value.
type Definition struct {
	Name     string               // Registry key.
	Pattern  string               // Pattern with {PLACEHOLDER} syntax.
	Kind     passthru.CommandKind // Owning command kind (None for shared patterns).
	Groups   []int                // Capture groups to join; empty or all zero = whole match.
	Compiled *regexp.Regexp       // Compiled regex (populated by Compile).
}

// wholeMatch reports whether the definition returns the whole match.
func (d *Definition) wholeMatch() bool {
	for _, g := range d.Groups {
		if g != 0 {
			return false
		}
	}
	return true
}

// Evaluate applies the definition to text.
//
// With no groups configured the whole match is returned. Otherwise each listed
// group that participated in the match is trimmed and the values are joined
// with a single space. If any listed group did not capture, the evaluation
// fails with ErrPartialCapture rather than returning a partial value.
func (d *Definition) Evaluate(text string) (string, error) {
	if d.Compiled == nil {
		return "", fmt.Errorf("%s: not compiled", d.Name)
	}

	loc := d.Compiled.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", fmt.Errorf("%s: %w", d.Name, ErrNoMatch)
	}

	if d.wholeMatch() {
		return text[loc[0]:loc[1]], nil
	}

	values := make([]string, 0, len(d.Groups))
	for _, g := range d.Groups {
		if g < 0 || 2*g+1 >= len(loc) {
			continue
		}
		start, end := loc[2*g], loc[2*g+1]
		if start < 0 {
			continue
		}
		values = append(values, strings.TrimSpace(text[start:end]))
	}

	if len(values) != len(d.Groups) {
		return "", fmt.Errorf("%s: %w (%d of %d)", d.Name, ErrPartialCapture, len(values), len(d.Groups))
	}
	return strings.Join(values, " "), nil
}

// Registry holds a compiled set of pattern definitions. It is read-only once
// Compile has succeeded and may be shared between goroutines.
type Registry struct {
	basePatterns map[string]string
	defs         []Definition
	byName       map[string]int
}

// NewRegistry creates a registry for the given definitions.
// It merges the provided local patterns over the global BasePatterns,
// allowing local patterns to override global ones.
func NewRegistry(defs []Definition, localPatterns map[string]string) *Registry {
	r := &Registry{
		basePatterns: make(map[string]string, len(BasePatterns)+len(localPatterns)),
		defs:         make([]Definition, len(defs)),
		byName:       make(map[string]int, len(defs)),
	}

	for k, v := range BasePatterns {
		r.basePatterns[k] = v
	}
	for k, v := range localPatterns {
		r.basePatterns[k] = v
	}

	copy(r.defs, defs)
	for i := range r.defs {
		r.defs[i].Groups = append([]int(nil), defs[i].Groups...)
	}

	return r
}

// Compile expands all {PLACEHOLDER} references, compiles the regexes and
// checks every capture group index against the pattern.
func (r *Registry) Compile() error {
	for i := range r.defs {
		d := &r.defs[i]
		if _, dup := r.byName[d.Name]; dup {
			return fmt.Errorf("duplicate pattern %q", d.Name)
		}

		re, err := regexp.Compile(r.expand(d.Pattern))
		if err != nil {
			return fmt.Errorf("compile %s: %w", d.Name, err)
		}
		for _, g := range d.Groups {
			if g < 0 || g > re.NumSubexp() {
				return fmt.Errorf("compile %s: group %d out of range (pattern has %d)", d.Name, g, re.NumSubexp())
			}
		}

		d.Compiled = re
		r.byName[d.Name] = i
	}
	return nil
}

// expand replaces {PLACEHOLDER} with actual regex patterns.
func (r *Registry) expand(pattern string) string {
	result := pattern
	for name, regex := range r.basePatterns {
		result = strings.ReplaceAll(result, "{"+name+"}", regex)
	}
	return result
}

// Lookup returns the named definition.
func (r *Registry) Lookup(name string) (*Definition, error) {
	i, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPattern, name)
	}
	return &r.defs[i], nil
}

// MustLookup is Lookup for names known at compile time.
func (r *Registry) MustLookup(name string) *Definition {
	d, err := r.Lookup(name)
	if err != nil {
		panic(err)
	}
	return d
}

// Evaluate looks up a definition by name and evaluates it against text.
func (r *Registry) Evaluate(name, text string) (string, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	return d.Evaluate(text)
}

// FindAll returns the submatches of every occurrence of the named pattern.
// Groups that did not participate are returned as empty strings.
func (r *Registry) FindAll(name, text string) ([][]string, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return d.Compiled.FindAllStringSubmatch(text, -1), nil
}

// ForKind returns the definitions owned by kind, in registration order.
func (r *Registry) ForKind(kind passthru.CommandKind) []*Definition {
	var out []*Definition
	for i := range r.defs {
		if r.defs[i].Kind == kind {
			out = append(out, &r.defs[i])
		}
	}
	return out
}

// Names returns every registered definition name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expanded returns the regex source of a definition after placeholder expansion.
func (r *Registry) Expanded(name string) (string, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	return d.Compiled.String(), nil
}
