package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"passthru_parser/internal/passthru"
)

// Stats summarises one generator run.
type Stats struct {
	Segments         int                          `json:"segments"`
	Built            int                          `json:"built"`
	Dropped          int                          `json:"dropped"`
	ByKind           map[passthru.CommandKind]int `json:"by_kind"`
	InvalidFields    int                          `json:"invalid_fields"`
	UnresolvedFields int                          `json:"unresolved_fields"`
}

func newStats() Stats {
	return Stats{ByKind: make(map[passthru.CommandKind]int)}
}

func (s *Stats) add(e *passthru.Expression) {
	s.Built++
	s.ByKind[e.Kind]++
	for _, f := range e.Fields {
		if f.State == passthru.Invalid {
			s.InvalidFields++
		}
		if !f.Resolved() {
			s.UnresolvedFields++
		}
	}
}

// Merge adds other's counts to s.
func (s *Stats) Merge(other Stats) {
	if s.ByKind == nil {
		s.ByKind = make(map[passthru.CommandKind]int)
	}
	s.Segments += other.Segments
	s.Built += other.Built
	s.Dropped += other.Dropped
	s.InvalidFields += other.InvalidFields
	s.UnresolvedFields += other.UnresolvedFields
	for k, n := range other.ByKind {
		s.ByKind[k] += n
	}
}

func (s Stats) clone() Stats {
	c := s
	c.ByKind = make(map[passthru.CommandKind]int, len(s.ByKind))
	for k, n := range s.ByKind {
		c.ByKind[k] = n
	}
	return c
}

// String renders the stats as a short multi-line report.
func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "segments: %d  built: %d  dropped: %d\n", s.Segments, s.Built, s.Dropped)
	fmt.Fprintf(&b, "invalid fields: %d  unresolved fields: %d\n", s.InvalidFields, s.UnresolvedFields)

	kinds := make([]passthru.CommandKind, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %-20s %d\n", k.String(), s.ByKind[k])
	}
	return b.String()
}
