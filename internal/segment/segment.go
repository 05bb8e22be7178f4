// Package segment splits a PassThru log buffer into one segment per API call.
package segment

import (
	"regexp"
	"strings"

	"passthru_parser/internal/passthru"
	"passthru_parser/internal/patterns"
)

// Segmenter finds call boundaries using the registry's call-start and
// call-close markers.
type Segmenter struct {
	start *regexp.Regexp
	close *regexp.Regexp
}

// New creates a Segmenter from a compiled registry.
func New(reg *patterns.Registry) (*Segmenter, error) {
	start, err := reg.Lookup(patterns.CallStart)
	if err != nil {
		return nil, err
	}
	closeDef, err := reg.Lookup(patterns.CallClose)
	if err != nil {
		return nil, err
	}
	return &Segmenter{start: start.Compiled, close: closeDef.Compiled}, nil
}

// Segment splits buffer into segments in source order.
func (s *Segmenter) Segment(buffer string) []passthru.Segment {
	return s.SegmentFunc(buffer, nil)
}

// SegmentFunc splits buffer into segments and reports progress as a
// percentage of the buffer consumed after each segment.
//
// Each segment runs from a call-start marker to the end of the first
// call-close marker before the next call starts. A call with no status line
// ends where the next call begins (or at the end of the buffer). The Start/End
// ranges of the returned segments partition the whole buffer: the first
// segment owns any preamble and the last owns any trailing text.
func (s *Segmenter) SegmentFunc(buffer string, progress func(int)) []passthru.Segment {
	n := len(buffer)
	var segments []passthru.Segment

	cursor, owned := 0, 0
	for cursor < n {
		loc := s.start.FindStringIndex(buffer[cursor:])
		if loc == nil {
			break
		}
		callStart := cursor + loc[0]
		markerEnd := cursor + loc[1]

		next := n
		if nl := s.start.FindStringIndex(buffer[markerEnd:]); nl != nil {
			next = markerEnd + nl[0]
		}

		end := next
		if cl := s.close.FindStringIndex(buffer[markerEnd:next]); cl != nil {
			end = markerEnd + cl[1]
		}

		// Malformed ordering: clamp to the buffer end so the cursor always moves.
		if end < callStart || end <= cursor {
			end = n
		}

		cursor = end
		if end == callStart {
			continue
		}

		text := buffer[callStart:end]
		segments = append(segments, passthru.Segment{
			Start:     owned,
			End:       end,
			CallStart: callStart,
			Text:      text,
			Lines:     strings.Count(text, "\n") + 1,
		})
		owned = end

		if progress != nil {
			progress(cursor * 100 / n)
		}
	}

	if len(segments) > 0 {
		segments[len(segments)-1].End = n
	}
	return segments
}
