package segment

import (
	"strings"
	"testing"

	"passthru_parser/internal/passthru"
	"passthru_parser/internal/patterns"
)

func newSegmenter(t *testing.T) *Segmenter {
	t.Helper()
	reg, err := patterns.Default()
	if err != nil {
		t.Fatalf("patterns.Default() error = %v", err)
	}
	s, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

const wellFormed = `PassThru log started
0.100s ++ PTOpen(0x00000000, 0x0019FC88)
       returning DeviceID: 1
0.164s   0:STATUS_NOERROR
1.010s ++ PTConnect(1, ISO15765, 0x00000000, 500000, 0x0019FBEC)
       returning ChannelID: 2
1.017s   0:STATUS_NOERROR
2.000s ++ PTClose(1)
2.001s   0:STATUS_NOERROR
`

// checkPartition verifies the segment ranges cover buffer with no gaps or overlaps.
func checkPartition(t *testing.T, buffer string, segs []passthru.Segment) {
	t.Helper()
	if len(segs) == 0 {
		t.Fatal("no segments")
	}
	if segs[0].Start != 0 {
		t.Errorf("first segment starts at %d, want 0", segs[0].Start)
	}
	var rebuilt strings.Builder
	for i, s := range segs {
		if i > 0 && s.Start != segs[i-1].End {
			t.Errorf("segment %d starts at %d, previous ended at %d", i, s.Start, segs[i-1].End)
		}
		if s.CallStart < s.Start || s.CallStart >= s.End {
			t.Errorf("segment %d call start %d outside [%d,%d)", i, s.CallStart, s.Start, s.End)
		}
		if !strings.HasPrefix(buffer[s.CallStart:], s.Text) {
			t.Errorf("segment %d text is not a slice of the buffer at its call start", i)
		}
		rebuilt.WriteString(buffer[s.Start:s.End])
	}
	if segs[len(segs)-1].End != len(buffer) {
		t.Errorf("last segment ends at %d, want %d", segs[len(segs)-1].End, len(buffer))
	}
	if rebuilt.String() != buffer {
		t.Error("segment ranges do not reconstruct the buffer")
	}
}

func TestSegmentWellFormed(t *testing.T) {
	s := newSegmenter(t)
	segs := s.Segment(wellFormed)

	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	checkPartition(t, wellFormed, segs)

	wantFirst := []string{
		"0.100s ++ PTOpen(0x00000000, 0x0019FC88)",
		"1.010s ++ PTConnect(1, ISO15765, 0x00000000, 500000, 0x0019FBEC)",
		"2.000s ++ PTClose(1)",
	}
	for i, s := range segs {
		if got := s.FirstLine(); got != wantFirst[i] {
			t.Errorf("segment %d first line = %q, want %q", i, got, wantFirst[i])
		}
		if !strings.HasSuffix(s.Text, "0:STATUS_NOERROR") {
			t.Errorf("segment %d should end with its status line, got %q", i, s.Text)
		}
	}
	if segs[0].Lines != 3 {
		t.Errorf("segment 0 lines = %d, want 3", segs[0].Lines)
	}
}

func TestSegmentScenario(t *testing.T) {
	s := newSegmenter(t)
	buffer := "1.234s ++ PTOpen(\"device\", 0xFF) \n1.235s 0:STATUS_NOERROR"
	segs := s.Segment(buffer)

	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Text != buffer {
		t.Errorf("segment text = %q, want whole buffer", segs[0].Text)
	}
	checkPartition(t, buffer, segs)
}

func TestSegmentMissingStatus(t *testing.T) {
	s := newSegmenter(t)
	buffer := "1.000s ++ PTOpen(0x0, 0x1)\n" +
		"2.000s ++ PTConnect(1, CAN, 0x0, 500000, 0x2)\n" +
		"2.010s   0:STATUS_NOERROR\n"

	segs := s.Segment(buffer)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	// The first call has no status line; it must stop where the second begins.
	if segs[0].Text != "1.000s ++ PTOpen(0x0, 0x1)\n" {
		t.Errorf("segment 0 text = %q", segs[0].Text)
	}
	if passthru.Classify(segs[1].Text) != passthru.Connect {
		t.Errorf("segment 1 should be the connect call, got %q", segs[1].Text)
	}
	checkPartition(t, buffer, segs)
}

func TestSegmentNoCloseMarkers(t *testing.T) {
	s := newSegmenter(t)
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("1.000s ++ PTReadMsgs(1, 0x1, 0x2[1], 0)\n  garbage without status\n")
	}
	buffer := b.String()

	segs := s.Segment(buffer)
	if len(segs) != 200 {
		t.Fatalf("expected 200 segments, got %d", len(segs))
	}
	checkPartition(t, buffer, segs)
}

func TestSegmentPathological(t *testing.T) {
	s := newSegmenter(t)
	inputs := []string{
		"",
		"no markers here at all",
		"\n\n\n",
		"1.0s ++",
		"1.0s 0:STATUS_NOERROR\n1.0s 0:STATUS_NOERROR",
		"++ -- !! ** 1.0s ++ 2.0s -- 3.0s !! 4.0s **",
		strings.Repeat("1.0s ++ ", 1000),
	}

	for _, in := range inputs {
		segs := s.Segment(in)
		if len(segs) > len(in) {
			t.Errorf("%d segments for %d bytes", len(segs), len(in))
		}
		for i, seg := range segs {
			if seg.Text == "" {
				t.Errorf("segment %d of %q is empty", i, in)
			}
		}
		if len(segs) > 0 {
			checkPartition(t, in, segs)
		}
	}
}

func TestSegmentProgress(t *testing.T) {
	s := newSegmenter(t)
	var reports []int
	segs := s.SegmentFunc(wellFormed, func(p int) { reports = append(reports, p) })

	if len(reports) != len(segs) {
		t.Fatalf("got %d progress reports for %d segments", len(reports), len(segs))
	}
	for i, p := range reports {
		if p < 0 || p > 100 {
			t.Errorf("report %d out of range: %d", i, p)
		}
		if i > 0 && p < reports[i-1] {
			t.Errorf("progress went backwards: %v", reports)
		}
	}
}
