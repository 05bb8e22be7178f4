package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"passthru_parser/internal/builders"
	"passthru_parser/internal/passthru"
)

const twoConnects = `0.900s ++ PTOpen("J2534", 0x0019FC38)
    returning DeviceID: 1
0.905s   0:STATUS_NOERROR
1.010s ++ PTConnect(1, ISO15765, 0x00000000, 500000, 0x0019FBEC)
       returning ChannelID: 2
1.017s   0:STATUS_NOERROR
1.020s ++ PTConnect(1, CAN, 0x00000800, 500000, 0x0019FBF0)
       returning ChannelID: 3
1.027s   0:STATUS_NOERROR
`

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewDefaultEngine(nil)
	if err != nil {
		t.Fatalf("NewDefaultEngine() error = %v", err)
	}
	return e
}

func TestEngineCoversEveryKind(t *testing.T) {
	if kinds := newEngine(t).Builders().Uncovered(); len(kinds) != 0 {
		t.Errorf("kinds without a dedicated builder: %v", kinds)
	}
}

func TestScenarioOpen(t *testing.T) {
	g := newEngine(t).NewGenerator("scenario1.txt", "1.234s ++ PTOpen(\"device\", 0xFF) \n1.235s 0:STATUS_NOERROR")
	exprs := g.Generate()

	if len(exprs) != 1 {
		t.Fatalf("got %d expressions, want 1", len(exprs))
	}
	e := exprs[0]
	if e.Kind != passthru.Open {
		t.Errorf("kind = %v, want Open", e.Kind)
	}
	if f, _ := e.Field(builders.FieldCommandLine); f.Value != `1.234s ++ PTOpen("device", 0xFF)` {
		t.Errorf("command line = %q", f.Value)
	}
	if f, _ := e.Field(builders.FieldReturnStatus); f.State != passthru.Valid {
		t.Errorf("return status state = %v, want Valid", f.State)
	}
}

func TestScenarioTwoConnects(t *testing.T) {
	text := strings.SplitN(twoConnects, "\n", 4)[3]
	g := newEngine(t).NewGenerator("connects.txt", text)
	exprs := g.Generate()

	if len(exprs) != 2 {
		t.Fatalf("got %d expressions, want 2", len(exprs))
	}
	for i, want := range []string{"2", "3"} {
		if exprs[i].Kind != passthru.Connect {
			t.Errorf("expr %d kind = %v, want Connect", i, exprs[i].Kind)
		}
		if f, _ := exprs[i].Field(builders.FieldChannelID); f.Value != want {
			t.Errorf("expr %d channel = %q, want %q", i, f.Value, want)
		}
	}
}

func TestScenarioMissingChannel(t *testing.T) {
	text := "1.010s ++ PTConnect(1, ISO15765, 0x00000000, 500000, 0x0019FBEC)\n1.017s   0:STATUS_NOERROR\n"
	exprs := newEngine(t).NewGenerator("x.txt", text).Generate()

	if len(exprs) != 1 {
		t.Fatalf("got %d expressions, want 1", len(exprs))
	}
	f, _ := exprs[0].Field(builders.FieldChannelID)
	if f.Value != passthru.Unresolved || f.State != passthru.Invalid {
		t.Errorf("channel = %+v, want unresolved/Invalid", f)
	}
}

func TestScenarioUnknownCall(t *testing.T) {
	text := "1.000s ++ PTReadVersion(1, 0x1, 0x2, 0x3)\n1.001s   0:STATUS_NOERROR\n"
	exprs := newEngine(t).NewGenerator("x.txt", text).Generate()

	if len(exprs) != 1 || exprs[0].Kind != passthru.None {
		t.Fatalf("want one None expression, got %d", len(exprs))
	}
}

func TestDroppedSegment(t *testing.T) {
	text := "1.010s ++ PTConnect(garbage\n1.017s   0:STATUS_NOERROR\n" +
		"1.020s ++ PTClose(1)\n1.021s   0:STATUS_NOERROR\n"
	g := newEngine(t).NewGenerator("x.txt", text)
	exprs := g.Generate()

	if len(exprs) != 1 || exprs[0].Kind != passthru.Close {
		t.Fatalf("want only the Close expression, got %d", len(exprs))
	}
	s := g.Stats()
	if s.Segments != 2 || s.Built != 1 || s.Dropped != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestGenerateOnceAndReadOnly(t *testing.T) {
	g := newEngine(t).NewGenerator("x.txt", twoConnects)
	first := g.Generate()
	if len(first) != 3 {
		t.Fatalf("got %d expressions, want 3", len(first))
	}

	first[0] = nil
	second := g.Generate()
	if len(second) != 3 || second[0] == nil {
		t.Error("caller mutation leaked into the generator")
	}

	s := g.Stats()
	if s.ByKind[passthru.Connect] != 2 || s.ByKind[passthru.Open] != 1 {
		t.Errorf("by kind = %v", s.ByKind)
	}
}

func TestProgress(t *testing.T) {
	g := newEngine(t).NewGenerator("x.txt", twoConnects)
	var calls []int
	g.OnProgress(func(p int) { calls = append(calls, p) })
	g.Generate()

	if len(calls) != 3 {
		t.Fatalf("got %d progress calls, want 3", len(calls))
	}
	for i := 1; i < len(calls); i++ {
		if calls[i] < calls[i-1] {
			t.Errorf("progress went backwards: %v", calls)
		}
	}
	// The trailing newline is not consumed by the last status line.
	if last := calls[len(calls)-1]; last < 90 || last > 100 {
		t.Errorf("final progress = %d, want 90..100", last)
	}
}

func TestNormalizeNewlines(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a\r\nb", "a\nb"},
		{"a\rb", "a\nb"},
		{"a\nb", "a\nb"},
		{"a\r\n\r\nb\r", "a\n\nb\n"},
	}
	for _, tt := range tests {
		if got := NormalizeNewlines(tt.in); got != tt.want {
			t.Errorf("NormalizeNewlines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	crlf := strings.ReplaceAll(twoConnects, "\n", "\r\n")
	if n := len(newEngine(t).NewGenerator("x.txt", crlf).Generate()); n != 3 {
		t.Errorf("CRLF input produced %d expressions, want 3", n)
	}
}

type fakeSerializer struct {
	path string
	err  error
	got  *passthru.ExpressionSet
}

func (f *fakeSerializer) Write(set *passthru.ExpressionSet, hint string) (string, error) {
	f.got = set
	return f.path, f.err
}

func TestSerialize(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := &fakeSerializer{path: "/out/x.ptExp"}
		g := newEngine(t).NewGenerator("x.txt", twoConnects)
		path, err := g.Serialize(s)
		if err != nil || path != "/out/x.ptExp" {
			t.Fatalf("Serialize() = %q, %v", path, err)
		}
		if s.got.Len() != 3 {
			t.Errorf("serializer saw %d expressions, want 3", s.got.Len())
		}
		if g.Set().OutputPath != path {
			t.Errorf("output path not recorded")
		}
	})

	t.Run("failure", func(t *testing.T) {
		want := errors.New("disk full")
		g := newEngine(t).NewGenerator("x.txt", twoConnects)
		path, err := g.Serialize(&fakeSerializer{err: want})
		if path != "" || !errors.Is(err, want) {
			t.Errorf("Serialize() = %q, %v", path, err)
		}
		if g.Set().OutputPath != "" {
			t.Error("output path recorded on failure")
		}
	})
}

func TestRun(t *testing.T) {
	e := newEngine(t)
	inputs := []Input{
		{Source: "a.txt", Text: twoConnects},
		{Source: "b.txt", Text: "1.020s ++ PTClose(1)\n1.021s   0:STATUS_NOERROR\n"},
		{Source: "c.txt", Text: ""},
	}

	results := e.Run(context.Background(), inputs, 2, nil, nil)
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	for i, want := range []int{3, 1, 0} {
		if results[i].Err != nil {
			t.Errorf("result %d error = %v", i, results[i].Err)
		}
		if results[i].Set.Source != inputs[i].Source {
			t.Errorf("result %d source = %q", i, results[i].Set.Source)
		}
		if results[i].Set.Len() != want {
			t.Errorf("result %d has %d expressions, want %d", i, results[i].Set.Len(), want)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, r := range e.Run(ctx, inputs, 1, nil, nil) {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("cancelled run error = %v", r.Err)
		}
	}
}

func TestStatsMerge(t *testing.T) {
	var total Stats
	total.Merge(Stats{Segments: 2, Built: 1, Dropped: 1, ByKind: map[passthru.CommandKind]int{passthru.Open: 1}})
	total.Merge(Stats{Segments: 1, Built: 1, ByKind: map[passthru.CommandKind]int{passthru.Open: 1}})
	if total.Segments != 3 || total.Built != 2 || total.ByKind[passthru.Open] != 2 {
		t.Errorf("merged = %+v", total)
	}
	if !strings.Contains(total.String(), "Open") {
		t.Errorf("String() missing kind: %q", total.String())
	}
}
