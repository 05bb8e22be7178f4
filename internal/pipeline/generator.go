// Package pipeline drives a log buffer through segmentation, classification,
// building and serialization.
package pipeline

import (
	"errors"
	"strings"

	"passthru_parser/internal/builders"
	"passthru_parser/internal/logging"
	"passthru_parser/internal/passthru"
	"passthru_parser/internal/patterns"
	"passthru_parser/internal/registry"
	"passthru_parser/internal/segment"
)

// Logger is the logging sink injected into every stage.
type Logger = logging.Logger

// Serializer persists an expression set. *ptexp.Writer implements it.
type Serializer interface {
	Write(set *passthru.ExpressionSet, hint string) (string, error)
}

// Engine holds the read-only state shared by every generator: the compiled
// patterns, the segmenter and the builder registry. It is safe for
// concurrent use.
type Engine struct {
	patterns  *patterns.Registry
	segmenter *segment.Segmenter
	builders  *registry.Registry
	log       Logger
}

// NewEngine wires a segmenter and the full builder registry to reg.
func NewEngine(reg *patterns.Registry, log Logger) (*Engine, error) {
	if log == nil {
		log = logging.Discard()
	}
	seg, err := segment.New(reg)
	if err != nil {
		return nil, err
	}
	b, err := builders.NewRegistry(reg, log)
	if err != nil {
		return nil, err
	}
	return &Engine{patterns: reg, segmenter: seg, builders: b, log: log}, nil
}

// NewDefaultEngine creates an engine over the default pattern registry.
func NewDefaultEngine(log Logger) (*Engine, error) {
	reg, err := patterns.Default()
	if err != nil {
		return nil, err
	}
	return NewEngine(reg, log)
}

// Patterns returns the engine's compiled pattern registry.
func (e *Engine) Patterns() *patterns.Registry { return e.patterns }

// Builders returns the engine's builder registry.
func (e *Engine) Builders() *registry.Registry { return e.builders }

// Generator turns one input buffer into an ExpressionSet. It is not safe
// for concurrent use; run one generator per buffer.
type Generator struct {
	engine   *Engine
	text     string
	progress func(int)

	set   *passthru.ExpressionSet
	stats Stats
	done  bool
}

// NewGenerator creates a generator for the given source path and its
// contents. The text is newline-normalized before segmentation.
func (e *Engine) NewGenerator(source, text string) *Generator {
	return &Generator{
		engine: e,
		text:   NormalizeNewlines(text),
		set:    passthru.NewExpressionSet(source),
		stats:  newStats(),
	}
}

// OnProgress registers a callback receiving 0-100 after each segment.
func (g *Generator) OnProgress(fn func(int)) { g.progress = fn }

// Generate segments and builds the buffer. It runs once; later calls return
// the same expressions.
func (g *Generator) Generate() []*passthru.Expression {
	if g.done {
		return g.Expressions()
	}
	g.done = true

	log := g.engine.log
	segments := g.engine.segmenter.SegmentFunc(g.text, g.progress)
	g.stats.Segments = len(segments)

	for _, seg := range segments {
		kind, expr, err := g.engine.builders.Dispatch(seg)
		if err != nil {
			g.stats.Dropped++
			log.Warn("segment dropped",
				"source", g.set.Source,
				"kind", kind.String(),
				"segment", seg.FirstLine(),
				"error", err)
			continue
		}
		g.set.Expressions = append(g.set.Expressions, expr)
		g.stats.add(expr)
	}

	log.Info("expressions generated",
		"source", g.set.Source,
		"segments", g.stats.Segments,
		"expressions", g.stats.Built,
		"dropped", g.stats.Dropped)

	return g.Expressions()
}

// Expressions returns a copy of the built expression list.
func (g *Generator) Expressions() []*passthru.Expression {
	out := make([]*passthru.Expression, len(g.set.Expressions))
	copy(out, g.set.Expressions)
	return out
}

// Set returns a copy of the expression set header and list.
func (g *Generator) Set() *passthru.ExpressionSet {
	set := *g.set
	set.Expressions = g.Expressions()
	return &set
}

// Stats returns the run statistics.
func (g *Generator) Stats() Stats { return g.stats.clone() }

// Serialize generates if needed and hands the set to s. The returned path is
// recorded on the set. On failure the error is logged and ("", err) returned.
func (g *Generator) Serialize(s Serializer) (string, error) {
	if s == nil {
		return "", errors.New("no serializer")
	}
	g.Generate()

	path, err := s.Write(g.Set(), g.set.Source)
	if err != nil {
		g.engine.log.Error("serialize failed", "source", g.set.Source, "error", err)
		return "", err
	}
	g.set.OutputPath = path
	return path, nil
}

// NormalizeNewlines converts CRLF and lone CR line endings to LF.
func NormalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
