package pipeline

import (
	"context"
	"sync"

	"passthru_parser/internal/passthru"
)

// Input is one log buffer to process.
type Input struct {
	Source string
	Text   string
}

// Result is the outcome of processing one Input.
type Result struct {
	Set   *passthru.ExpressionSet
	Stats Stats
	Path  string // Serialized file, empty when no serializer was given.
	Err   error
}

// ProgressFunc receives per-source progress from Run. It may be called from
// several goroutines at once.
type ProgressFunc func(source string, percent int)

// Run processes inputs with at most workers generators alive at once.
// Results are returned in input order. Cancellation is only checked before a
// buffer is started; a buffer already in progress always completes.
func (e *Engine) Run(ctx context.Context, inputs []Input, workers int, out Serializer, progress ProgressFunc) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(inputs))
	var wg sync.WaitGroup

	sem := make(chan struct{}, workers)

	for i, in := range inputs {
		wg.Add(1)
		go func(idx int, in Input) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[idx] = Result{Err: err}
				return
			}

			g := e.NewGenerator(in.Source, in.Text)
			if progress != nil {
				g.OnProgress(func(p int) { progress(in.Source, p) })
			}
			g.Generate()

			res := Result{Stats: g.Stats()}
			if out != nil {
				res.Path, res.Err = g.Serialize(out)
			}
			res.Set = g.Set()
			results[idx] = res
		}(i, in)
	}

	wg.Wait()
	return results
}
