package driver

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ousttrue/pycpptool/internal/emit"
	"github.com/ousttrue/pycpptool/internal/observ"
)

// targetOutput pairs a target name with its staged files.
type targetOutput struct {
	Target string
	Files  []emit.File
}

// emitTargets runs the emitters concurrently. Each goroutine writes
// into its own slot of the results slice, so no mutex is needed; the
// shared model is read-only because every layout was resolved before
// this point. Any emitter error discards all outputs.
func emitTargets(ctx context.Context, emitters []emit.Emitter, m *emit.Model, jobs int, timer *observ.Timer) ([]targetOutput, error) {
	if len(emitters) == 0 {
		return nil, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	phase := timer.Begin("emit")
	results := make([]targetOutput, len(emitters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(emitters)))

	for i, em := range emitters {
		g.Go(func(i int, em emit.Emitter) func() error {
			return func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				files, err := em.Emit(m)
				if err != nil {
					return fmt.Errorf("emit %s: %w", em.Target(), err)
				}
				results[i] = targetOutput{Target: em.Target(), Files: files}
				return nil
			}
		}(i, em))
	}

	err := g.Wait()
	timer.End(phase, fmt.Sprintf("%d targets", len(emitters)))
	if err != nil {
		return nil, err
	}
	return results, nil
}
