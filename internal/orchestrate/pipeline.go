// Package orchestrate drives the batch pipeline (scrape, filter, enrich,
// push) across manifest chunks. Two orchestrators share the same stage
// pipeline: Sequential processes one chunk at a time with retry backoff,
// Parallel runs phased worker pools.
package orchestrate

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/manifest"
)

// Stage runs one pipeline phase for one chunk.
type Stage func(ctx context.Context, m *manifest.Manifest, id string) error

// Pipeline bundles the per-chunk stages in execution order. Nil stages are
// skipped, which lets tests and partial CLI commands run a subset.
type Pipeline struct {
	Scrape Stage
	Filter Stage
	Enrich Stage
	Push   Stage
}

type stageDef struct {
	name string
	fn   Stage
}

func (p *Pipeline) stages() []stageDef {
	all := []stageDef{
		{"scrape", p.Scrape},
		{"filter", p.Filter},
		{"enrich", p.Enrich},
		{"push", p.Push},
	}
	defs := all[:0]
	for _, s := range all {
		if s.fn != nil {
			defs = append(defs, s)
		}
	}
	return defs
}

// run executes all stages for one chunk in order.
func (p *Pipeline) run(ctx context.Context, m *manifest.Manifest, id string) error {
	for _, st := range p.stages() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := st.fn(ctx, m, id); err != nil {
			return eris.Wrapf(err, "orchestrate: %s %s", st.name, id)
		}
	}
	return nil
}
