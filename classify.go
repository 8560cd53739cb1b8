package tabstego

import (
	"context"

	"golang.org/x/sync/errgroup"

	stegerrors "github.com/tamirms/tabstego/errors"
	"github.com/tamirms/tabstego/internal/classify"
)

// classifyChunk is the number of rows a classification worker handles at
// a time.
const classifyChunk = 4096

// Classify returns the bucket value of every row in table order.
func Classify(ctx context.Context, t Table, opts ...Option) ([]uint8, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	c, err := o.cfg.classifier()
	if err != nil {
		return nil, err
	}
	return classifyRows(ctx, t, c, o.cfg.Workers)
}

func classifyRows(ctx context.Context, t Table, c *classify.Classifier, workers int) ([]uint8, error) {
	n := t.RowCount()
	if n == 0 {
		return nil, stegerrors.ErrEmptyTable
	}
	values := make([]uint8, n)
	if workers <= 1 {
		for i := range n {
			if i%classifyChunk == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			values[i] = c.Classify(t.RowFields(i))
		}
		return values, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < n; start += classifyChunk {
		end := min(start+classifyChunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				values[i] = c.Classify(t.RowFields(i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}
