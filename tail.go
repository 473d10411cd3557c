package backlines

import (
	"context"

	"github.com/pkg/errors"
)

// Tail continues the in-flight scan, handing lines to consume in batches of at
// most batch lines, last line first. Returning ErrEndOfTail from consume stops
// the scan without error.
func (r *Reader) Tail(ctx context.Context, batch int, consume func([]Line) error) error {
	if batch <= 0 {
		batch = 1
	}

	it, err := r.Iter()
	if err != nil {
		return err
	}

	deliver := func(lines []Line) error {
		if err := consume(lines); err != nil {
			it.Close()
			if errors.Is(err, ErrEndOfTail) {
				return nil
			}
			return err
		}
		return nil
	}

	lines := make([]Line, 0, batch)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !it.Scan() {
			break
		}

		lines = append(lines, it.Line())
		if len(lines) == batch {
			if err := deliver(lines); err != nil || it.Done() {
				return err
			}
			lines = make([]Line, 0, batch)
		}
	}

	if err := it.Err(); err != nil {
		return err
	}

	if len(lines) > 0 {
		return deliver(lines)
	}

	return nil
}

// LastN returns up to the last n lines of path in file order.
func LastN(ctx context.Context, path string, n int, opts ...Option) ([]Line, error) {
	if n <= 0 {
		return nil, nil
	}

	var lines []Line
	err := With(path, func(r *Reader) error {
		return r.Tail(ctx, n, func(batch []Line) error {
			lines = batch
			return ErrEndOfTail
		})
	}, opts...)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}

	return lines, nil
}
