package bifurcate

import (
	"context"

	"github.com/guregu/null/v5"
)

// run is the read/fan-out loop. It pulls views from the source, applies the
// minimum-buffer coalescing rule, writes each view to every live branch in
// declared order, and harvests branches as they complete. Any failure is
// routed through failAll so every sibling observes the same wrapped cause.
func run[R any](ctx context.Context, src Source, opts SourceOptions, branches []*branch[R]) ([]null.Value[R], error) {
	live := len(branches)

	for live > 0 {
		if err := ctx.Err(); err != nil {
			return failAll(src, branches, wrapFailure(KindCancelled, err), opts.ReturnPartial)
		}

		view, completed, err := src.Peek()
		if err != nil {
			return failAll(src, branches, wrapFailure(KindSource, err), opts.ReturnPartial)
		}
		if len(view) == 0 && completed {
			break
		}

		// Coalesce undersized mid-stream views: keep the prefix and re-peek
		// until more bytes arrive or the source ends. Empty views are always
		// re-peeked, sized ones only below the configured minimum.
		if !completed && (len(view) == 0 ||
			(opts.MinReadBuffer != Unlimited && len(view) < opts.MinReadBuffer)) {
			src.Examine(len(view))
			continue
		}

		for _, b := range branches {
			if b.completed {
				continue
			}
			keep, werr := b.write(view)
			if werr != nil {
				return failAll(src, branches, wrapFailure(KindConsumer, werr), opts.ReturnPartial)
			}
			if !keep {
				if cerr := b.completeOK(); cerr != nil {
					return failAll(src, branches, wrapFailure(KindConsumer, cerr), opts.ReturnPartial)
				}
				live--
			}
		}

		src.Consume(len(view))
	}

	if err := src.Close(nil); err != nil {
		return failAll(src, branches, wrapFailure(KindSource, err), opts.ReturnPartial)
	}

	results := make([]null.Value[R], len(branches))
	for i, b := range branches {
		if err := b.completeOK(); err != nil {
			return failAll(src, branches, wrapFailure(KindConsumer, err), opts.ReturnPartial)
		}
		results[i] = b.result
	}
	return results, nil
}

// failAll is the global failure fanout: close the source with the wrapped
// cause, seal every branch with it (sibling readers observe it on their next
// read), collect whatever partial results exist, then either bubble the
// failure or report the partial vector.
func failAll[R any](src Source, branches []*branch[R], reason *Error, returnPartial bool) ([]null.Value[R], error) {
	_ = src.Close(reason)

	results := make([]null.Value[R], len(branches))
	for i, b := range branches {
		b.completeErr(reason)
		results[i] = b.result
	}
	if returnPartial {
		return results, nil
	}
	return nil, reason
}
