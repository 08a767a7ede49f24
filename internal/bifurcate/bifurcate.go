package bifurcate

import (
	"context"

	"github.com/guregu/null/v5"
)

// Collect bifurcates src into the given branches and returns their typed
// results, positionally aligned with the configs. A slot is valid only when
// its branch completed normally; with SourceOptions.ReturnPartial set, a
// failed run reports the partial vector instead of the wrapped error.
//
// All consumer goroutines are launched before the first source read and are
// always awaited before Collect returns, successful or not. Option
// validation happens first and returns a KindInvalidConfig *Error without
// spawning anything.
func Collect[R any](ctx context.Context, src Source, opts SourceOptions, configs []Branch[R]) ([]null.Value[R], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, configErrorf("at least one branch is required")
	}
	for i, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, annotateConfig("branch", i, err)
		}
	}

	branches := make([]*branch[R], len(configs))
	for i, cfg := range configs {
		branches[i] = newBranch(cfg)
	}
	for _, b := range branches {
		b.start(ctx)
	}

	// A fired context aborts every pipe so suspended writes and reads wake
	// with the wrapped cancellation; the coordinator then runs the regular
	// failure fanout.
	stop := context.AfterFunc(ctx, func() {
		reason := wrapFailure(KindCancelled, context.Cause(ctx))
		for _, b := range branches {
			b.pipe.abort(reason)
		}
	})
	defer stop()

	return run(ctx, src, opts, branches)
}

// Run is the result-less overload: every sink only produces side effects, so
// there is no result vector. Failure semantics match Collect, including
// ReturnPartial suppressing the error.
func Run(ctx context.Context, src Source, opts SourceOptions, sinks []Sink) error {
	configs := make([]Branch[struct{}], len(sinks))
	for i, s := range sinks {
		if err := s.Validate(); err != nil {
			return annotateConfig("sink", i, err)
		}
		consume := s.Consumer
		configs[i] = Branch[struct{}]{
			Consumer: func(ctx context.Context, r *Reader) (struct{}, error) {
				return struct{}{}, consume(ctx, r)
			},
			OnError:       s.OnError,
			BlockAfter:    s.BlockAfter,
			ResumeAfter:   s.ResumeAfter,
			MaxTotalBytes: s.MaxTotalBytes,
		}
	}
	_, err := Collect(ctx, src, opts, configs)
	return err
}
