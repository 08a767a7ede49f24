// Package bifurcate fans a single upstream byte stream out to N independent
// consumers, each reading at its own pace under its own backpressure and
// byte-count limits. The source is read exactly once; every consumer observes
// the same byte prefix, differing only in length (quota or early exit).
//
// Key Features:
// - Single-read fan-out to any number of branches
// - Per-branch high/low watermark backpressure (bounded memory)
// - Per-branch byte quotas with clean completion on exhaustion
// - Symmetric failure fanout: one branch's failure is surfaced to every
//   sibling through its own reader, not merely cancelled
// - Typed, positionally aligned results via null.Value[R]
//
// Usage Example:
//
//	src := bifurcate.NewReaderSource(file, false)
//
//	hash := bifurcate.DefaultBranch[string]()
//	hash.Consumer = func(ctx context.Context, r *bifurcate.Reader) (string, error) {
//	    h := sha256.New()
//	    if _, err := io.Copy(h, r); err != nil {
//	        return "", err
//	    }
//	    return hex.EncodeToString(h.Sum(nil)), nil
//	}
//
//	head := bifurcate.DefaultBranch[string]()
//	head.MaxTotalBytes = 64
//	head.Consumer = func(ctx context.Context, r *bifurcate.Reader) (string, error) {
//	    b, err := io.ReadAll(r)
//	    return string(b), err
//	}
//
//	results, err := bifurcate.Collect(ctx, src, bifurcate.DefaultSourceOptions(),
//	    []bifurcate.Branch[string]{hash, head})
package bifurcate

import (
	"context"
	"io"
)

// Source is the minimal peek-and-advance contract the coordinator reads from.
// Implementations yield read-only byte views without copying; the coordinator
// acknowledges how much of each view it consumed or merely examined.
//
// Contract:
//   - Peek returns the current unconsumed window and whether the source has
//     ended. The view stays valid until the next Consume call.
//   - Consume(n) drops the first n bytes of the window; the next Peek starts
//     after them.
//   - Examine(n) marks the first n bytes as seen without consuming them; the
//     next Peek returns at least the same prefix plus any newly arrived
//     bytes. This is what makes minimum-buffer coalescing lossless.
//   - Close tears the source down. A non-nil reason signals abnormal
//     completion; implementations may ignore it.
type Source interface {
	Peek() (view []byte, completed bool, err error)
	Consume(n int)
	Examine(n int)
	Close(reason error) error
}

// Consumer is a branch's user closure. It receives the branch's private
// reader and returns the branch result. Returning (with or without error)
// closes the read end; the coordinator harvests the value on the success
// path and the error through the failure fanout.
//
// Implementation Notes:
//   - Must treat r as this goroutine's exclusive handle
//   - Should return promptly once r reports an error or EOF
//   - Should honor ctx for any waits of its own
type Consumer[R any] func(ctx context.Context, r *Reader) (R, error)

// Branch configures one downstream consumer.
//
// Invariants (enforced by Validate):
//   - Consumer != nil
//   - BlockAfter > 0
//   - 0 <= ResumeAfter <= BlockAfter
//   - MaxTotalBytes > 0, or Unlimited
type Branch[R any] struct {
	// Consumer is the branch's processing closure. Required.
	Consumer Consumer[R]

	// OnError, when set, is invoked with the wrapped failure whenever the
	// bifurcation fails globally, including a failure this branch caused.
	// Panics inside the callback are swallowed.
	OnError func(error)

	// BlockAfter is the high watermark: a producer write that would push the
	// branch backlog past this many bytes suspends until the consumer drains
	// it back down.
	BlockAfter int

	// ResumeAfter is the low watermark: a suspended producer is re-admitted
	// once the backlog is at or below this many bytes.
	ResumeAfter int

	// MaxTotalBytes caps how many bytes the branch receives. Reaching the
	// cap completes the branch normally. Unlimited disables the cap.
	MaxTotalBytes int
}

// Sink is the result-less form of Branch, for consumers that only produce
// side effects. See Run.
type Sink struct {
	Consumer func(ctx context.Context, r *Reader) error
	OnError  func(error)

	BlockAfter    int
	ResumeAfter   int
	MaxTotalBytes int
}

// SourceOptions configures the coordinator's read loop.
type SourceOptions struct {
	// MinReadBuffer delays forwarding a mid-stream view smaller than this
	// many bytes: the coordinator keeps the prefix and re-peeks until more
	// bytes arrive or the source ends. Unlimited (-1) disables coalescing.
	// Must be positive or Unlimited.
	MinReadBuffer int

	// ReturnPartial controls what Collect and Run do when the bifurcation
	// fails. When false (the default), the wrapped failure is returned as
	// the error. When true, the call reports success with whatever partial
	// results the branches managed to produce; failed or incomplete slots
	// stay invalid.
	ReturnPartial bool
}

// Unlimited disables a byte bound wherever an option accepts it.
const Unlimited = -1

// Canonical defaults, shared by DefaultSourceOptions and DefaultBranch.
const (
	DefaultMinReadBuffer = 4 * 1024
	DefaultBlockAfter    = 32 * 1024
	DefaultResumeAfter   = 16 * 1024
)

// DefaultSourceOptions returns the canonical coordinator configuration:
// 4KB read coalescing, failures returned as errors.
func DefaultSourceOptions() SourceOptions {
	return SourceOptions{
		MinReadBuffer: DefaultMinReadBuffer,
	}
}

// DefaultBranch returns a branch with the canonical watermarks (32KB block,
// 16KB resume) and no byte cap. The caller still has to set Consumer.
func DefaultBranch[R any]() Branch[R] {
	return Branch[R]{
		BlockAfter:    DefaultBlockAfter,
		ResumeAfter:   DefaultResumeAfter,
		MaxTotalBytes: Unlimited,
	}
}

// DefaultSink is DefaultBranch for result-less consumers.
func DefaultSink() Sink {
	return Sink{
		BlockAfter:    DefaultBlockAfter,
		ResumeAfter:   DefaultResumeAfter,
		MaxTotalBytes: Unlimited,
	}
}

// Validate checks the option invariants. Unlike zero-value defaulting, an
// explicit ResumeAfter of 0 stays expressible (drain fully before resuming),
// so invalid values are rejected rather than replaced.
func (o SourceOptions) Validate() error {
	if o.MinReadBuffer <= 0 && o.MinReadBuffer != Unlimited {
		return configErrorf("min read buffer must be positive or Unlimited, got %d", o.MinReadBuffer)
	}
	return nil
}

// Validate checks the branch invariants listed on Branch.
func (b Branch[R]) Validate() error {
	if b.Consumer == nil {
		return configErrorf("branch consumer must not be nil")
	}
	return validateLimits(b.BlockAfter, b.ResumeAfter, b.MaxTotalBytes)
}

// Validate checks the sink invariants; same rules as Branch.
func (s Sink) Validate() error {
	if s.Consumer == nil {
		return configErrorf("sink consumer must not be nil")
	}
	return validateLimits(s.BlockAfter, s.ResumeAfter, s.MaxTotalBytes)
}

func validateLimits(blockAfter, resumeAfter, maxTotal int) error {
	if blockAfter <= 0 {
		return configErrorf("block watermark must be positive, got %d", blockAfter)
	}
	if resumeAfter < 0 || resumeAfter > blockAfter {
		return configErrorf("resume watermark must be within [0, %d], got %d", blockAfter, resumeAfter)
	}
	if maxTotal <= 0 && maxTotal != Unlimited {
		return configErrorf("max total bytes must be positive or Unlimited, got %d", maxTotal)
	}
	return nil
}

// Reader is the consumer side of a branch buffer. It satisfies io.Reader and
// io.Closer; Close signals voluntary early exit, which the coordinator treats
// as normal completion for the branch.
type Reader struct {
	p *pipe
}

var (
	_ io.Reader = (*Reader)(nil)
	_ io.Closer = (*Reader)(nil)
)

// Read returns the next sequential bytes written by the coordinator. Once the
// write end closes it returns io.EOF after the backlog drains, or the close
// error immediately.
func (r *Reader) Read(p []byte) (int, error) {
	return r.p.read(p)
}

// Close releases the read end. Subsequent coordinator writes to this branch
// observe the closure and complete the branch normally. Idempotent.
func (r *Reader) Close() error {
	r.p.closeRead()
	return nil
}
