package bifurcate

import (
	"context"
	"fmt"

	"github.com/guregu/null/v5"
)

// branch owns one consumer's lifecycle: its pipe, its goroutine, its byte
// quota and its harvested result. The coordinator is the only caller; all
// methods run on the coordinator goroutine except the consumer body itself.
type branch[R any] struct {
	consumer Consumer[R]
	onError  func(error)

	pipe   *pipe
	reader *Reader

	remaining int // bytes the branch may still receive; Unlimited disables

	done        chan struct{} // closed when the consumer goroutine returns
	value       R             // valid after done when consumerErr == nil
	consumerErr error

	completed    bool
	result       null.Value[R]
	onErrorFired bool
}

func newBranch[R any](opts Branch[R]) *branch[R] {
	p := newPipe(opts.BlockAfter, opts.ResumeAfter)
	return &branch[R]{
		consumer:  opts.Consumer,
		onError:   opts.OnError,
		pipe:      p,
		reader:    &Reader{p: p},
		remaining: opts.MaxTotalBytes,
		done:      make(chan struct{}),
	}
}

// start spawns the consumer goroutine. The read end is closed on the way
// out whether the consumer returns cleanly, errors, or panics, so a
// suspended coordinator write always wakes.
func (b *branch[R]) start(ctx context.Context) {
	go func() {
		defer close(b.done)
		defer func() {
			if r := recover(); r != nil {
				b.consumerErr = fmt.Errorf("consumer panic: %v", r)
			}
			b.reader.Close()
		}()
		b.value, b.consumerErr = b.consumer(ctx, b.reader)
	}()
}

// finished reports whether the consumer goroutine has returned, without
// blocking.
func (b *branch[R]) finished() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// write delivers view to the branch, clipped to the remaining quota. It
// reports keepWriting=false when the branch is done receiving bytes for any
// normal reason (already completed, consumer finished, quota exhausted,
// reader closed). A non-nil error means the bifurcation must fail: either
// the consumer faulted or the pipe was aborted.
func (b *branch[R]) write(view []byte) (keepWriting bool, err error) {
	if b.completed {
		return false, nil
	}
	if b.finished() {
		if b.consumerErr != nil {
			return false, b.consumerErr
		}
		return false, nil
	}

	if b.remaining != Unlimited && len(view) > b.remaining {
		view = view[:b.remaining]
	}

	readerClosed, err := b.pipe.write(view)
	if err != nil {
		return false, err
	}

	if b.remaining != Unlimited {
		b.remaining -= len(view)
		if b.remaining == 0 {
			return false, nil
		}
	}
	return !readerClosed, nil
}

// completeOK seals the branch's write end cleanly, waits for the consumer
// and stores its result. A consumer error surfaces here so the coordinator
// can fan it out; repeated calls are no-ops.
func (b *branch[R]) completeOK() error {
	if b.completed {
		return nil
	}
	b.completed = true
	b.pipe.closeWrite(nil)
	<-b.done
	if b.consumerErr != nil {
		return b.consumerErr
	}
	b.result = null.ValueFrom(b.value)
	return nil
}

// completeErr seals the branch with the wrapped failure, waits for the
// consumer swallowing whatever it returns, then fires OnError exactly once.
// Never fails; the stored result is whatever the consumer managed to
// produce, or unset.
func (b *branch[R]) completeErr(reason *Error) {
	if !b.completed {
		b.completed = true
		b.pipe.closeWrite(reason)
		<-b.done
		if b.consumerErr == nil {
			b.result = null.ValueFrom(b.value)
		}
	}
	if b.onError != nil && !b.onErrorFired {
		b.onErrorFired = true
		func() {
			defer func() { recover() }()
			b.onError(reason)
		}()
	}
}
