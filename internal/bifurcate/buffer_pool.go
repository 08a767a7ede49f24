package bifurcate

import "sync"

// WindowPool recycles the grow-on-demand byte windows the reader-backed
// source uses to stage unconsumed bytes between peeks. Backed by sync.Pool,
// so unused windows are reclaimed by the GC and no manual cleanup is needed.
type WindowPool interface {
	// Get returns a window with len=0 and capacity of at least the pool's
	// initial size.
	Get() *[]byte

	// Put hands a window back for reuse. The window must not be touched
	// afterwards. Nil is a no-op.
	Put(buf *[]byte)
}

type windowPool struct {
	pool        *sync.Pool
	initialSize int
}

// NewWindowPool creates a pool producing windows with the given initial
// capacity. Non-positive sizes fall back to 32KB, which comfortably covers
// the default coalescing threshold.
func NewWindowPool(initialSize int) WindowPool {
	if initialSize <= 0 {
		initialSize = 32 * 1024
	}
	return &windowPool{
		initialSize: initialSize,
		pool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, 0, initialSize)
				return &buf
			},
		},
	}
}

func (p *windowPool) Get() *[]byte {
	buf := p.pool.Get().(*[]byte)
	*buf = (*buf)[:0]
	return buf
}

func (p *windowPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	p.pool.Put(buf)
}

// sourceWindows is the shared pool behind NewReaderSource.
var sourceWindows = NewWindowPool(32 * 1024)
