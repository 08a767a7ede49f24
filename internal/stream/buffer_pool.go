package stream

import "sync"

// bufferPool implements BufferPool on top of sync.Pool. Buffers grow with
// Go's slice strategy and are reclaimed by the GC when idle.
type bufferPool struct {
	pool        *sync.Pool
	initialSize int
}

// NewBufferPool creates a pool whose buffers start at initialSize capacity.
// Non-positive sizes fall back to 40KB, slightly above the default chunk
// threshold.
func NewBufferPool(initialSize int) BufferPool {
	if initialSize <= 0 {
		initialSize = 40 * 1024
	}

	return &bufferPool{
		initialSize: initialSize,
		pool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, 0, initialSize)
				return &buf
			},
		},
	}
}

func (p *bufferPool) Get() *[]byte {
	buf := p.pool.Get().(*[]byte)

	// Reset length while keeping capacity; old data stays invisible.
	*buf = (*buf)[:0]

	return buf
}

func (p *bufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	p.pool.Put(buf)
}

func (p *bufferPool) GetInitialSize() int {
	return p.initialSize
}
