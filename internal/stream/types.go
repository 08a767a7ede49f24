// Package stream turns a row-by-row data source into a chunked JSON array
// response, with pooled buffers to keep GC pressure down. It backs the
// transfer-listing endpoint: records come off a database cursor, get
// transformed, and leave as middleware.StreamChunk bodies.
package stream

import (
	"context"

	"bifurcate/middleware"
)

// DataFetcher feeds items into the streamer. Implementations must close
// both channels when done, send at most one error, and respect ctx.
type DataFetcher[T any] func(ctx context.Context) (<-chan T, <-chan error)

// Transformer maps one fetched item to its JSON-encodable output shape.
// Errors stop the stream immediately.
type Transformer[T any] func(item T) (interface{}, error)

// Streamer encodes fetched items as one chunked JSON array.
type Streamer[T any] interface {
	// Stream fetches, transforms and encodes items until the fetcher closes
	// or errors. The returned response plugs into middleware's sendStream.
	Stream(ctx context.Context, fetcher DataFetcher[T], transformer Transformer[T]) middleware.StreamResponse

	// GetConfig returns the active configuration.
	GetConfig() ChunkConfig
}

// ChunkConfig defines configuration for chunk-based streaming. Zero values
// take the defaults.
type ChunkConfig struct {
	// ChunkThreshold is the size in bytes at which a chunk is flushed to
	// the client. Smaller means more flushes, larger means more memory.
	ChunkThreshold int

	// BufferSize is the initial capacity of pooled encode buffers. Keep it
	// at or slightly above ChunkThreshold.
	BufferSize int

	// ChannelBuffer is the chunk channel depth.
	ChannelBuffer int
}

// DefaultChunkConfig returns the default streaming configuration.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkThreshold: 32 * 1024,
		BufferSize:     40 * 1024,
		ChannelBuffer:  4,
	}
}

// Validate applies defaults for zero values. It never fails today; the
// error return keeps room for hard limits.
func (c *ChunkConfig) Validate() error {
	if c.ChunkThreshold <= 0 {
		c.ChunkThreshold = 32 * 1024
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 40 * 1024
	}
	if c.ChannelBuffer <= 0 {
		c.ChannelBuffer = 4
	}
	return nil
}

// BufferPool manages reusable byte buffers for the encoder.
type BufferPool interface {
	// Get returns a buffer with len=0 and at least the pool's initial
	// capacity.
	Get() *[]byte

	// Put hands a buffer back. Nil is a no-op; the buffer must not be used
	// afterwards.
	Put(buf *[]byte)

	// GetInitialSize returns the initial capacity of buffers from this pool.
	GetInitialSize() int
}
