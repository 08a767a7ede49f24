package stream

import (
	"context"
	"fmt"
	"net/http"

	"bifurcate/middleware"

	json "github.com/json-iterator/go"
)

// streamer is the default Streamer implementation: one goroutine per call,
// buffering encoded items until the chunk threshold, then handing the buffer
// over the chunk channel. Safe for concurrent use; each Stream call runs in
// isolation.
type streamer[T any] struct {
	config     ChunkConfig
	bufferPool BufferPool
}

// NewStreamer creates a Streamer for type T with the given configuration.
func NewStreamer[T any](config ChunkConfig) Streamer[T] {
	if err := config.Validate(); err != nil {
		// Validate only applies defaults today.
		panic(fmt.Sprintf("invalid config: %v", err))
	}

	return &streamer[T]{
		config:     config,
		bufferPool: NewBufferPool(config.BufferSize),
	}
}

// NewDefaultStreamer is NewStreamer with DefaultChunkConfig.
func NewDefaultStreamer[T any]() Streamer[T] {
	return NewStreamer[T](DefaultChunkConfig())
}

// Stream encodes fetched items as a chunked JSON array. It stops on the
// first fetcher or transformer error, sends the error as a chunk, and closes
// the channel. Context cancellation stops processing immediately.
func (s *streamer[T]) Stream(
	ctx context.Context,
	fetcher DataFetcher[T],
	transformer Transformer[T],
) middleware.StreamResponse {
	chunkChan := make(chan middleware.StreamChunk, s.config.ChannelBuffer)

	go func() {
		defer close(chunkChan)

		buf := s.bufferPool.Get()
		defer func() {
			if buf != nil {
				s.bufferPool.Put(buf)
			}
		}()

		*buf = append(*buf, '[')

		dataChan, errChan := fetcher(ctx)

		firstItem := true

		for {
			select {
			case <-ctx.Done():
				return

			case err := <-errChan:
				if err != nil {
					chunkChan <- middleware.StreamChunk{
						Error: fmt.Errorf("fetcher error: %w", err),
					}
					return
				}

			case item, ok := <-dataChan:
				if !ok {
					*buf = append(*buf, ']')
					chunkChan <- middleware.StreamChunk{Data: buf}
					buf = nil // ownership moved to the sender
					return
				}

				transformed, err := transformer(item)
				if err != nil {
					chunkChan <- middleware.StreamChunk{
						Error: fmt.Errorf("transformer error: %w", err),
					}
					return
				}

				encoded, err := json.Marshal(transformed)
				if err != nil {
					chunkChan <- middleware.StreamChunk{
						Error: fmt.Errorf("JSON marshal error: %w", err),
					}
					return
				}

				if !firstItem {
					*buf = append(*buf, ',')
				} else {
					firstItem = false
				}
				*buf = append(*buf, encoded...)

				if len(*buf) > s.config.ChunkThreshold {
					chunkChan <- middleware.StreamChunk{Data: buf}
					buf = s.bufferPool.Get()
				}
			}
		}
	}()

	return middleware.StreamResponse{
		TotalCount: -1, // Not known in advance for streaming
		ChunkChan:  chunkChan,
		Code:       http.StatusOK,
	}
}

// GetConfig returns the current streaming configuration.
func (s *streamer[T]) GetConfig() ChunkConfig {
	return s.config
}
