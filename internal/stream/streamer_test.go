package stream

import (
	"context"
	"errors"
	"fmt"
	"testing"

	json "github.com/json-iterator/go"
)

func TestStreamer_Stream(t *testing.T) {
	ctx := context.Background()
	config := DefaultChunkConfig()
	config.ChunkThreshold = 100 // Small threshold for testing
	streamer := NewStreamer[int](config)

	t.Run("streams items successfully", func(t *testing.T) {
		fetcher := SliceFetcher([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
		transformer := func(item int) (interface{}, error) {
			return map[string]int{"value": item}, nil
		}

		resp := streamer.Stream(ctx, fetcher, transformer)
		if resp.Code != 200 {
			t.Errorf("Expected code 200, got %d", resp.Code)
		}

		var body []byte
		for chunk := range resp.ChunkChan {
			if chunk.Error != nil {
				t.Fatalf("Chunk error: %v", chunk.Error)
			}
			if chunk.Data != nil {
				body = append(body, *chunk.Data...)
			}
		}

		var result []map[string]int
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatalf("Failed to parse JSON: %v\nData: %s", err, body)
		}
		if len(result) != 10 {
			t.Errorf("Expected 10 items, got %d", len(result))
		}
		for i, item := range result {
			if item["value"] != i+1 {
				t.Errorf("Item %d: expected %d, got %d", i, i+1, item["value"])
			}
		}
	})

	t.Run("handles empty data", func(t *testing.T) {
		resp := streamer.Stream(ctx, SliceFetcher[int](nil), PassThroughTransformer[int]())

		var body []byte
		for chunk := range resp.ChunkChan {
			if chunk.Data != nil {
				body = append(body, *chunk.Data...)
			}
		}
		if string(body) != "[]" {
			t.Errorf("Expected empty array [], got %s", body)
		}
	})

	t.Run("handles fetcher error", func(t *testing.T) {
		fetchErr := errors.New("cursor lost")
		fetcher := func(ctx context.Context) (<-chan int, <-chan error) {
			// dataChan stays open so the error branch is the only one ready.
			dataChan := make(chan int)
			errChan := make(chan error, 1)
			errChan <- fetchErr
			return dataChan, errChan
		}

		resp := streamer.Stream(ctx, fetcher, PassThroughTransformer[int]())

		var got error
		for chunk := range resp.ChunkChan {
			if chunk.Error != nil {
				got = chunk.Error
			}
		}
		if !errors.Is(got, fetchErr) {
			t.Errorf("Expected fetcher error, got %v", got)
		}
	})

	t.Run("handles transformer error", func(t *testing.T) {
		transformer := func(item int) (interface{}, error) {
			if item == 3 {
				return nil, fmt.Errorf("bad item %d", item)
			}
			return item, nil
		}

		resp := streamer.Stream(ctx, SliceFetcher([]int{1, 2, 3, 4}), transformer)

		var got error
		for chunk := range resp.ChunkChan {
			if chunk.Error != nil {
				got = chunk.Error
			}
		}
		if got == nil {
			t.Fatal("Expected transformer error")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()

		fetcher := func(ctx context.Context) (<-chan int, <-chan error) {
			dataChan := make(chan int)
			errChan := make(chan error, 1)
			// Never sends; the streamer must bail out on ctx alone.
			return dataChan, errChan
		}

		resp := streamer.Stream(cancelCtx, fetcher, PassThroughTransformer[int]())
		for range resp.ChunkChan {
		}
	})
}

func TestChunkConfig_Validate(t *testing.T) {
	var config ChunkConfig
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	def := DefaultChunkConfig()
	if config.ChunkThreshold != def.ChunkThreshold ||
		config.BufferSize != def.BufferSize ||
		config.ChannelBuffer != def.ChannelBuffer {
		t.Errorf("Zero config did not take defaults: %+v", config)
	}
}

func TestBufferPool(t *testing.T) {
	pool := NewBufferPool(1024)
	if pool.GetInitialSize() != 1024 {
		t.Errorf("Initial size = %d, want 1024", pool.GetInitialSize())
	}

	buf := pool.Get()
	if len(*buf) != 0 || cap(*buf) < 1024 {
		t.Errorf("Get returned len=%d cap=%d", len(*buf), cap(*buf))
	}
	*buf = append(*buf, "payload"...)
	pool.Put(buf)

	again := pool.Get()
	if len(*again) != 0 {
		t.Errorf("Recycled buffer not reset: len=%d", len(*again))
	}

	pool.Put(nil) // no-op
}
