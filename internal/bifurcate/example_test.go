package bifurcate_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"bifurcate/internal/bifurcate"
)

// Example_digestAndPreview fans one stream out to a checksum branch and a
// bounded preview branch.
func Example_digestAndPreview() {
	ctx := context.Background()
	src := bifurcate.NewReaderSource(strings.NewReader("Test Value"), false)

	digest := bifurcate.DefaultBranch[string]()
	digest.Consumer = func(ctx context.Context, r *bifurcate.Reader) (string, error) {
		h := sha256.New()
		if _, err := io.Copy(h, r); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil))[:8], nil
	}

	preview := bifurcate.DefaultBranch[string]()
	preview.MaxTotalBytes = 4
	preview.Consumer = func(ctx context.Context, r *bifurcate.Reader) (string, error) {
		b, err := io.ReadAll(r)
		return string(b), err
	}

	results, err := bifurcate.Collect(ctx, src, bifurcate.DefaultSourceOptions(),
		[]bifurcate.Branch[string]{digest, preview})
	if err != nil {
		panic(err)
	}

	fmt.Printf("digest: %s\n", results[0].V)
	fmt.Printf("preview: %s\n", results[1].V)
	// Output:
	// digest: 7eca835f
	// preview: Test
}

// Example_sinks runs result-less consumers over the same bytes.
func Example_sinks() {
	ctx := context.Background()

	var archived strings.Builder
	archive := bifurcate.DefaultSink()
	archive.Consumer = func(ctx context.Context, r *bifurcate.Reader) error {
		_, err := io.Copy(&archived, r)
		return err
	}

	var size int64
	count := bifurcate.DefaultSink()
	count.Consumer = func(ctx context.Context, r *bifurcate.Reader) error {
		n, err := io.Copy(io.Discard, r)
		size = n
		return err
	}

	err := bifurcate.Run(ctx, bifurcate.NewBytesSource([]byte("Test Value")),
		bifurcate.DefaultSourceOptions(), []bifurcate.Sink{archive, count})
	if err != nil {
		panic(err)
	}

	fmt.Printf("archived %q (%d bytes)\n", archived.String(), size)
	// Output: archived "Test Value" (10 bytes)
}
