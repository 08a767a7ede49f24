package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"bifurcate/common"
	"bifurcate/internal/bifurcate"
	"bifurcate/internal/stream"
	"bifurcate/middleware"

	"github.com/google/uuid"
	"github.com/guregu/null/v5"
	"go.uber.org/zap"
)

// Config bounds what the ingest branches capture.
type Config struct {
	// PreviewBytes caps the stored preview artifact.
	PreviewBytes int

	// MaxArchiveBytes caps the archived payload; bytes past the cap still
	// count toward size and checksum, they just are not stored.
	MaxArchiveBytes int
}

// DefaultConfig returns the canonical ingest limits: 256B previews, 8MB
// archives.
func DefaultConfig() Config {
	return Config{
		PreviewBytes:    256,
		MaxArchiveBytes: 8 * 1024 * 1024,
	}
}

// Service fans incoming byte streams out to the artifact branches and
// persists the outcome.
type Service struct {
	repo     *Repository
	cfg      Config
	log      *zap.Logger
	streamer stream.Streamer[common.TransferSummary]
}

// NewService creates a new Service
func NewService(repo *Repository, log *zap.Logger, cfg Config) *Service {
	if cfg.PreviewBytes <= 0 {
		cfg.PreviewBytes = DefaultConfig().PreviewBytes
	}
	if cfg.MaxArchiveBytes <= 0 {
		cfg.MaxArchiveBytes = DefaultConfig().MaxArchiveBytes
	}
	return &Service{
		repo:     repo,
		cfg:      cfg,
		log:      log,
		streamer: stream.NewDefaultStreamer[common.TransferSummary](),
	}
}

// artifact is what each ingest branch hands back: the bytes it kept and the
// bytes it saw.
type artifact struct {
	data []byte
	size int64
}

// Ingest reads body exactly once and fans it out to three branches: sha256
// digest, bounded preview, bounded archive. The stored transfer carries all
// three artifacts; a failed bifurcation is recorded with its reason before
// the error is returned.
func (s *Service) Ingest(ctx context.Context, source string, body io.Reader) (*common.Transfer, error) {
	// The HTTP server owns the request body; leave it open.
	src := bifurcate.NewReaderSource(body, true)

	digest := bifurcate.DefaultBranch[artifact]()
	digest.Consumer = func(ctx context.Context, r *bifurcate.Reader) (artifact, error) {
		h := sha256.New()
		n, err := io.Copy(h, r)
		if err != nil {
			return artifact{}, err
		}
		return artifact{data: h.Sum(nil), size: n}, nil
	}

	preview := bifurcate.DefaultBranch[artifact]()
	preview.MaxTotalBytes = s.cfg.PreviewBytes
	preview.Consumer = readArtifact

	archive := bifurcate.DefaultBranch[artifact]()
	archive.MaxTotalBytes = s.cfg.MaxArchiveBytes
	archive.Consumer = readArtifact

	results, err := bifurcate.Collect(ctx, src, bifurcate.DefaultSourceOptions(),
		[]bifurcate.Branch[artifact]{digest, preview, archive})
	if err != nil {
		s.recordFailure(source, err)
		return nil, fmt.Errorf("ingest bifurcation failed: %w", err)
	}

	t := &common.Transfer{
		ID:          uuid.New().String(),
		Source:      source,
		SizeBytes:   results[0].V.size,
		Checksum:    null.StringFrom(hex.EncodeToString(results[0].V.data)),
		Preview:     results[1].V.data,
		Archive:     results[2].V.data,
		Status:      common.TransferStored,
		CompletedAt: null.TimeFrom(time.Now()),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.log.Info("transfer stored",
		zap.String("id", t.ID),
		zap.String("source", source),
		zap.Int64("size_bytes", t.SizeBytes),
		zap.String("checksum", t.Checksum.String),
	)
	return t, nil
}

func readArtifact(ctx context.Context, r *bifurcate.Reader) (artifact, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return artifact{}, err
	}
	return artifact{data: b, size: int64(len(b))}, nil
}

// Echo bifurcates body into a sha256 digest branch, an archive branch and an
// echo branch that streams the bytes straight back to the client, chunk by
// pooled chunk. The transfer row is persisted before the chunk channel
// closes.
func (s *Service) Echo(ctx context.Context, source string, body io.Reader) middleware.StreamResponse {
	chunkChan := make(chan middleware.StreamChunk, 4)

	go func() {
		defer close(chunkChan)

		src := bifurcate.NewReaderSource(body, true)

		var archived artifact
		archiveSink := bifurcate.DefaultSink()
		archiveSink.MaxTotalBytes = s.cfg.MaxArchiveBytes
		archiveSink.Consumer = func(ctx context.Context, r *bifurcate.Reader) error {
			a, err := readArtifact(ctx, r)
			archived = a
			return err
		}

		var sum []byte
		var size int64
		digestSink := bifurcate.DefaultSink()
		digestSink.Consumer = func(ctx context.Context, r *bifurcate.Reader) error {
			h := sha256.New()
			n, err := io.Copy(h, r)
			if err != nil {
				return err
			}
			sum, size = h.Sum(nil), n
			return nil
		}

		echoSink := bifurcate.DefaultSink()
		echoSink.Consumer = func(ctx context.Context, r *bifurcate.Reader) error {
			for {
				buf := middleware.GetChunkBuffer()
				b := (*buf)[:cap(*buf)]
				n, err := r.Read(b)
				if n > 0 {
					*buf = b[:n]
					select {
					case chunkChan <- middleware.StreamChunk{Data: buf}:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
			}
		}

		err := bifurcate.Run(ctx, src, bifurcate.DefaultSourceOptions(),
			[]bifurcate.Sink{digestSink, archiveSink, echoSink})
		if err != nil {
			s.recordFailure(source, err)
			chunkChan <- middleware.StreamChunk{Error: fmt.Errorf("echo bifurcation failed: %w", err)}
			return
		}

		t := &common.Transfer{
			ID:          uuid.New().String(),
			Source:      source,
			SizeBytes:   size,
			Checksum:    null.StringFrom(hex.EncodeToString(sum)),
			Archive:     archived.data,
			Status:      common.TransferStored,
			CompletedAt: null.TimeFrom(time.Now()),
		}
		if err := s.repo.Create(context.WithoutCancel(ctx), t); err != nil {
			s.log.Error("echo transfer not persisted", zap.Error(err))
			return
		}

		s.log.Info("transfer echoed",
			zap.String("id", t.ID),
			zap.String("source", source),
			zap.Int64("size_bytes", size),
		)
	}()

	return middleware.StreamResponse{
		TotalCount:  -1,
		ContentType: "application/octet-stream",
		ChunkChan:   chunkChan,
	}
}

// StreamTransfers streams the stored transfer records as a chunked JSON
// array, newest first.
func (s *Service) StreamTransfers(ctx context.Context) middleware.StreamResponse {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return middleware.StreamResponse{
			Code:  500,
			Error: fmt.Errorf("failed to count transfers: %w", err),
		}
	}

	rows, err := s.repo.StreamSummaries(ctx)
	if err != nil {
		return middleware.StreamResponse{
			Code:  500,
			Error: err,
		}
	}

	resp := s.streamer.Stream(ctx, stream.SQLFetcher(rows, ScanSummary),
		stream.PassThroughTransformer[common.TransferSummary]())
	resp.TotalCount = total
	return resp
}

// Get loads one transfer.
func (s *Service) Get(ctx context.Context, id string) (*common.Transfer, error) {
	return s.repo.Get(ctx, id)
}

// recordFailure best-effort persists a failed transfer so the listing shows
// what went wrong. The original error stays the caller's problem.
func (s *Service) recordFailure(source string, cause error) {
	t := &common.Transfer{
		ID:            uuid.New().String(),
		Source:        source,
		Status:        common.TransferFailed,
		FailureReason: null.StringFrom(cause.Error()),
	}
	if err := s.repo.Create(context.Background(), t); err != nil {
		s.log.Error("failed transfer not recorded", zap.Error(err), zap.NamedError("cause", cause))
		return
	}
	s.log.Warn("transfer failed",
		zap.String("id", t.ID),
		zap.String("source", source),
		zap.Error(cause),
	)
}
