package fetch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0xb0rn3/fastdl/internal/utils"
)

// TransferRequest describes one resource to download. Immutable once
// created.
type TransferRequest struct {
	ID        string
	URL       string
	Filename  string // optional explicit name, wins over the probed one
	OutputDir string
}

func NewTransferRequest(rawURL, filename, outputDir string) TransferRequest {
	return TransferRequest{
		ID:        uuid.New().String(),
		URL:       rawURL,
		Filename:  filename,
		OutputDir: outputDir,
	}
}

// TransferOutcome is the terminal result for one request. Never mutated
// after creation.
type TransferOutcome struct {
	URL         string
	Success     bool
	Interrupted bool
	Path        string
	Bytes       int64
	Elapsed     time.Duration
	Err         error
}

// Orchestrator drives the full transfer of a single request: probe,
// allocate, segmented or streamed transfer, outcome. One Orchestrator is
// safe for concurrent use across requests.
type Orchestrator struct {
	cfg    utils.Config
	client *http.Client
	prober *Prober
}

func NewOrchestrator(cfg utils.Config) *Orchestrator {
	client := utils.NewHTTPClient(cfg.Timeout)
	return &Orchestrator{
		cfg:    cfg,
		client: client,
		prober: NewProber(client, cfg.UserAgent),
	}
}

// Transfer runs the request to completion. Every transport and IO failure
// is converted into the outcome; nothing propagates as an error past this
// boundary. On failure (including cancellation) the partial output file is
// removed.
func (o *Orchestrator) Transfer(ctx context.Context, req TransferRequest, tracker *Tracker) TransferOutcome {
	log := utils.GetLogger("transfer").With().Str("url", req.URL).Logger()
	meta := o.prober.Probe(ctx, req.URL)

	name := req.Filename
	if name == "" {
		name = meta.Filename
	}
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = o.cfg.OutputDir
	}
	outputPath := filepath.Join(outputDir, name)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		log.Error().Err(err).Str("path", outputPath).Msg("Failed to create output directory")
		return o.failure(req, tracker, outputPath, false, fmt.Errorf("error creating output directory: %w", err))
	}
	tracker.Begin(meta.Size)
	log.Debug().Str("path", outputPath).Int64("size", meta.Size).Bool("ranges", meta.AcceptRanges).Msg("Starting transfer")

	segmented := meta.AcceptRanges && meta.Size > o.cfg.SegmentThreshold()
	var err error
	if segmented {
		err = o.transferSegmented(ctx, req.URL, outputPath, meta.Size, tracker)
	} else {
		err = o.transferStreamed(ctx, req.URL, outputPath, tracker)
	}
	if ctx.Err() != nil {
		return o.failure(req, tracker, outputPath, true, ctx.Err())
	}
	if err != nil {
		return o.failure(req, tracker, outputPath, false, err)
	}

	snap := tracker.Snapshot()
	log.Info().Str("path", outputPath).Str("size", utils.FormatBytes(uint64(snap.Transferred))).
		Str("avgSpeed", utils.FormatSpeed(snap.Transferred, snap.Elapsed.Seconds())).Msg("Transfer completed")
	return TransferOutcome{
		URL:     req.URL,
		Success: true,
		Path:    outputPath,
		Bytes:   snap.Transferred,
		Elapsed: snap.Elapsed,
	}
}

// transferSegmented pre-sizes the output file and downloads all planned
// segments concurrently. Segments write at disjoint offsets of the shared
// handle, so ordering doesn't matter; pre-sizing must finish before any of
// them starts. Any failed segment fails the whole file.
func (o *Orchestrator) transferSegmented(ctx context.Context, rawURL, outputPath string, totalSize int64, tracker *Tracker) error {
	outFile, err := os.OpenFile(outputPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer outFile.Close()
	if err := preallocate(outFile, totalSize); err != nil {
		return fmt.Errorf("error pre-sizing output file: %w", err)
	}

	segments := PlanSegments(totalSize, o.cfg.Connections)
	results := make([]bool, len(segments))
	var wg sync.WaitGroup
	for i, seg := range segments {
		wg.Add(1)
		go func(i int, seg Segment) {
			defer wg.Done()
			results[i] = downloadSegment(ctx, o.client, o.cfg.UserAgent, rawURL, seg, outFile, tracker, o.cfg.MaxRetries)
		}(i, seg)
	}
	wg.Wait()

	var failed []int
	for i, ok := range results {
		if !ok {
			failed = append(failed, i)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("transfer incomplete: %d segments failed: %v", len(failed), failed)
	}
	return nil
}

func (o *Orchestrator) transferStreamed(ctx context.Context, rawURL, outputPath string, tracker *Tracker) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer outFile.Close()
	return downloadStream(ctx, o.client, o.cfg.UserAgent, rawURL, outFile, tracker)
}

func (o *Orchestrator) failure(req TransferRequest, tracker *Tracker, outputPath string, interrupted bool, err error) TransferOutcome {
	log := utils.GetLogger("transfer").With().Str("url", req.URL).Logger()
	if _, statErr := os.Stat(outputPath); statErr == nil {
		if rmErr := os.Remove(outputPath); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", outputPath).Msg("Failed to remove partial file")
		}
	}
	snap := tracker.Snapshot()
	if interrupted {
		log.Warn().Str("path", outputPath).Msg("Transfer interrupted")
	} else {
		log.Error().Err(err).Str("path", outputPath).Msg("Transfer failed")
	}
	return TransferOutcome{
		URL:         req.URL,
		Interrupted: interrupted,
		Path:        outputPath,
		Bytes:       snap.Transferred,
		Elapsed:     snap.Elapsed,
		Err:         err,
	}
}

// preallocate extends the file to its final length so concurrent segment
// writes at arbitrary offsets always land inside the file. Truncate gives
// a sparse file on common filesystems; writing the last byte is the
// fallback.
func preallocate(f *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	if err := f.Truncate(size); err == nil {
		return nil
	}
	_, err := f.WriteAt([]byte{0}, size-1)
	return err
}
