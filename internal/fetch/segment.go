package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0xb0rn3/fastdl/internal/utils"
)

// downloadSegment transfers one byte range into dst at the segment's
// offset, retrying transient failures up to maxRetries attempts with a
// fixed backoff. Attempts after the first resume from the bytes already
// written, so the tracker only ever counts forward. All errors are
// converted to the boolean result; nothing propagates.
func downloadSegment(ctx context.Context, client *http.Client, userAgent string, rawURL string, seg Segment, dst io.WriterAt, tracker *Tracker, maxRetries int) bool {
	log := utils.GetLogger("segment").With().Int("segment", seg.Index).Logger()
	var written int64
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				log.Debug().Msg("Segment abandoned during backoff")
				return false
			case <-time.After(utils.RetryBackoff):
			}
		}
		n, err := fetchSegmentRange(ctx, client, userAgent, rawURL, seg, dst, tracker, written)
		written += n
		if err == nil && written == seg.Length() {
			tracker.SegmentDone()
			log.Debug().Int64("bytes", written).Msg("Segment download completed")
			return true
		}
		if err == nil {
			err = fmt.Errorf("short segment body: got %d of %d bytes", written, seg.Length())
		}
		if ctx.Err() != nil {
			log.Debug().Err(err).Msg("Segment abandoned")
			return false
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("maxRetries", maxRetries).Msg("Segment attempt failed")
	}
	log.Warn().Int("maxRetries", maxRetries).Msg("Segment failed after all attempts")
	return false
}

// fetchSegmentRange performs one ranged request for the unwritten tail of
// the segment and returns how many new bytes landed in the file. Both 206
// and 200 responses are accepted; the body is capped at the segment's
// remaining length so a full-content response cannot write past the range.
func fetchSegmentRange(ctx context.Context, client *http.Client, userAgent string, rawURL string, seg Segment, dst io.WriterAt, tracker *Tracker, written int64) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", seg.Start+written, seg.End))
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Connection", "keep-alive")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	remaining := seg.Length() - written
	body := io.LimitReader(resp.Body, remaining)
	buffer := make([]byte, utils.SegmentBufferSize)
	var copied int64
	for {
		bytesRead, err := body.Read(buffer)
		if bytesRead > 0 {
			if _, writeErr := dst.WriteAt(buffer[:bytesRead], seg.Start+written+copied); writeErr != nil {
				return copied, writeErr
			}
			copied += int64(bytesRead)
			tracker.Add(int64(bytesRead))
		}
		if err != nil {
			if err == io.EOF {
				return copied, nil
			}
			return copied, err
		}
	}
}
