package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/0xb0rn3/fastdl/internal/utils"
)

// downloadStream transfers the whole resource sequentially. It is the
// fallback for servers without range support and for small files. No
// retry: any failure is terminal for the locator.
func downloadStream(ctx context.Context, client *http.Client, userAgent string, rawURL string, dst io.Writer, tracker *Tracker) error {
	log := utils.GetLogger("stream")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("error creating GET request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Connection", "keep-alive")
	log.Debug().Str("url", rawURL).Msg("Starting stream transfer")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error executing GET request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	buffer := make([]byte, utils.StreamChunkSize)
	var total int64
	for {
		bytesRead, err := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if _, writeErr := dst.Write(buffer[:bytesRead]); writeErr != nil {
				return fmt.Errorf("error writing to output file: %w", writeErr)
			}
			total += int64(bytesRead)
			tracker.Add(int64(bytesRead))
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("error reading response body: %w", err)
		}
	}
	log.Debug().Int64("bytes", total).Msg("Stream transfer completed")
	return nil
}
