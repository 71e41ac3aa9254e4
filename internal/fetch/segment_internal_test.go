package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xb0rn3/fastdl/internal/utils"
)

func presizedFile(t *testing.T, size int64) *os.File {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "out.bin"), os.O_RDWR|os.O_CREATE, 0644)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	t.Cleanup(func() { f.Close() })
	return f
}

func Test_downloadSegment_RetriesThenSucceeds(t *testing.T) {
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i % 253)
	}
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		parts := strings.Split(strings.TrimPrefix(r.Header.Get("Range"), "bytes="), "-")
		start, _ := strconv.ParseInt(parts[0], 10, 64)
		end, _ := strconv.ParseInt(parts[1], 10, 64)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
	defer server.Close()

	seg := Segment{Index: 0, Start: 0, End: int64(len(data)) - 1}
	f := presizedFile(t, int64(len(data)))
	tracker := NewTracker()
	tracker.Begin(int64(len(data)))

	ok := downloadSegment(context.Background(), utils.NewHTTPClient(10*time.Second), utils.ToolUserAgent, server.URL, seg, f, tracker, 3)
	require.True(t, ok)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, int64(len(data)), tracker.Transferred())

	written := make([]byte, len(data))
	_, err := f.ReadAt(written, 0)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, written))
}

func Test_downloadSegment_ExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer server.Close()

	seg := Segment{Index: 0, Start: 0, End: 1023}
	f := presizedFile(t, 1024)
	tracker := NewTracker()
	tracker.Begin(1024)

	ok := downloadSegment(context.Background(), utils.NewHTTPClient(10*time.Second), utils.ToolUserAgent, server.URL, seg, f, tracker, 3)
	assert.False(t, ok)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, int64(0), tracker.Transferred())
}

func Test_downloadSegment_WritesAtOffset(t *testing.T) {
	data := []byte("0123456789abcdef")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.Header.Get("Range"), "bytes="), "-")
		start, _ := strconv.ParseInt(parts[0], 10, 64)
		end, _ := strconv.ParseInt(parts[1], 10, 64)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
	defer server.Close()

	seg := Segment{Index: 1, Start: 8, End: 15}
	f := presizedFile(t, int64(len(data)))
	tracker := NewTracker()
	tracker.Begin(int64(len(data)))

	ok := downloadSegment(context.Background(), utils.NewHTTPClient(10*time.Second), utils.ToolUserAgent, server.URL, seg, f, tracker, 1)
	require.True(t, ok)

	written := make([]byte, 8)
	_, err := f.ReadAt(written, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("89abcdef"), written)
}
