package scheduler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xb0rn3/fastdl/internal/fetch"
	"github.com/0xb0rn3/fastdl/internal/scheduler"
	"github.com/0xb0rn3/fastdl/internal/utils"
)

func testConfig(t *testing.T) utils.Config {
	cfg := utils.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Connections = 2
	cfg.Timeout = 10 * time.Second
	cfg.MaxRetries = 1
	cfg.MaxConcurrent = 2
	return cfg
}

// gaugeMonitor records how many transfers hold an attached tracker at once.
type gaugeMonitor struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	done    int
}

func (g *gaugeMonitor) Attach(id, label string, tracker *fetch.Tracker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active++
	if g.active > g.maxSeen {
		g.maxSeen = g.active
	}
}

func (g *gaugeMonitor) Done(id string, outcome fetch.TransferOutcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
	g.done++
}

func Test_Run_BoundsConcurrentFiles(t *testing.T) {
	data := []byte("hello batch world")
	var inFlight, maxInFlight atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			return
		}
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			prev := maxInFlight.Load()
			if n <= prev || maxInFlight.CompareAndSwap(prev, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		w.Write(data)
	}))
	defer server.Close()

	cfg := testConfig(t)
	var requests []fetch.TransferRequest
	for i := 0; i < 5; i++ {
		requests = append(requests, fetch.NewTransferRequest(fmt.Sprintf("%s/file-%d.txt", server.URL, i), "", cfg.OutputDir))
	}

	monitor := &gaugeMonitor{}
	outcomes, succeeded := scheduler.Run(context.Background(), cfg, requests, monitor)

	require.Len(t, outcomes, 5)
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, monitor.done)
	assert.LessOrEqual(t, monitor.maxSeen, cfg.MaxConcurrent)
	assert.LessOrEqual(t, int(maxInFlight.Load()), cfg.MaxConcurrent)
	for i, outcome := range outcomes {
		assert.Equal(t, requests[i].URL, outcome.URL, "outcome order must match input order")
		assert.True(t, outcome.Success)
	}
}

func Test_Run_BadLocatorDoesNotAbortBatch(t *testing.T) {
	data := []byte("still fine")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			return
		}
		w.Write(data)
	}))
	defer server.Close()

	cfg := testConfig(t)
	requests := []fetch.TransferRequest{
		fetch.NewTransferRequest(server.URL+"/ok-1.txt", "", cfg.OutputDir),
		fetch.NewTransferRequest("http://127.0.0.1:1/unreachable.bin", "", cfg.OutputDir),
		fetch.NewTransferRequest(server.URL+"/ok-2.txt", "", cfg.OutputDir),
	}

	outcomes, succeeded := scheduler.Run(context.Background(), cfg, requests, nil)

	require.Len(t, outcomes, 3)
	assert.Equal(t, 2, succeeded)
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[1].Success)
	assert.Error(t, outcomes[1].Err)
	assert.True(t, outcomes[2].Success)
}

func Test_Run_CancelledContextAdmitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(t)
	requests := []fetch.TransferRequest{
		fetch.NewTransferRequest("http://example.invalid/a.bin", "", cfg.OutputDir),
		fetch.NewTransferRequest("http://example.invalid/b.bin", "", cfg.OutputDir),
	}

	outcomes, succeeded := scheduler.Run(ctx, cfg, requests, nil)

	require.Len(t, outcomes, 2)
	assert.Equal(t, 0, succeeded)
	for _, outcome := range outcomes {
		assert.True(t, outcome.Interrupted)
	}
}
