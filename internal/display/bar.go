package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/0xb0rn3/fastdl/internal/fetch"
	"github.com/0xb0rn3/fastdl/internal/utils"
)

// SingleBar renders one transfer with a progress bar, for single-URL
// invocations where the multi-line batch view is overkill. Implements
// scheduler.Monitor.
type SingleBar struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	tracker *fetch.Tracker
	doneCh  chan struct{}
	wg      sync.WaitGroup
}

func NewSingleBar() *SingleBar {
	return &SingleBar{doneCh: make(chan struct{})}
}

func (s *SingleBar) Attach(id string, label string, tracker *fetch.Tracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker = tracker
	s.bar = progressbar.DefaultBytes(-1, shortLabel(label))
}

func (s *SingleBar) Done(id string, outcome fetch.TransferOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		s.bar.Finish()
		fmt.Println()
	}
	if outcome.Success {
		PrintSuccess(fmt.Sprintf("%s %s downloaded (%s in %.1fs, avg %s)", styleSymbols["pass"],
			outcome.Path, utils.FormatBytes(uint64(outcome.Bytes)), outcome.Elapsed.Seconds(),
			utils.FormatSpeed(outcome.Bytes, outcome.Elapsed.Seconds())))
	} else if outcome.Interrupted {
		PrintWarning(fmt.Sprintf("%s %s interrupted", styleSymbols["warning"], outcome.URL))
	} else {
		PrintError(fmt.Sprintf("%s %s failed: %v", styleSymbols["fail"], outcome.URL, outcome.Err))
	}
}

func (s *SingleBar) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(utils.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.refresh()
			case <-s.doneCh:
				return
			}
		}
	}()
}

func (s *SingleBar) Stop() {
	close(s.doneCh)
	s.wg.Wait()
}

func (s *SingleBar) refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar == nil || s.tracker == nil {
		return
	}
	snap := s.tracker.Snapshot()
	if snap.TotalSize > 0 && s.bar.GetMax64() != snap.TotalSize {
		s.bar.ChangeMax64(snap.TotalSize)
	}
	s.bar.Set64(snap.Transferred)
}
