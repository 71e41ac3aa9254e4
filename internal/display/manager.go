package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/0xb0rn3/fastdl/internal/fetch"
	"github.com/0xb0rn3/fastdl/internal/utils"
)

type transferLine struct {
	label     string
	tracker   *fetch.Tracker
	outcome   *fetch.TransferOutcome
	lastBytes int64
	lastTime  time.Time
}

// Manager renders a multi-line live view of all transfers in a batch. It
// only ever reads progress snapshots on its own ticker, so it can never
// block or slow down a transfer. Implements scheduler.Monitor.
type Manager struct {
	mu       sync.RWMutex
	lines    map[string]*transferLine
	order    []string
	out      io.Writer
	doneCh   chan struct{}
	wg       sync.WaitGroup
	numLines int
}

func NewManager() *Manager {
	return &Manager{
		lines:  make(map[string]*transferLine),
		out:    os.Stdout,
		doneCh: make(chan struct{}),
	}
}

func (m *Manager) Attach(id string, label string, tracker *fetch.Tracker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[id] = &transferLine{label: label, tracker: tracker, lastTime: time.Now()}
	m.order = append(m.order, id)
}

func (m *Manager) Done(id string, outcome fetch.TransferOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if line, ok := m.lines[id]; ok {
		line.outcome = &outcome
	}
}

func (m *Manager) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(utils.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.render()
			case <-m.doneCh:
				m.render() // one final consistent read
				return
			}
		}
	}()
}

func (m *Manager) Stop() {
	close(m.doneCh)
	m.wg.Wait()
}

func (m *Manager) render() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.numLines != 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	for _, id := range m.order {
		line := m.lines[id]
		if line.outcome != nil {
			m.renderFinished(line)
		} else {
			m.renderActive(line)
		}
	}
	m.numLines = len(m.order)
}

func (m *Manager) renderActive(line *transferLine) {
	snap := line.tracker.Snapshot()
	now := time.Now()
	speed := float64(0)
	if timeDiff := now.Sub(line.lastTime).Seconds(); timeDiff > 0 {
		speed = float64(snap.Transferred-line.lastBytes) / timeDiff
		line.lastTime = now
		line.lastBytes = snap.Transferred
	}
	name := shortLabel(line.label)
	if snap.TotalSize > 0 {
		fmt.Fprintf(m.out, "%s\n", pendingStyle.Render(fmt.Sprintf("%s %s: %s %5.1f%% %s/%s %s",
			styleSymbols["pending"], name, progressBar(snap.Percent), snap.Percent,
			utils.FormatBytes(uint64(snap.Transferred)), utils.FormatBytes(uint64(snap.TotalSize)),
			utils.FormatSpeed(int64(speed), 1))))
	} else {
		fmt.Fprintf(m.out, "%s\n", pendingStyle.Render(fmt.Sprintf("%s %s: %s %s",
			styleSymbols["pending"], name,
			utils.FormatBytes(uint64(snap.Transferred)), utils.FormatSpeed(int64(speed), 1))))
	}
}

func (m *Manager) renderFinished(line *transferLine) {
	outcome := line.outcome
	name := shortLabel(line.label)
	switch {
	case outcome.Success:
		fmt.Fprintf(m.out, "%s\n", successStyle.Render(fmt.Sprintf("%s %s: %s in %.1fs",
			styleSymbols["pass"], name, utils.FormatBytes(uint64(outcome.Bytes)), outcome.Elapsed.Seconds())))
	case outcome.Interrupted:
		fmt.Fprintf(m.out, "%s\n", warningStyle.Render(fmt.Sprintf("%s %s: interrupted",
			styleSymbols["warning"], name)))
	default:
		fmt.Fprintf(m.out, "%s\n", errorStyle.Render(fmt.Sprintf("%s %s: %v",
			styleSymbols["fail"], name, outcome.Err)))
	}
}

// Summary prints the aggregate line after the batch finishes.
func (m *Manager) Summary(outcomes []fetch.TransferOutcome, succeeded int) {
	var totalBytes int64
	var longest time.Duration
	for _, outcome := range outcomes {
		totalBytes += outcome.Bytes
		if outcome.Elapsed > longest {
			longest = outcome.Elapsed
		}
	}
	fmt.Fprintln(m.out)
	summary := fmt.Sprintf("Completed %d/%d | Total Data: %s | Time Elapsed: %.1fs",
		succeeded, len(outcomes), utils.FormatBytes(uint64(totalBytes)), longest.Seconds())
	fmt.Fprintf(m.out, "%s\n", detailStyle.Render(summary))
}

func progressBar(percent float64) string {
	const width = 30
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	bar := "[" + strings.Repeat("=", filled)
	if filled < width {
		bar += ">" + strings.Repeat(" ", width-filled-1)
	}
	return bar + "]"
}

func shortLabel(label string) string {
	if len(label) > 40 {
		return "..." + label[len(label)-37:]
	}
	return label
}
