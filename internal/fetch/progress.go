package fetch

import (
	"sync/atomic"
	"time"
)

// Tracker holds live transfer counters for one request. Segment and stream
// transfers are the only writers and only ever add; everything else reads
// through Snapshot. A single Tracker is owned by one orchestration and must
// not be reused.
type Tracker struct {
	totalSize    atomic.Int64
	transferred  atomic.Int64
	segmentsDone atomic.Int32
	startNanos   atomic.Int64
}

func NewTracker() *Tracker {
	t := &Tracker{}
	t.startNanos.Store(time.Now().UnixNano())
	return t
}

// Begin records the probed total size and restarts the clock. Called once
// by the orchestrator before any bytes move.
func (t *Tracker) Begin(totalSize int64) {
	t.totalSize.Store(totalSize)
	t.startNanos.Store(time.Now().UnixNano())
}

func (t *Tracker) Add(n int64) {
	t.transferred.Add(n)
}

func (t *Tracker) SegmentDone() {
	t.segmentsDone.Add(1)
}

func (t *Tracker) Transferred() int64 {
	return t.transferred.Load()
}

// Snapshot is a consistent point-in-time view with derived values.
type Snapshot struct {
	TotalSize    int64
	Transferred  int64
	SegmentsDone int
	Elapsed      time.Duration
	Speed        float64 // bytes per second
	Percent      float64 // 0 when total size is unknown
}

func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		TotalSize:    t.totalSize.Load(),
		Transferred:  t.transferred.Load(),
		SegmentsDone: int(t.segmentsDone.Load()),
		Elapsed:      time.Since(time.Unix(0, t.startNanos.Load())),
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.Speed = float64(s.Transferred) / secs
	}
	if s.TotalSize > 0 {
		s.Percent = float64(s.Transferred) / float64(s.TotalSize) * 100
	}
	return s
}
