package pipeline

import (
	"runtime"
	"time"
)

// Stats describes one run. The generator owns it while the run is active;
// callers only ever see copies.
type Stats struct {
	StartTime          time.Time     `json:"startTime"`
	EndTime            time.Time     `json:"endTime,omitzero"`
	Duration           time.Duration `json:"duration"`
	SectionsProcessed  int           `json:"sectionsProcessed"`
	CharactersWritten  int           `json:"charactersWritten"`
	PagesGenerated     int           `json:"pagesGenerated"`
	AnimationsRendered int           `json:"animationsRendered"`
	MemoryUsed         uint64        `json:"memoryUsed"`
	StreamDuration     time.Duration `json:"streamDuration,omitempty"`
	Complete           bool          `json:"complete"`
}

func heapInUse() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

// finish stamps the end of the run. Memory is the heap growth since start,
// floored at zero when the collector ran in between.
func (s *Stats) finish(now time.Time, heapAtStart uint64, streamStart time.Time) {
	s.EndTime = now
	s.Duration = now.Sub(s.StartTime)
	if cur := heapInUse(); cur > heapAtStart {
		s.MemoryUsed = cur - heapAtStart
	}
	if !streamStart.IsZero() {
		s.StreamDuration = now.Sub(streamStart)
	}
}
