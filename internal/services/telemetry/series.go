package telemetry

import (
	"sync"
	"time"

	"github.com/ternarybob/venor/internal/models"
)

// ringSeries is a fixed-capacity ring buffer of metric points. When full,
// appends overwrite the oldest point, so memory stays bounded regardless of
// uptime.
type ringSeries struct {
	mu     sync.RWMutex
	points []models.MetricPoint
	head   int
	count  int
}

func newRingSeries(capacity int) *ringSeries {
	if capacity <= 0 {
		capacity = 1000
	}
	return &ringSeries{
		points: make([]models.MetricPoint, capacity),
	}
}

func (s *ringSeries) append(p models.MetricPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points[s.head] = p
	s.head = (s.head + 1) % len(s.points)
	if s.count < len(s.points) {
		s.count++
	}
}

// snapshot returns the stored points oldest first.
func (s *ringSeries) snapshot() []models.MetricPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MetricPoint, 0, s.count)
	start := s.head - s.count
	if start < 0 {
		start += len(s.points)
	}
	for i := 0; i < s.count; i++ {
		out = append(out, s.points[(start+i)%len(s.points)])
	}
	return out
}

// query filters the series by time range and tag subset.
func (s *ringSeries) query(from, to time.Time, tags map[string]string) []models.MetricPoint {
	var out []models.MetricPoint
	for _, p := range s.snapshot() {
		if !from.IsZero() && p.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && p.Timestamp.After(to) {
			continue
		}
		if !tagsMatch(p.Tags, tags) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// recent returns the newest n points carrying all the given tags.
func (s *ringSeries) recent(n int, tags map[string]string) []models.MetricPoint {
	all := s.snapshot()
	var out []models.MetricPoint
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		if tagsMatch(all[i].Tags, tags) {
			out = append(out, all[i])
		}
	}
	// Reverse back to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *ringSeries) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func tagsMatch(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// seriesStore holds one ring buffer per metric name.
type seriesStore struct {
	mu       sync.Mutex
	series   map[models.MetricName]*ringSeries
	capacity int
}

func newSeriesStore(capacity int) *seriesStore {
	return &seriesStore{
		series:   make(map[models.MetricName]*ringSeries),
		capacity: capacity,
	}
}

func (st *seriesStore) get(name models.MetricName) *ringSeries {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.series[name]
	if !ok {
		s = newRingSeries(st.capacity)
		st.series[name] = s
	}
	return s
}
