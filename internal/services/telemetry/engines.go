package telemetry

import (
	"sync"
	"time"

	"github.com/ternarybob/venor/internal/models"
)

// emaAlpha weights new samples in the exponential moving averages. Higher
// values make recent behavior dominate faster.
const emaAlpha = 0.2

// engineTracker maintains rolling per-engine performance records.
type engineTracker struct {
	mu    sync.Mutex
	stats map[models.EngineType]*models.EngineStats
}

func newEngineTracker() *engineTracker {
	return &engineTracker{
		stats: make(map[models.EngineType]*models.EngineStats),
	}
}

func (t *engineTracker) record(engine models.EngineType, success bool, duration time.Duration, jobsFound int, kind models.ErrorKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[engine]
	if !ok {
		s = &models.EngineStats{
			Engine:      engine,
			ErrorCounts: make(map[models.ErrorKind]int),
		}
		t.stats[engine] = s
	}

	s.TotalRequests++
	s.LastUsedAt = time.Now()
	s.JobsScraped += int64(jobsFound)

	outcome := 0.0
	if success {
		s.Successes++
		outcome = 1.0
	} else {
		s.Failures++
		if kind != "" {
			s.ErrorCounts[kind]++
		}
	}

	seconds := duration.Seconds()
	if s.TotalRequests == 1 {
		s.EMAResponseTime = seconds
		s.EMASuccessRate = outcome
		return
	}
	s.EMAResponseTime = emaAlpha*seconds + (1-emaAlpha)*s.EMAResponseTime
	s.EMASuccessRate = emaAlpha*outcome + (1-emaAlpha)*s.EMASuccessRate
}

// snapshot returns a deep copy of the tracked stats.
func (t *engineTracker) snapshot() map[models.EngineType]models.EngineStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[models.EngineType]models.EngineStats, len(t.stats))
	for engine, s := range t.stats {
		copied := *s
		copied.ErrorCounts = make(map[models.ErrorKind]int, len(s.ErrorCounts))
		for k, v := range s.ErrorCounts {
			copied.ErrorCounts[k] = v
		}
		out[engine] = copied
	}
	return out
}
