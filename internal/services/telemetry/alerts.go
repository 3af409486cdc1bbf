package telemetry

import (
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/models"
)

// alertManager raises, lists and resolves alerts. Re-raising the same
// (source, title) pair within the dedup window is suppressed so a flapping
// threshold produces one alert, not hundreds.
type alertManager struct {
	mu          sync.Mutex
	alerts      map[string]*models.Alert
	lastRaised  map[string]time.Time // keyed by source + "\x00" + title
	dedupWindow time.Duration
	onRaise     func(*models.Alert)
	now         func() time.Time
}

func newAlertManager(dedupWindow time.Duration, onRaise func(*models.Alert)) *alertManager {
	if dedupWindow <= 0 {
		dedupWindow = 5 * time.Minute
	}
	return &alertManager{
		alerts:      make(map[string]*models.Alert),
		lastRaised:  make(map[string]time.Time),
		dedupWindow: dedupWindow,
		onRaise:     onRaise,
		now:         time.Now,
	}
}

// raise creates an alert unless an identical one fired within the dedup
// window. Returns the alert, or nil when suppressed.
func (m *alertManager) raise(level models.AlertLevel, source, title, message string, tags map[string]string) *models.Alert {
	key := source + "\x00" + title

	m.mu.Lock()
	now := m.now()
	if last, ok := m.lastRaised[key]; ok && now.Sub(last) < m.dedupWindow {
		m.mu.Unlock()
		return nil
	}
	m.lastRaised[key] = now

	alert := &models.Alert{
		ID:        common.NewAlertID(),
		Level:     level,
		Title:     title,
		Message:   message,
		Source:    source,
		Tags:      tags,
		CreatedAt: now,
	}
	m.alerts[alert.ID] = alert
	m.mu.Unlock()

	if m.onRaise != nil {
		m.onRaise(alert)
	}
	return alert
}

// list returns alerts matching the filter, newest first.
func (m *alertManager) list(filter models.AlertFilter) []*models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Alert
	for _, alert := range m.alerts {
		if filter.Level != "" && alert.Level != filter.Level {
			continue
		}
		if filter.Resolved != nil && alert.Resolved() != *filter.Resolved {
			continue
		}
		if !filter.Since.IsZero() && alert.CreatedAt.Before(filter.Since) {
			continue
		}
		copied := *alert
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// resolve marks an alert resolved. Returns false when unknown or already
// resolved.
func (m *alertManager) resolve(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.alerts[id]
	if !ok || alert.Resolved() {
		return false
	}
	now := m.now()
	alert.ResolvedAt = &now
	return true
}

// activeCount returns the number of unresolved alerts.
func (m *alertManager) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, alert := range m.alerts {
		if !alert.Resolved() {
			n++
		}
	}
	return n
}

// prune drops resolved alerts older than the cutoff. Returns the number
// removed.
func (m *alertManager) prune(olderThan time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, alert := range m.alerts {
		if alert.Resolved() && alert.CreatedAt.Before(olderThan) {
			delete(m.alerts, id)
			removed++
		}
	}
	return removed
}
