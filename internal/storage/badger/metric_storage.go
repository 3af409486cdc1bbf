package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// MetricStorage implements the MetricStorage interface for Badger
type MetricStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMetricStorage creates a new MetricStorage instance
func NewMetricStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MetricStorage {
	return &MetricStorage{
		db:     db,
		logger: logger,
	}
}

func (s *MetricStorage) SaveAlert(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		alert.ID = common.NewAlertID()
	}
	if err := s.db.Store().Upsert(alert.ID, alert); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

func (s *MetricStorage) UpdateAlert(ctx context.Context, alert *models.Alert) error {
	return s.SaveAlert(ctx, alert)
}

func (s *MetricStorage) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, error) {
	query := badgerhold.Where("ID").Ne("")

	if filter.Level != "" {
		query = query.And("Level").Eq(filter.Level)
	}
	if !filter.Since.IsZero() {
		query = query.And("CreatedAt").Ge(filter.Since)
	}
	query = query.SortBy("CreatedAt").Reverse()
	if filter.Limit > 0 && filter.Resolved == nil {
		query = query.Limit(filter.Limit)
	}

	var alerts []models.Alert
	if err := s.db.Store().Find(&alerts, query); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	result := make([]*models.Alert, 0, len(alerts))
	for i := range alerts {
		if filter.Resolved != nil && alerts[i].Resolved() != *filter.Resolved {
			continue
		}
		result = append(result, &alerts[i])
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// PruneAlerts removes resolved alerts created before the cutoff.
func (s *MetricStorage) PruneAlerts(ctx context.Context, olderThan time.Time) (int, error) {
	resolved := true
	alerts, err := s.ListAlerts(ctx, models.AlertFilter{Resolved: &resolved})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, alert := range alerts {
		if alert.CreatedAt.Before(olderThan) {
			if err := s.db.Store().Delete(alert.ID, &models.Alert{}); err != nil && err != badgerhold.ErrNotFound {
				return removed, fmt.Errorf("failed to prune alert: %w", err)
			}
			removed++
		}
	}
	return removed, nil
}
