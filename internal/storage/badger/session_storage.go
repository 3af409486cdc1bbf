package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// SessionStorage implements the SessionStorage interface for Badger
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SessionStorage) SaveSession(ctx context.Context, session *models.ScrapeSession) error {
	if session.ID == "" {
		session.ID = common.NewSessionID()
	}
	if session.CompletedAt.IsZero() {
		session.CompletedAt = time.Now()
	}

	if err := s.db.Store().Upsert(session.ID, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStorage) GetSession(ctx context.Context, id string) (*models.ScrapeSession, error) {
	var session models.ScrapeSession
	if err := s.db.Store().Get(id, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("session not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// ReadRecentSessions returns sessions completed at or after since, oldest
// first, so telemetry warm-start replays them in order.
func (s *SessionStorage) ReadRecentSessions(ctx context.Context, since time.Time) ([]*models.ScrapeSession, error) {
	var sessions []models.ScrapeSession
	query := badgerhold.Where("CompletedAt").Ge(since).SortBy("CompletedAt")
	if err := s.db.Store().Find(&sessions, query); err != nil {
		return nil, fmt.Errorf("failed to read recent sessions: %w", err)
	}

	result := make([]*models.ScrapeSession, len(sessions))
	for i := range sessions {
		result[i] = &sessions[i]
	}
	return result, nil
}

// ListTopBoards aggregates session outcomes per board since the cutoff and
// returns the boards with the most jobs scraped.
func (s *SessionStorage) ListTopBoards(ctx context.Context, since time.Time, limit int) ([]models.BoardPerformance, error) {
	sessions, err := s.ReadRecentSessions(ctx, since)
	if err != nil {
		return nil, err
	}

	byBoard := make(map[string]*models.BoardPerformance)
	for _, session := range sessions {
		perf, ok := byBoard[session.BoardID]
		if !ok {
			perf = &models.BoardPerformance{
				BoardID:   session.BoardID,
				BoardName: session.BoardName,
			}
			byBoard[session.BoardID] = perf
		}
		perf.Sessions++
		perf.JobsScraped += session.JobsUnique
		if session.Status == models.ResultSuccess || session.Status == models.ResultPartial {
			// SuccessRate carries the running success count until the final pass
			perf.SuccessRate++
		}
	}

	out := make([]models.BoardPerformance, 0, len(byBoard))
	for _, perf := range byBoard {
		if perf.Sessions > 0 {
			perf.SuccessRate /= float64(perf.Sessions)
		}
		out = append(out, *perf)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].JobsScraped > out[j].JobsScraped
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SessionStorage) CountSessions(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.ScrapeSession{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(count), nil
}
