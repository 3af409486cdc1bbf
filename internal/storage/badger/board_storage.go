package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// BoardStorage implements the BoardStorage interface for Badger
type BoardStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewBoardStorage creates a new BoardStorage instance
func NewBoardStorage(db *BadgerDB, logger arbor.ILogger) interfaces.BoardStorage {
	return &BoardStorage{
		db:     db,
		logger: logger,
	}
}

func (s *BoardStorage) UpsertBoard(ctx context.Context, board *models.JobBoard) error {
	if board.ID == "" {
		return fmt.Errorf("board ID is required")
	}

	now := time.Now()
	if board.CreatedAt.IsZero() {
		board.CreatedAt = now
	}
	board.UpdatedAt = now

	if err := s.db.Store().Upsert(board.ID, board); err != nil {
		return fmt.Errorf("failed to save board: %w", err)
	}
	return nil
}

func (s *BoardStorage) GetBoard(ctx context.Context, id string) (*models.JobBoard, error) {
	var board models.JobBoard
	if err := s.db.Store().Get(id, &board); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("board not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return &board, nil
}

func (s *BoardStorage) ListBoards(ctx context.Context, filter interfaces.BoardFilter) ([]*models.JobBoard, error) {
	query := badgerhold.Where("ID").Ne("")

	if filter.Active != nil {
		query = query.And("Active").Eq(*filter.Active)
	}
	if filter.Engine != "" {
		query = query.And("Engine").Eq(filter.Engine)
	}
	if filter.Region != "" {
		query = query.And("Region").Eq(filter.Region)
	}
	if filter.Category != "" {
		query = query.And("Category").Eq(filter.Category)
	}
	query = query.SortBy("Name")

	var boards []models.JobBoard
	if err := s.db.Store().Find(&boards, query); err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}

	result := make([]*models.JobBoard, len(boards))
	for i := range boards {
		result[i] = &boards[i]
	}
	return result, nil
}

func (s *BoardStorage) DeleteBoard(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.JobBoard{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete board: %w", err)
	}
	return nil
}

// UpdateBoardMetrics overwrites the rolling performance fields after a
// telemetry flush.
func (s *BoardStorage) UpdateBoardMetrics(ctx context.Context, id string, successRate, avgResponseTime float64) error {
	board, err := s.GetBoard(ctx, id)
	if err != nil {
		return err
	}

	board.SuccessRate = successRate
	board.AvgResponseTime = avgResponseTime
	return s.UpsertBoard(ctx, board)
}

// UpdateBoardAnalysis applies an advisor analysis to the board record.
// Fallback analyses update nothing; they carry no durable signal.
func (s *BoardStorage) UpdateBoardAnalysis(ctx context.Context, id string, analysis *models.BoardAnalysis) error {
	if analysis == nil || analysis.Fallback {
		return nil
	}

	board, err := s.GetBoard(ctx, id)
	if err != nil {
		return err
	}

	if board.Engine == models.EngineAuto || board.Engine == "" {
		board.Engine = analysis.RecommendedEngine
	}
	if len(analysis.Selectors) > 0 {
		board.Selectors = board.Selectors.Merge(analysis.Selectors)
	}
	board.RequiresJS = board.RequiresJS || analysis.RequiresJS
	board.HasAntiBot = board.HasAntiBot || len(analysis.AntiBotMeasures) > 0
	analyzedAt := analysis.AnalyzedAt
	board.LastAnalyzedAt = &analyzedAt
	board.AnalysisConfidence = analysis.Confidence

	return s.UpsertBoard(ctx, board)
}

func (s *BoardStorage) CountBoards(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.JobBoard{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count boards: %w", err)
	}
	return int(count), nil
}
