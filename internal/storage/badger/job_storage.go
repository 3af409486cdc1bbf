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

// jobRecord wraps an enriched job for storage. The key is derived from
// (board_id, normalized url) so re-saving the same posting updates in place
// instead of inserting a second copy.
type jobRecord struct {
	Key     string `badgerhold:"key"`
	BoardID string `badgerhold:"index"`
	URL     string

	Job     models.EnrichedJob
	SavedAt time.Time
}

func jobKey(boardID, url string) string {
	return boardID + "|" + common.NormalizeURL(url)
}

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.EnrichedJob) error {
	if job.Job.URL == "" {
		return fmt.Errorf("job URL is required")
	}
	if job.Job.BoardID == "" {
		return fmt.Errorf("job board ID is required")
	}

	record := jobRecord{
		Key:     jobKey(job.Job.BoardID, job.Job.URL),
		BoardID: job.Job.BoardID,
		URL:     common.NormalizeURL(job.Job.URL),
		Job:     *job,
		SavedAt: time.Now(),
	}

	if err := s.db.Store().Upsert(record.Key, &record); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) SaveJobs(ctx context.Context, jobs []*models.EnrichedJob) error {
	for _, job := range jobs {
		if err := s.SaveJob(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *JobStorage) GetJobByURL(ctx context.Context, boardID, url string) (*models.EnrichedJob, error) {
	var record jobRecord
	if err := s.db.Store().Get(jobKey(boardID, url), &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", url)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &record.Job, nil
}

func (s *JobStorage) ListJobsByBoard(ctx context.Context, boardID string, limit int) ([]*models.EnrichedJob, error) {
	query := badgerhold.Where("BoardID").Eq(boardID).SortBy("SavedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []jobRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.EnrichedJob, len(records))
	for i := range records {
		result[i] = &records[i].Job
	}
	return result, nil
}

func (s *JobStorage) CountJobs(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&jobRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}
