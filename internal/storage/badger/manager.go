package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	board   interfaces.BoardStorage
	session interfaces.SessionStorage
	job     interfaces.JobStorage
	metric  interfaces.MetricStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		board:   NewBoardStorage(db, logger),
		session: NewSessionStorage(db, logger),
		job:     NewJobStorage(db, logger),
		metric:  NewMetricStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// BoardStorage returns the board catalog storage interface
func (m *Manager) BoardStorage() interfaces.BoardStorage {
	return m.board
}

// SessionStorage returns the scrape session storage interface
func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.session
}

// JobStorage returns the extracted job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// MetricStorage returns the alert and metric storage interface
func (m *Manager) MetricStorage() interfaces.MetricStorage {
	return m.metric
}

// DB returns the underlying database connection for maintenance jobs
func (m *Manager) DB() *BadgerDB {
	return m.db
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
