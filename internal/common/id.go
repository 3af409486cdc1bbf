package common

import (
	"github.com/google/uuid"
)

// NewTaskID generates a unique scrape task ID with the "task_" prefix
func NewTaskID() string {
	return "task_" + uuid.New().String()
}

// NewBoardID generates a unique job board ID with the "board_" prefix
func NewBoardID() string {
	return "board_" + uuid.New().String()
}

// NewSessionID generates a unique scrape session ID with the "session_" prefix
func NewSessionID() string {
	return "session_" + uuid.New().String()
}

// NewAlertID generates a unique alert ID with the "alert_" prefix
func NewAlertID() string {
	return "alert_" + uuid.New().String()
}

// NewJobID generates a unique raw job record ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}
