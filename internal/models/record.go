package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskRecord is the journal entry written once a task has ended.
type TaskRecord struct {
	CreatedAt time.Time     `json:"created_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Type      TaskType      `json:"type"`
	Error     string        `json:"error,omitempty"`
	Address   string        `json:"address,omitempty"`
	Executing time.Duration `json:"executing"`
	ID        uuid.UUID     `json:"id"`
	Priority  Priority      `json:"priority"`
	State     TaskState     `json:"state"`
	Attempt   int           `json:"attempt"`
}
