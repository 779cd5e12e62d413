package models

import "time"

// ReadWriteType distinguishes the operation a ReadWriteEvent reports.
type ReadWriteType string

// const ...
const (
	ReadWriteTypeRead  ReadWriteType = "read"
	ReadWriteTypeWrite ReadWriteType = "write"
)

// ReadWriteEvent is the immutable result of a read or write task.
type ReadWriteEvent struct {
	Err       error
	Address   string
	CharUUID  string
	Type      ReadWriteType
	Data      []byte
	TimeTaken time.Duration
	State     TaskState
}

// WasSuccess ...
func (e ReadWriteEvent) WasSuccess() bool {
	return e.State == TaskStateSucceeded
}

// ResetProgress is the stage a reset sequence reached.
type ResetProgress string

// const ...
const (
	ResetProgressCompleted ResetProgress = "completed"
	ResetProgressFailed    ResetProgress = "failed"
)

// ResetEvent is broadcast to every reset listener when a reset sequence ends.
type ResetEvent struct {
	Err      error
	Progress ResetProgress
}

// ConnectFailure describes a failed connect attempt to a ConnectFailHandler.
type ConnectFailure struct {
	Err         error
	Address     string
	State       TaskState
	Attempt     int
	Autoconnect bool
}
