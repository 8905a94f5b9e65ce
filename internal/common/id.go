package common

import (
	"github.com/google/uuid"
)

// NewSessionID generates a unique browser session ID with the "sess_" prefix
func NewSessionID() string {
	return "sess_" + uuid.New().String()
}

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}
