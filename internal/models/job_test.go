package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	request := &CrawlRequest{URL: "https://example.com"}
	job := NewJob(JobTypeCrawl, request)

	assert.True(t, strings.HasPrefix(job.ID, "job_"))
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Zero(t, job.Progress)
	assert.Same(t, request, job.Metadata)
	assert.False(t, job.CreatedAt.IsZero())
	require.NoError(t, job.Validate())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from JobStatus
		to   JobStatus
		want bool
	}{
		{JobStatusPending, JobStatusRunning, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusPending, JobStatusFailed, false},
		{JobStatusRunning, JobStatusCompleted, true},
		{JobStatusRunning, JobStatusFailed, true},
		{JobStatusRunning, JobStatusPending, false},
		{JobStatusCompleted, JobStatusRunning, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusRunning, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestJobIsTerminal(t *testing.T) {
	job := NewJob(JobTypeCrawl, nil)
	assert.False(t, job.IsTerminal())

	job.Status = JobStatusRunning
	assert.False(t, job.IsTerminal())

	job.Status = JobStatusCompleted
	assert.True(t, job.IsTerminal())

	job.Status = JobStatusFailed
	assert.True(t, job.IsTerminal())
}

func TestJobValidate(t *testing.T) {
	job := NewJob(JobTypeBatchCrawl, nil)
	require.NoError(t, job.Validate())

	noID := NewJob(JobTypeCrawl, nil)
	noID.ID = ""
	assert.Error(t, noID.Validate())

	badType := NewJob(JobTypeCrawl, nil)
	badType.Type = JobType("mystery")
	assert.Error(t, badType.Validate())

	badProgress := NewJob(JobTypeCrawl, nil)
	badProgress.Progress = 101
	assert.Error(t, badProgress.Validate())
}
