package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an async job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobType distinguishes single-URL from batch jobs.
type JobType string

const (
	JobTypeCrawl      JobType = "crawl"
	JobTypeBatchCrawl JobType = "batch_crawl"
)

// Job is the durable record of an asynchronous request. Status moves
// pending -> running -> {completed, failed}; the registry rejects anything
// else.
type Job struct {
	ID        string        `json:"id" badgerhold:"key"`
	Type      JobType       `json:"type"`
	Status    JobStatus     `json:"status" badgerhold:"index"`
	Progress  int           `json:"progress"` // 0-100
	CreatedAt time.Time     `json:"created_at" badgerhold:"index"`
	UpdatedAt time.Time     `json:"updated_at"`
	Metadata  *CrawlRequest `json:"metadata"` // original request snapshot
	Result    *JobResult    `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// NewJob creates a pending job wrapping the given request.
func NewJob(jobType JobType, request *CrawlRequest) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        "job_" + uuid.New().String(),
		Type:      jobType,
		Status:    JobStatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  request,
	}
}

// IsTerminal reports whether the job has finished.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// CanTransition reports whether a status change is legal.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusRunning
	case JobStatusRunning:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// Validate checks structural integrity before persistence.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if j.Type != JobTypeCrawl && j.Type != JobTypeBatchCrawl {
		return fmt.Errorf("unknown job type %q", j.Type)
	}
	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("progress must be within 0-100, got %d", j.Progress)
	}
	return nil
}

// JobResult is the stored outcome of a finished job. Single crawls populate
// Crawl; batches populate Batch.
type JobResult struct {
	Crawl *CrawlResult `json:"crawl,omitempty"`
	Batch *BatchResult `json:"batch,omitempty"`
}

// PageOutcome is the per-URL record inside a batch result.
type PageOutcome struct {
	URL       string        `json:"url"`
	Success   bool          `json:"success"`
	Title     string        `json:"title,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	WordCount int           `json:"word_count,omitempty"`
	CharCount int           `json:"char_count,omitempty"`
	Duration  time.Duration `json:"duration"`
	Artifacts []ArtifactReference `json:"artifacts,omitempty"`
}

// BatchResult aggregates a batch_crawl fan-out.
type BatchResult struct {
	Total             int           `json:"total"`
	Completed         int           `json:"completed"`
	Failed            int           `json:"failed"`
	TotalWords        int           `json:"total_words"`
	TotalChars        int           `json:"total_chars"`
	TotalTime         time.Duration `json:"total_time"`
	AverageTimePerURL time.Duration `json:"average_time_per_url"`
	Pages             []PageOutcome `json:"pages"`

	// Collated outputs written by the batch collator.
	CollatedMarkdown ArtifactReference `json:"collated_markdown,omitempty"`
	Report           ArtifactReference `json:"report,omitempty"`
	MergedPDF        ArtifactReference `json:"merged_pdf,omitempty"`
}

// ToJSON serializes the job for logs and API responses.
func (j *Job) ToJSON() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}
