package jobx

import (
	"encoding/json"
	"time"
)

// JobStatus moves pending -> active -> completed, or active -> retrying ->
// active until attempts run out and the job ends up failed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusRetrying  JobStatus = "retrying"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further attempt will be made.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is what producers submit. An empty Queue means the client's first
// queue; MaxRetries 0 means 3.
type Job struct {
	Type       string          `json:"type"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	MaxRetries int             `json:"max_retries"`
}

// JobInfo is the stored record of a job, as handed to handlers.
type JobInfo struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Queue   string          `json:"queue"`
	Payload json.RawMessage `json:"payload"`

	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	Attempts   int       `json:"attempts"`
	MaxRetries int       `json:"max_retries"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Start records the beginning of an attempt.
func (j *JobInfo) Start() {
	j.Status = JobStatusActive
	j.Attempts++
}

func (j *JobInfo) Succeed() {
	j.Status = JobStatusCompleted
	j.Error = ""
}

// Failed records a failed attempt and reports whether another is allowed.
func (j *JobInfo) Failed(reason string) (retry bool) {
	j.Error = reason
	retry = j.Attempts < j.MaxRetries
	if retry {
		j.Status = JobStatusRetrying
	} else {
		j.Status = JobStatusFailed
	}
	return retry
}

func NewJob[T any](jobType, queue string, payload T) (Job, error) {
	if jobType == "" {
		return Job{}, jobxErrors.New(ErrInvalidJob).WithDetail("reason", "empty type")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, jobxErrors.NewWithCause(ErrInvalidPayload, err).WithDetail("type", jobType)
	}
	return Job{Type: jobType, Queue: queue, Payload: raw}, nil
}

// Decode is the handler-side counterpart of NewJob.
func Decode[T any](info *JobInfo) (T, error) {
	var out T
	err := json.Unmarshal(info.Payload, &out)
	if err != nil {
		err = jobxErrors.NewWithCause(ErrInvalidPayload, err).WithDetails(map[string]any{
			"job_id": info.ID,
			"type":   info.Type,
		})
	}
	return out, err
}
