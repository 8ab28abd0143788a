package models

import "time"

// Job statuses. A job is created pending, claimed into processing, and ends
// in completed or failed. A retryable failure parks the job in pending_retry
// so the scheduler's eligibility query stays unambiguous.
const (
	StatusPending      = "pending"
	StatusProcessing   = "processing"
	StatusCompleted    = "completed"
	StatusFailed       = "failed"
	StatusPendingRetry = "pending_retry"
)

// Job modes.
const (
	ModeSingle  = "single"  // one downloadable audio file
	ModeChunked = "chunked" // pre-split chunks grouped by meeting ID
)

// DoneStage is the stage label set when a job completes.
const DoneStage = "Complete"

// Job is the core work item: produce a transcript and derived artifacts for
// one audio source.
type Job struct {
	ID              string `gorm:"primaryKey;size:36"`
	Mode            string `gorm:"size:16;default:single"`
	Status          string `gorm:"size:16;default:pending;index"`
	AudioURL        string `gorm:"size:1024"`
	MeetingID       string `gorm:"size:36;index"`
	TotalChunks     int    `gorm:"default:1"`
	ChunksProcessed int    `gorm:"default:0"`
	Language        string `gorm:"size:16"`
	Progress        int    `gorm:"default:0"`
	Stage           string `gorm:"size:512"`
	RetryCount      int    `gorm:"default:0"`
	ErrorMessage    string `gorm:"type:text"`

	Transcript string  `gorm:"type:mediumtext"`
	Overview   string  `gorm:"type:text"`
	Summary    string  `gorm:"type:mediumtext"`
	Actions    string  `gorm:"type:json"`
	Duration   float64 `gorm:"default:0"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// EligibleStatuses are the statuses a scheduling pass picks up.
var EligibleStatuses = []string{StatusPending, StatusPendingRetry}

// ValidTransitions maps each status to its valid next statuses.
var ValidTransitions = map[string][]string{
	StatusPending:      {StatusProcessing},
	StatusPendingRetry: {StatusProcessing},
	StatusProcessing:   {StatusCompleted, StatusFailed, StatusPendingRetry},
	StatusFailed:       {},
	StatusCompleted:    {},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range ValidTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Eligible reports whether the job should be picked up by a scheduling pass.
func (j *Job) Eligible() bool {
	return j.Status == StatusPending || j.Status == StatusPendingRetry
}

// Terminal reports whether the job reached a terminal state. A failed job
// below the retry ceiling never carries StatusFailed; it is parked in
// pending_retry instead, so failed is always terminal here.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
