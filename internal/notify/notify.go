// Package notify delivers terminal job-state notifications to chat
// platforms (Slack, Discord).
package notify

import (
	"context"
	"fmt"

	"github.com/snipnote/scribed/internal/logger"
	"github.com/snipnote/scribed/internal/models"
)

// Event describes a job reaching a terminal state.
type Event struct {
	JobID    string
	Status   string // completed or failed
	Mode     string
	Duration float64 // seconds, zero when unknown
	Error    string  // failure message, empty on success
}

// Notifier is the interface platform adapters implement.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// EventForJob builds an Event from a terminal job.
func EventForJob(job *models.Job) Event {
	return Event{
		JobID:    job.ID,
		Status:   job.Status,
		Mode:     job.Mode,
		Duration: job.Duration,
		Error:    job.ErrorMessage,
	}
}

// headline renders the one-line message shared by all adapters.
func headline(ev Event) string {
	if ev.Status == models.StatusCompleted {
		return fmt.Sprintf("Transcription job %s completed (%.0fs of audio)", ev.JobID, ev.Duration)
	}
	return fmt.Sprintf("Transcription job %s failed: %s", ev.JobID, ev.Error)
}

// Multi fans an event out to several adapters. Delivery failures are logged,
// never propagated: a down chat platform must not affect job processing.
type Multi struct {
	adapters []Notifier
	log      *logger.Logger
}

// NewMulti builds a fan-out notifier. A nil or empty adapter list yields a
// notifier that does nothing.
func NewMulti(log *logger.Logger, adapters ...Notifier) *Multi {
	if log == nil {
		log = logger.Discard()
	}
	return &Multi{adapters: adapters, log: log.WithComponent("notify")}
}

// Notify delivers ev to every adapter.
func (m *Multi) Notify(ctx context.Context, ev Event) error {
	for _, a := range m.adapters {
		if err := a.Notify(ctx, ev); err != nil {
			m.log.WithError(err).WithField("job_id", ev.JobID).Warn("notification delivery failed")
		}
	}
	return nil
}
