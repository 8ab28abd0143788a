// Package store implements the persistent job store over GORM.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/snipnote/scribed/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a job or chunk does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrNotClaimable is returned when a claim races another worker or the job
// is no longer eligible.
var ErrNotClaimable = errors.New("store: job not claimable")

// maxErrorLen bounds persisted error messages and stage labels.
const maxErrorLen = 500

// Store provides job and chunk persistence. Each processing job is the sole
// writer of its own row for the duration of processing; the store itself does
// no cross-job locking.
type Store struct {
	db *gorm.DB
}

// New wraps a GORM connection in a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new pending job and returns it. An empty ID is filled
// with a fresh UUID.
func (s *Store) CreateJob(job *models.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.StatusPending
	}
	if job.Mode == "" {
		job.Mode = models.ModeSingle
	}
	if err := s.db.Create(job).Error; err != nil {
		return fmt.Errorf("store: create job: %w", err)
	}
	return nil
}

// CreateJobWithChunks inserts a chunked job and its chunk set in one
// transaction, so a scheduling pass can never claim the job before its
// chunks are visible.
func (s *Store) CreateJobWithChunks(job *models.Job, chunks []models.AudioChunk) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		ts := New(tx)
		if err := ts.CreateJob(job); err != nil {
			return err
		}
		for i := range chunks {
			if err := ts.CreateChunk(&chunks[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetJob returns the job with the given ID.
func (s *Store) GetJob(id string) (*models.Job, error) {
	var job models.Job
	err := s.db.First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get job %s: %w", id, err)
	}
	return &job, nil
}

// FetchEligible returns all jobs the scheduler should pick up, oldest first.
func (s *Store) FetchEligible() ([]models.Job, error) {
	var jobs []models.Job
	err := s.db.
		Where("status IN ?", models.EligibleStatuses).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("store: fetch eligible jobs: %w", err)
	}
	return jobs, nil
}

// ListJobs returns recent jobs, newest first, optionally filtered by status.
// limit <= 0 means no limit.
func (s *Store) ListJobs(status string, limit int) ([]models.Job, error) {
	q := s.db.Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var jobs []models.Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	return jobs, nil
}

// ClaimJob atomically moves an eligible job into processing and resets its
// progress. Returns ErrNotClaimable if another worker got there first.
func (s *Store) ClaimJob(id string) error {
	result := s.db.Model(&models.Job{}).
		Where("id = ? AND status IN ?", id, models.EligibleStatuses).
		Updates(map[string]interface{}{
			"status":   models.StatusProcessing,
			"progress": 0,
			"stage":    "Starting",
		})
	if result.Error != nil {
		return fmt.Errorf("store: claim job %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: claim job %s: %w", id, ErrNotClaimable)
	}
	return nil
}

// SetProgress records a progress milestone. Concurrent chunk completions may
// interleave writes; last writer wins.
func (s *Store) SetProgress(id string, pct int, stage string) error {
	result := s.db.Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress": clampPct(pct),
			"stage":    truncate(stage, maxErrorLen),
		})
	if result.Error != nil {
		return fmt.Errorf("store: set progress for job %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: set progress for job %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetResults atomically persists all artifacts and completes the job. The
// error message is cleared: a job that succeeded on a retry must not carry
// the failure text from an earlier attempt.
func (s *Store) SetResults(id, transcript, overview, summary, actions string, duration float64) error {
	now := time.Now()
	result := s.db.Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":        models.StatusCompleted,
			"transcript":    transcript,
			"overview":      overview,
			"summary":       summary,
			"actions":       actions,
			"duration":      duration,
			"progress":      100,
			"stage":         models.DoneStage,
			"error_message": "",
			"completed_at":  now,
		})
	if result.Error != nil {
		return fmt.Errorf("store: set results for job %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: set results for job %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkFailed records a permanent failure: error message persisted, progress
// reset, stage set to the truncated failure message.
func (s *Store) MarkFailed(id, errMsg string) error {
	result := s.db.Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"error_message": truncate(errMsg, maxErrorLen),
			"progress":      0,
			"stage":         truncate("Failed: "+errMsg, maxErrorLen),
		})
	if result.Error != nil {
		return fmt.Errorf("store: mark job %s failed: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: mark job %s failed: %w", id, ErrNotFound)
	}
	return nil
}

// IncrementRetry records a retryable failure: the retry counter advances and
// the job is parked in pending_retry for the next scheduling pass. Progress
// and stage are reset so a re-claim starts clean.
func (s *Store) IncrementRetry(id, errMsg string) error {
	result := s.db.Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.StatusPendingRetry,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_message": truncate(errMsg, maxErrorLen),
			"progress":      0,
			"stage":         "",
		})
	if result.Error != nil {
		return fmt.Errorf("store: increment retry for job %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: increment retry for job %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetChunksProcessed updates the processed-chunk counter for a job.
func (s *Store) SetChunksProcessed(id string, count int) error {
	result := s.db.Model(&models.Job{}).
		Where("id = ?", id).
		Update("chunks_processed", count)
	if result.Error != nil {
		return fmt.Errorf("store: set chunks processed for job %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: set chunks processed for job %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateChunk inserts an uploaded audio chunk record.
func (s *Store) CreateChunk(chunk *models.AudioChunk) error {
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	if err := s.db.Create(chunk).Error; err != nil {
		return fmt.Errorf("store: create chunk: %w", err)
	}
	return nil
}

// FetchChunks returns all chunks for a meeting ordered by chunk index. The
// complete ordered set is fetched before parallel processing begins.
func (s *Store) FetchChunks(meetingID string) ([]models.AudioChunk, error) {
	var chunks []models.AudioChunk
	err := s.db.
		Where("meeting_id = ?", meetingID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("store: fetch chunks for meeting %s: %w", meetingID, err)
	}
	return chunks, nil
}

// SetChunkTranscript persists a chunk's transcript and marks it transcribed.
// Called by the chunk processor as soon as each chunk finishes, before the
// batch aggregates.
func (s *Store) SetChunkTranscript(chunkID, transcript string) error {
	result := s.db.Model(&models.AudioChunk{}).
		Where("id = ?", chunkID).
		Updates(map[string]interface{}{
			"transcript":  transcript,
			"transcribed": true,
		})
	if result.Error != nil {
		return fmt.Errorf("store: set transcript for chunk %s: %w", chunkID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: set transcript for chunk %s: %w", chunkID, ErrNotFound)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clampPct(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
