package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/snipnote/scribed/internal/db"
	"github.com/snipnote/scribed/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(gdb)
}

func createJob(t *testing.T, s *Store, job models.Job) *models.Job {
	t.Helper()
	if err := s.CreateJob(&job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return &job
}

func TestListJobs_FilterAndLimit(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{AudioURL: "https://example.com/a.m4a"})
	createJob(t, s, models.Job{AudioURL: "https://example.com/b.m4a", Status: models.StatusFailed})
	createJob(t, s, models.Job{AudioURL: "https://example.com/c.m4a"})

	all, err := s.ListJobs("", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want 3", len(all))
	}

	failed, err := s.ListJobs(models.StatusFailed, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Status != models.StatusFailed {
		t.Errorf("failed = %+v", failed)
	}

	limited, err := s.ListJobs("", 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len = %d, want 2", len(limited))
	}
}

func TestCreateJob_Defaults(t *testing.T) {
	s := testStore(t)
	job := createJob(t, s, models.Job{AudioURL: "https://example.com/a.m4a"})

	if job.ID == "" {
		t.Error("expected generated job ID")
	}
	if job.Status != models.StatusPending {
		t.Errorf("Status = %q, want %q", job.Status, models.StatusPending)
	}
	if job.Mode != models.ModeSingle {
		t.Errorf("Mode = %q, want %q", job.Mode, models.ModeSingle)
	}
}

func TestCreateJobWithChunks(t *testing.T) {
	s := testStore(t)
	job := models.Job{Mode: models.ModeChunked, MeetingID: "m1", TotalChunks: 2}
	chunks := []models.AudioChunk{
		{MeetingID: "m1", ChunkIndex: 0, StorageURL: "s3://chunks/0"},
		{MeetingID: "m1", ChunkIndex: 1, StorageURL: "s3://chunks/1"},
	}

	if err := s.CreateJobWithChunks(&job, chunks); err != nil {
		t.Fatalf("CreateJobWithChunks: %v", err)
	}
	got, err := s.FetchChunks("m1")
	if err != nil {
		t.Fatalf("fetch chunks: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestCreateJobWithChunks_RollsBackJobOnChunkFailure(t *testing.T) {
	s := testStore(t)
	if err := s.CreateChunk(&models.AudioChunk{ID: "c1", MeetingID: "other", ChunkIndex: 0}); err != nil {
		t.Fatalf("seed chunk: %v", err)
	}

	job := models.Job{Mode: models.ModeChunked, MeetingID: "m1"}
	// Second chunk collides with the seeded primary key, forcing the
	// transaction to roll back.
	chunks := []models.AudioChunk{
		{MeetingID: "m1", ChunkIndex: 0, StorageURL: "s3://chunks/0"},
		{ID: "c1", MeetingID: "m1", ChunkIndex: 1, StorageURL: "s3://chunks/1"},
	}
	if err := s.CreateJobWithChunks(&job, chunks); err == nil {
		t.Fatal("expected error from chunk ID collision")
	}

	if _, err := s.GetJob(job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob after rollback = %v, want ErrNotFound", err)
	}
	got, err := s.FetchChunks("m1")
	if err != nil {
		t.Fatalf("fetch chunks: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0 after rollback", len(got))
	}
}

func TestGetJob_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetJob("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestFetchEligible(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j-pending", Status: models.StatusPending})
	createJob(t, s, models.Job{ID: "j-retry", Status: models.StatusPendingRetry})
	createJob(t, s, models.Job{ID: "j-done", Status: models.StatusCompleted})
	createJob(t, s, models.Job{ID: "j-failed", Status: models.StatusFailed})
	createJob(t, s, models.Job{ID: "j-active", Status: models.StatusProcessing})

	jobs, err := s.FetchEligible()
	if err != nil {
		t.Fatalf("FetchEligible: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d eligible jobs, want 2", len(jobs))
	}
	for _, j := range jobs {
		if !j.Eligible() {
			t.Errorf("job %s with status %q should not be eligible", j.ID, j.Status)
		}
	}
}

func TestClaimJob(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j1", Status: models.StatusPending, Progress: 55, Stage: "stale"})

	if err := s.ClaimJob("j1"); err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	job, err := s.GetJob("j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != models.StatusProcessing {
		t.Errorf("Status = %q, want %q", job.Status, models.StatusProcessing)
	}
	if job.Progress != 0 {
		t.Errorf("Progress = %d, want 0", job.Progress)
	}
}

func TestClaimJob_AlreadyClaimed(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j1", Status: models.StatusProcessing})

	err := s.ClaimJob("j1")
	if !errors.Is(err, ErrNotClaimable) {
		t.Errorf("error = %v, want ErrNotClaimable", err)
	}
}

func TestClaimJob_PendingRetry(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j1", Status: models.StatusPendingRetry, RetryCount: 2})

	if err := s.ClaimJob("j1"); err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	job, _ := s.GetJob("j1")
	if job.Status != models.StatusProcessing {
		t.Errorf("Status = %q, want %q", job.Status, models.StatusProcessing)
	}
	if job.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2 (claim must not touch it)", job.RetryCount)
	}
}

func TestSetProgress_Clamps(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j1", Status: models.StatusProcessing})

	if err := s.SetProgress("j1", 150, "over"); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	job, _ := s.GetJob("j1")
	if job.Progress != 100 {
		t.Errorf("Progress = %d, want 100", job.Progress)
	}

	if err := s.SetProgress("j1", -5, "under"); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	job, _ = s.GetJob("j1")
	if job.Progress != 0 {
		t.Errorf("Progress = %d, want 0", job.Progress)
	}
}

func TestSetResults(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j1", Status: models.StatusProcessing})

	err := s.SetResults("j1", "full transcript", "short overview", "summary", `[{"action":"follow up","priority":"HIGH"}]`, 123.4)
	if err != nil {
		t.Fatalf("SetResults: %v", err)
	}
	job, _ := s.GetJob("j1")
	if job.Status != models.StatusCompleted {
		t.Errorf("Status = %q, want %q", job.Status, models.StatusCompleted)
	}
	if job.Progress != 100 {
		t.Errorf("Progress = %d, want 100", job.Progress)
	}
	if job.Stage != models.DoneStage {
		t.Errorf("Stage = %q, want %q", job.Stage, models.DoneStage)
	}
	if job.Transcript != "full transcript" {
		t.Errorf("Transcript = %q", job.Transcript)
	}
	if job.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestSetResults_ClearsErrorFromEarlierAttempt(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j1"})

	if err := s.ClaimJob("j1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.IncrementRetry("j1", "speech: transcribe: timeout"); err != nil {
		t.Fatalf("increment retry: %v", err)
	}
	if err := s.ClaimJob("j1"); err != nil {
		t.Fatalf("re-claim: %v", err)
	}
	if err := s.SetResults("j1", "t", "o", "s", "[]", 1); err != nil {
		t.Fatalf("SetResults: %v", err)
	}

	job, _ := s.GetJob("j1")
	if job.Status != models.StatusCompleted {
		t.Fatalf("Status = %q, want %q", job.Status, models.StatusCompleted)
	}
	if job.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want cleared on completion", job.ErrorMessage)
	}
	if job.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1 preserved", job.RetryCount)
	}
}

func TestSetResults_RequiresProcessing(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j1", Status: models.StatusPending})

	err := s.SetResults("j1", "t", "o", "s", "[]", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMarkFailed(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j1", Status: models.StatusProcessing, Progress: 40})

	if err := s.MarkFailed("j1", "invalid_api_key"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	job, _ := s.GetJob("j1")
	if job.Status != models.StatusFailed {
		t.Errorf("Status = %q, want %q", job.Status, models.StatusFailed)
	}
	if job.Progress != 0 {
		t.Errorf("Progress = %d, want 0", job.Progress)
	}
	if job.ErrorMessage != "invalid_api_key" {
		t.Errorf("ErrorMessage = %q", job.ErrorMessage)
	}
	if !strings.Contains(job.Stage, "Failed") {
		t.Errorf("Stage = %q, want failure label", job.Stage)
	}
}

func TestMarkFailed_TruncatesLongError(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j1", Status: models.StatusProcessing})

	long := strings.Repeat("x", 2000)
	if err := s.MarkFailed("j1", long); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	job, _ := s.GetJob("j1")
	if len(job.ErrorMessage) > 500 {
		t.Errorf("ErrorMessage length = %d, want <= 500", len(job.ErrorMessage))
	}
	if len(job.Stage) > 500 {
		t.Errorf("Stage length = %d, want <= 500", len(job.Stage))
	}
}

func TestIncrementRetry(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j1", Status: models.StatusProcessing, RetryCount: 1, Progress: 70, Stage: "Transcribing"})

	if err := s.IncrementRetry("j1", "429 rate limit"); err != nil {
		t.Fatalf("IncrementRetry: %v", err)
	}
	job, _ := s.GetJob("j1")
	if job.Status != models.StatusPendingRetry {
		t.Errorf("Status = %q, want %q", job.Status, models.StatusPendingRetry)
	}
	if job.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", job.RetryCount)
	}
	if job.Progress != 0 {
		t.Errorf("Progress = %d, want 0", job.Progress)
	}
	if job.ErrorMessage != "429 rate limit" {
		t.Errorf("ErrorMessage = %q", job.ErrorMessage)
	}
}

func TestChunks_RoundTrip(t *testing.T) {
	s := testStore(t)
	for i := 2; i >= 0; i-- {
		chunk := models.AudioChunk{MeetingID: "m1", ChunkIndex: i, StorageURL: "https://example.com/c"}
		if err := s.CreateChunk(&chunk); err != nil {
			t.Fatalf("create chunk %d: %v", i, err)
		}
	}
	s.CreateChunk(&models.AudioChunk{MeetingID: "other", ChunkIndex: 0, StorageURL: "https://example.com/x"})

	chunks, err := s.FetchChunks("m1")
	if err != nil {
		t.Fatalf("FetchChunks: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunks[%d].ChunkIndex = %d, want %d (ordering by index)", i, c.ChunkIndex, i)
		}
	}

	if err := s.SetChunkTranscript(chunks[1].ID, "middle part"); err != nil {
		t.Fatalf("SetChunkTranscript: %v", err)
	}
	chunks, _ = s.FetchChunks("m1")
	if !chunks[1].Transcribed {
		t.Error("chunk not marked transcribed")
	}
	if chunks[1].Transcript != "middle part" {
		t.Errorf("Transcript = %q", chunks[1].Transcript)
	}
}

func TestSetChunksProcessed(t *testing.T) {
	s := testStore(t)
	createJob(t, s, models.Job{ID: "j1", Status: models.StatusProcessing, Mode: models.ModeChunked, TotalChunks: 3})

	if err := s.SetChunksProcessed("j1", 2); err != nil {
		t.Fatalf("SetChunksProcessed: %v", err)
	}
	job, _ := s.GetJob("j1")
	if job.ChunksProcessed != 2 {
		t.Errorf("ChunksProcessed = %d, want 2", job.ChunksProcessed)
	}
}
