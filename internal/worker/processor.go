// Package worker drives job execution: claiming eligible jobs, running the
// transcription pipeline, deriving summary artifacts, and routing failures
// through the retry classifier.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sync"

	"github.com/snipnote/scribed/internal/logger"
	"github.com/snipnote/scribed/internal/models"
	"github.com/snipnote/scribed/internal/notify"
	"github.com/snipnote/scribed/internal/pipeline"
	"github.com/snipnote/scribed/internal/progress"
	"github.com/snipnote/scribed/internal/store"
	"github.com/snipnote/scribed/internal/textgen"
	"github.com/snipnote/scribed/internal/transcript"
)

// DefaultMaxRetries is the retry ceiling: a job failing retryably this many
// times is forced to terminal failure.
const DefaultMaxRetries = 5

// JobStore is the persistence boundary the worker depends on.
type JobStore interface {
	FetchEligible() ([]models.Job, error)
	ClaimJob(id string) error
	SetProgress(id string, pct int, stage string) error
	SetResults(id, transcript, overview, summary, actions string, duration float64) error
	MarkFailed(id, errMsg string) error
	IncrementRetry(id, errMsg string) error
	FetchChunks(meetingID string) ([]models.AudioChunk, error)
	SetChunkTranscript(chunkID, transcript string) error
	SetChunksProcessed(id string, count int) error
}

// TextService derives summary artifacts from transcripts.
type TextService interface {
	Summary(ctx context.Context, transcript string) (string, error)
	Overview(ctx context.Context, summary string) (string, error)
	Actions(ctx context.Context, summary string) ([]textgen.Action, error)
}

// Processor executes one job end to end: status transitions, transcription,
// artifact generation, persistence, and failure classification.
type Processor struct {
	store      JobStore
	fetch      pipeline.Downloader
	pipe       *pipeline.Pipeline
	chunks     *pipeline.ChunkProcessor
	text       TextService
	notifier   notify.Notifier
	maxRetries int
	log        *logger.Logger
}

// ProcessorOpts holds the collaborators a Processor needs. All handles are
// injected; the processor owns no globals.
type ProcessorOpts struct {
	Store      JobStore
	Fetch      pipeline.Downloader
	Pipeline   *pipeline.Pipeline
	Chunks     *pipeline.ChunkProcessor
	Text       TextService
	Notifier   notify.Notifier
	MaxRetries int
	Log        *logger.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(opts ProcessorOpts) (*Processor, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("worker: store is required")
	}
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("worker: pipeline is required")
	}
	if opts.Chunks == nil {
		return nil, fmt.Errorf("worker: chunk processor is required")
	}
	if opts.Fetch == nil {
		return nil, fmt.Errorf("worker: fetch client is required")
	}
	if opts.Text == nil {
		return nil, fmt.Errorf("worker: text service is required")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	return &Processor{
		store:      opts.Store,
		fetch:      opts.Fetch,
		pipe:       opts.Pipeline,
		chunks:     opts.Chunks,
		text:       opts.Text,
		notifier:   opts.Notifier,
		maxRetries: opts.MaxRetries,
		log:        opts.Log.WithComponent("processor"),
	}, nil
}

// Process claims and executes one job. A claim lost to another worker is not
// an error. Any execution failure is classified and persisted; the original
// error is returned for logging.
func (p *Processor) Process(ctx context.Context, job models.Job) error {
	log := p.log.WithJob(job.ID)

	if err := p.store.ClaimJob(job.ID); err != nil {
		if errors.Is(err, store.ErrNotClaimable) {
			log.Debug("job already claimed, skipping")
			return nil
		}
		return err
	}
	job.Status = models.StatusProcessing
	log.WithField("mode", job.Mode).Info("processing job")

	sink := progress.SinkFunc(func(pct int, stage string) {
		if err := p.store.SetProgress(job.ID, pct, stage); err != nil {
			log.WithError(err).Warn("progress update failed")
		}
	})

	var err error
	switch job.Mode {
	case models.ModeChunked:
		err = p.processChunked(ctx, &job, sink)
	default:
		err = p.processSingle(ctx, &job, sink)
	}
	if err != nil {
		p.fail(ctx, &job, err)
		return err
	}

	log.Info("job completed")
	p.notifyTerminal(ctx, &job, models.StatusCompleted, "")
	return nil
}

// processSingle handles a single-file job. Progress bands: 0-10 download,
// 10-60 transcription, 60-75 summary, 75-90 overview+actions, 90-100
// persistence.
func (p *Processor) processSingle(ctx context.Context, job *models.Job, sink progress.Sink) error {
	sink.Report(0, "Downloading audio")
	data, err := p.fetch.Download(ctx, job.AudioURL)
	if err != nil {
		return err
	}
	sink.Report(10, "Audio downloaded")

	res, err := p.pipe.Transcribe(ctx, data, filenameFromURL(job.AudioURL), job.Language, progress.Band(sink, 10, 60))
	if err != nil {
		return err
	}

	job.Duration = res.Duration
	return p.finish(ctx, job, sink, res.Transcript, 60, 75)
}

// processChunked handles a job whose audio was uploaded as pre-split chunks.
// Progress bands: 0-5 setup, 5-70 chunk transcription, 70 merge, 70-80
// summary, 80-90 overview+actions, 90-100 persistence.
func (p *Processor) processChunked(ctx context.Context, job *models.Job, sink progress.Sink) error {
	sink.Report(0, "Fetching audio chunks")
	stored, err := p.store.FetchChunks(job.MeetingID)
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		return fmt.Errorf("worker: chunks not found for meeting %s", job.MeetingID)
	}
	if job.TotalChunks > 0 && len(stored) != job.TotalChunks {
		p.log.WithJob(job.ID).
			WithField("expected", job.TotalChunks).
			WithField("found", len(stored)).
			Warn("chunk count mismatch, processing what exists")
	}

	chunks := make([]pipeline.StoredChunk, len(stored))
	for i, c := range stored {
		chunks[i] = pipeline.StoredChunk{ID: c.ID, Index: c.ChunkIndex, URL: c.StorageURL}
	}

	sink.Report(5, fmt.Sprintf("Transcribing %d chunks", len(chunks)))
	log := p.log.WithJob(job.ID)
	parts, err := p.chunks.Process(ctx, chunks, job.Language, p.store, progress.Band(sink, 5, 70), func(count int) {
		if err := p.store.SetChunksProcessed(job.ID, count); err != nil {
			log.WithError(err).Warn("chunk counter update failed")
		}
	})
	if err != nil {
		return err
	}

	// Client-side recorders include boundary overlap, so the overlap-aware
	// merge applies here too.
	sink.Report(70, "Merging transcripts")
	merged := transcript.Merge(parts)

	return p.finish(ctx, job, sink, merged, 70, 80)
}

// finish derives artifacts from the transcript and persists everything
// atomically. Overview and action extraction both depend only on the summary
// and run in parallel against each other.
func (p *Processor) finish(ctx context.Context, job *models.Job, sink progress.Sink, transcriptText string, summaryPct, derivePct int) error {
	sink.Report(summaryPct, "Generating summary")
	summary, err := p.text.Summary(ctx, transcriptText)
	if err != nil {
		return err
	}

	sink.Report(derivePct, "Generating overview and actions")
	var (
		wg       sync.WaitGroup
		overview string
		actions  []textgen.Action
		ovErr    error
		acErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		overview, ovErr = p.text.Overview(ctx, summary)
	}()
	go func() {
		defer wg.Done()
		actions, acErr = p.text.Actions(ctx, summary)
	}()
	wg.Wait()
	if ovErr != nil {
		return ovErr
	}
	if acErr != nil {
		return acErr
	}

	sink.Report(90, "Saving results")
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("worker: encode actions: %w", err)
	}
	if err := p.store.SetResults(job.ID, transcriptText, overview, summary, string(actionsJSON), job.Duration); err != nil {
		return err
	}
	job.Status = models.StatusCompleted
	return nil
}

// fail routes a job failure through the classifier. A retryable failure
// below the ceiling parks the job for the next scheduling pass; anything
// else is terminal. Failures while persisting the failure record itself are
// logged, never re-raised.
func (p *Processor) fail(ctx context.Context, job *models.Job, cause error) {
	log := p.log.WithJob(job.ID).WithError(cause)
	msg := cause.Error()

	if Retryable(cause) && job.RetryCount < p.maxRetries {
		if err := p.store.IncrementRetry(job.ID, msg); err != nil {
			log.WithField("update_error", err.Error()).Error("failed to requeue job")
			return
		}
		log.WithField("retry_count", job.RetryCount+1).Warn("job failed, requeued for retry")
		return
	}

	if err := p.store.MarkFailed(job.ID, msg); err != nil {
		log.WithField("update_error", err.Error()).Error("failed to record job failure")
		return
	}
	log.Error("job failed permanently")
	p.notifyTerminal(ctx, job, models.StatusFailed, msg)
}

func (p *Processor) notifyTerminal(ctx context.Context, job *models.Job, status, errMsg string) {
	if p.notifier == nil {
		return
	}
	job.Status = status
	job.ErrorMessage = errMsg
	if err := p.notifier.Notify(ctx, notify.EventForJob(job)); err != nil {
		p.log.WithJob(job.ID).WithError(err).Warn("terminal-state notification failed")
	}
}

// filenameFromURL extracts a filename hint for the transcription backend.
func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || path.Base(u.Path) == "." || path.Base(u.Path) == "/" {
		return "audio.m4a"
	}
	return path.Base(u.Path)
}
