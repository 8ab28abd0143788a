package pipeline

import (
	"context"
	"fmt"

	"github.com/snipnote/scribed/internal/logger"
	"github.com/snipnote/scribed/internal/progress"
)

// Downloader fetches chunk bytes from storage.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// ChunkPersister writes per-chunk transcripts back to the job store.
type ChunkPersister interface {
	SetChunkTranscript(chunkID, transcript string) error
}

// StoredChunk is one pre-uploaded audio chunk. Index is the canonical
// ordinal defining output ordering.
type StoredChunk struct {
	ID    string
	Index int
	URL   string
}

// ChunkProcessor transcribes stored chunks concurrently with a bounded
// worker count, persisting each transcript as soon as it is produced so a
// chunk's work survives even if the batch later fails.
type ChunkProcessor struct {
	fetch   Downloader
	speech  Transcriber
	workers int
	log     *logger.Logger
}

// NewChunkProcessor builds a ChunkProcessor with W concurrent workers.
func NewChunkProcessor(fetch Downloader, speech Transcriber, workers int, log *logger.Logger) *ChunkProcessor {
	if workers < 1 {
		workers = 5
	}
	if log == nil {
		log = logger.Discard()
	}
	return &ChunkProcessor{fetch: fetch, speech: speech, workers: workers, log: log.WithComponent("chunks")}
}

// Process transcribes all chunks and returns transcripts in strict index
// order regardless of completion order. Each worker downloads its chunk,
// transcribes it, and persists the transcript before reporting completion;
// onProcessed receives the running processed count. The first chunk failure
// aborts the batch and surfaces the originating error; transcripts already
// persisted are retained.
func (cp *ChunkProcessor) Process(ctx context.Context, chunks []StoredChunk, language string, persist ChunkPersister, sink progress.Sink, onProcessed func(count int)) ([]string, error) {
	if sink == nil {
		sink = progress.Discard
	}
	total := len(chunks)
	if total == 0 {
		return nil, nil
	}

	return runOrdered(cp.workers, total,
		func(i int) (string, error) {
			chunk := chunks[i]
			data, err := cp.fetch.Download(ctx, chunk.URL)
			if err != nil {
				return "", fmt.Errorf("pipeline: download chunk %d: %w", chunk.Index, err)
			}
			name := fmt.Sprintf("chunk_%03d.m4a", chunk.Index)
			text, err := cp.speech.Transcribe(ctx, data, name, language)
			if err != nil {
				return "", fmt.Errorf("pipeline: transcribe chunk %d: %w", chunk.Index, err)
			}
			// Durability before aggregation.
			if persist != nil {
				if err := persist.SetChunkTranscript(chunk.ID, text); err != nil {
					return "", fmt.Errorf("pipeline: persist chunk %d: %w", chunk.Index, err)
				}
			}
			return text, nil
		},
		func(completed int) {
			sink.Report(completed*100/total, fmt.Sprintf("Transcribed chunk %d/%d", completed, total))
			if onProcessed != nil {
				onProcessed(completed)
			}
		},
	)
}
