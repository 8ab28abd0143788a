// Package pipeline orchestrates audio transcription: splitting, parallel
// chunk transcription, and ordered transcript reassembly.
package pipeline

import (
	"context"
	"fmt"

	"github.com/snipnote/scribed/internal/audio"
	"github.com/snipnote/scribed/internal/logger"
	"github.com/snipnote/scribed/internal/progress"
	"github.com/snipnote/scribed/internal/transcript"
)

// Transcriber is the speech-to-text service boundary.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error)
}

// Result holds the pipeline output. Duration is estimated from byte size,
// not decoded media length.
type Result struct {
	Transcript string
	Duration   float64
}

// Pipeline transcribes raw audio bytes, choosing a direct or chunked
// strategy solely by comparing input size to the chunk-size threshold.
type Pipeline struct {
	speech   Transcriber
	splitter *audio.Splitter
	workers  int
	log      *logger.Logger
}

// New builds a Pipeline. workers bounds concurrent chunk transcriptions.
func New(speech Transcriber, splitter *audio.Splitter, workers int, log *logger.Logger) *Pipeline {
	if splitter == nil {
		splitter = audio.NewSplitter(0, audio.DefaultOverlap, 0, audio.DefaultBytesPerSecond)
	}
	if workers < 1 {
		workers = 5
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{speech: speech, splitter: splitter, workers: workers, log: log.WithComponent("pipeline")}
}

// Transcribe produces a transcript for the given audio. Progress milestones
// are reported synchronously to sink on a 0-100 scale; callers map that into
// their own larger scale.
func (p *Pipeline) Transcribe(ctx context.Context, audioBytes []byte, filename, language string, sink progress.Sink) (Result, error) {
	if sink == nil {
		sink = progress.Discard
	}

	duration := p.splitter.EstimateDuration(len(audioBytes))

	if len(audioBytes) <= p.splitter.MaxChunkBytes {
		sink.Report(0, "Transcribing audio")
		text, err := p.speech.Transcribe(ctx, audioBytes, filename, language)
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: transcribe: %w", err)
		}
		sink.Report(100, "Transcription complete")
		return Result{Transcript: text, Duration: duration}, nil
	}

	sink.Report(0, "Splitting audio")
	chunks, overlapped := p.splitter.Split(audioBytes)
	p.log.WithField("chunks", len(chunks)).WithField("overlapped", overlapped).Info("audio split for parallel transcription")

	band := progress.Band(sink, 10, 90)
	total := len(chunks)
	parts, err := runOrdered(p.workers, total,
		func(i int) (string, error) {
			name := fmt.Sprintf("chunk_%03d_%s", i, filename)
			text, err := p.speech.Transcribe(ctx, chunks[i], name, language)
			if err != nil {
				return "", fmt.Errorf("pipeline: chunk %d: %w", i, err)
			}
			return text, nil
		},
		func(completed int) {
			band.Report(completed*100/total, fmt.Sprintf("Transcribed chunk %d/%d", completed, total))
		},
	)
	if err != nil {
		return Result{}, err
	}

	var text string
	if overlapped {
		text = transcript.Merge(parts)
	} else {
		text = transcript.Join(parts)
	}
	sink.Report(100, "Transcription complete")
	return Result{Transcript: text, Duration: duration}, nil
}
