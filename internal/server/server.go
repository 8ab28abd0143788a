// Package server exposes the HTTP front door: job submission, job status
// polling, and synchronous one-shot transcription.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snipnote/scribed/internal/logger"
	"github.com/snipnote/scribed/internal/models"
	"github.com/snipnote/scribed/internal/pipeline"
	"github.com/snipnote/scribed/internal/progress"
)

// JobStore is the persistence surface the HTTP handlers need.
type JobStore interface {
	CreateJob(job *models.Job) error
	CreateJobWithChunks(job *models.Job, chunks []models.AudioChunk) error
	GetJob(id string) (*models.Job, error)
}

// Transcriber runs the synchronous transcription path.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, language string, sink progress.Sink) (pipeline.Result, error)
}

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Store      JobStore
	Transcribe Transcriber
	Port       int
	Log        *logger.Logger
	Out        io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Store == nil {
		return fmt.Errorf("server: store is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}

	router := NewRouter(opts.Store, opts.Transcribe, opts.Log)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening at http://localhost:%d\n", opts.Port)
	}
	opts.Log.WithComponent("server").WithField("addr", addr).Info("http server started")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin router with all routes registered. Split out from
// Start so tests can drive it with httptest.
func NewRouter(store JobStore, transcribe Transcriber, log *logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.Discard()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, store, transcribe, log)
	return router
}
