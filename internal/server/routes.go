package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snipnote/scribed/internal/logger"
	"github.com/snipnote/scribed/internal/models"
	"github.com/snipnote/scribed/internal/progress"
	"github.com/snipnote/scribed/internal/store"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, st JobStore, transcribe Transcriber, log *logger.Logger) {
	router.GET("/healthz", handleHealth())
	router.POST("/jobs", handleCreateJob(st, log))
	router.GET("/jobs/:id", handleGetJob(st))
	router.POST("/transcribe", handleTranscribe(transcribe, log))
}

type chunkUpload struct {
	Index      int    `json:"index"`
	StorageURL string `json:"storage_url"`
}

type createJobRequest struct {
	AudioURL    string        `json:"audio_url"`
	Mode        string        `json:"mode"`
	MeetingID   string        `json:"meeting_id"`
	TotalChunks int           `json:"total_chunks"`
	Language    string        `json:"language"`
	Duration    float64       `json:"duration"`
	Chunks      []chunkUpload `json:"chunks"`
}

type jobResponse struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	Mode            string          `json:"mode"`
	Progress        int             `json:"progress"`
	Stage           string          `json:"stage,omitempty"`
	RetryCount      int             `json:"retry_count"`
	Error           string          `json:"error,omitempty"`
	Transcript      string          `json:"transcript,omitempty"`
	Overview        string          `json:"overview,omitempty"`
	Summary         string          `json:"summary,omitempty"`
	Actions         json.RawMessage `json:"actions,omitempty"`
	Duration        float64         `json:"duration,omitempty"`
	TotalChunks     int             `json:"total_chunks,omitempty"`
	ChunksProcessed int             `json:"chunks_processed,omitempty"`
	CreatedAt       string          `json:"created_at"`
	CompletedAt     string          `json:"completed_at,omitempty"`
}

func toJobResponse(job *models.Job) jobResponse {
	resp := jobResponse{
		ID:              job.ID,
		Status:          job.Status,
		Mode:            job.Mode,
		Progress:        job.Progress,
		Stage:           job.Stage,
		RetryCount:      job.RetryCount,
		Error:           job.ErrorMessage,
		Transcript:      job.Transcript,
		Overview:        job.Overview,
		Summary:         job.Summary,
		Duration:        job.Duration,
		TotalChunks:     job.TotalChunks,
		ChunksProcessed: job.ChunksProcessed,
		CreatedAt:       job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if json.Valid([]byte(job.Actions)) {
		resp.Actions = json.RawMessage(job.Actions)
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleCreateJob accepts a new transcription job. Chunked jobs may register
// their chunk set inline; the worker picks the job up on its next pass.
func handleCreateJob(st JobStore, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Mode == "" {
			req.Mode = models.ModeSingle
		}
		switch req.Mode {
		case models.ModeSingle:
			if req.AudioURL == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "audio_url is required"})
				return
			}
		case models.ModeChunked:
			if req.MeetingID == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "meeting_id is required for chunked jobs"})
				return
			}
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be single or chunked"})
			return
		}

		totalChunks := req.TotalChunks
		if totalChunks == 0 {
			totalChunks = len(req.Chunks)
		}
		job := models.Job{
			Mode:        req.Mode,
			AudioURL:    req.AudioURL,
			MeetingID:   req.MeetingID,
			TotalChunks: totalChunks,
			Language:    req.Language,
			Duration:    req.Duration,
		}
		// Job and chunks are written in one transaction: a worker pass
		// between the two writes would claim the job, find no chunks, and
		// fail it permanently.
		chunks := make([]models.AudioChunk, len(req.Chunks))
		for i, ch := range req.Chunks {
			chunks[i] = models.AudioChunk{
				MeetingID:  req.MeetingID,
				ChunkIndex: ch.Index,
				StorageURL: ch.StorageURL,
			}
		}
		if err := st.CreateJobWithChunks(&job, chunks); err != nil {
			log.WithError(err).Error("job creation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
			return
		}

		c.JSON(http.StatusCreated, toJobResponse(&job))
	}
}

func handleGetJob(st JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := st.GetJob(c.Param("id"))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
			return
		}
		c.JSON(http.StatusOK, toJobResponse(job))
	}
}

// handleTranscribe runs the transcription pipeline synchronously on an
// uploaded file. No job record is created; callers that need progress
// tracking or artifacts use POST /jobs instead.
func handleTranscribe(transcribe Transcriber, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if transcribe == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transcription is not configured"})
			return
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}

		res, err := transcribe.Transcribe(c.Request.Context(), data, fileHeader.Filename, c.PostForm("language"), progress.Discard)
		if err != nil {
			log.WithError(err).Error("synchronous transcription failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "transcription failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"text": res.Transcript, "duration": res.Duration})
	}
}
