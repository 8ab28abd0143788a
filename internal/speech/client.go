// Package speech calls the speech-to-text HTTP service.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client talks to an OpenAI-compatible audio transcription endpoint. One
// client is constructed per process and injected into components.
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	http           *http.Client
	maxElapsedTime time.Duration
}

// New returns a speech client. A nil httpClient gets a default sized for
// uploading multi-megabyte chunks.
func New(baseURL, apiKey, model string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 300 * time.Second}
	}
	if model == "" {
		model = "whisper-1"
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		model:          model,
		http:           httpClient,
		maxElapsedTime: 90 * time.Second,
	}
}

// Transcribe uploads audio bytes and returns the transcript text. The
// filename hint helps the backend detect the container format; language is
// optional.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("speech: api key not configured")
	}
	if filename == "" {
		filename = "audio.m4a"
	}

	body, contentType, err := c.buildForm(audio, filename, language)
	if err != nil {
		return "", err
	}

	var text string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("speech: build request: %w", err))
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("speech: transcribe: %w", err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("speech: transcribe: server error %d: %s", resp.StatusCode, truncate(respBody, 200))
		}
		if resp.StatusCode >= 400 {
			// Surfaced unretried so the job-level classifier sees the
			// status code text (401, 404, 413, 429, ...).
			return backoff.Permanent(fmt.Errorf("speech: transcribe: status %d: %s", resp.StatusCode, truncate(respBody, 200)))
		}

		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return fmt.Errorf("speech: decode response: %w body=%s", err, truncate(respBody, 200))
		}
		text = parsed.Text
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsedTime
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) buildForm(audio []byte, filename, language string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("model", c.model); err != nil {
		return nil, "", fmt.Errorf("speech: write form: %w", err)
	}
	if language != "" {
		if err := w.WriteField("language", language); err != nil {
			return nil, "", fmt.Errorf("speech: write form: %w", err)
		}
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("speech: write form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("speech: write form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("speech: write form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
