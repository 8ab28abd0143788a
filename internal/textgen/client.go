// Package textgen derives summary artifacts from transcripts via a
// text-generation HTTP service.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Action is one extracted action item.
type Action struct {
	Action   string `json:"action"`
	Priority string `json:"priority"` // HIGH, MED, LOW
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	http           *http.Client
	maxElapsedTime time.Duration
}

// New returns a text-generation client.
func New(baseURL, apiKey, model string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		model:          model,
		http:           httpClient,
		maxElapsedTime: 60 * time.Second,
	}
}

const summaryPrompt = `You are a meeting assistant. Write a structured summary of the transcript below with sections for key topics, decisions made, and open questions. Be concise and factual.

Transcript:
"""%s"""`

const overviewPrompt = `Write exactly one sentence that captures what this meeting was about, based on the summary below.

Summary:
"""%s"""`

const actionsPrompt = `Extract action items from the meeting summary below. Return ONLY a JSON array where each element is {"action": "...", "priority": "HIGH"|"MED"|"LOW"}. Return [] if there are none.

Summary:
"""%s"""`

// Summary produces a structured multi-section summary from a transcript.
func (c *Client) Summary(ctx context.Context, transcript string) (string, error) {
	out, err := c.chat(ctx, fmt.Sprintf(summaryPrompt, transcript))
	if err != nil {
		return "", fmt.Errorf("textgen: summary: %w", err)
	}
	return out, nil
}

// Overview produces a one-sentence overview from a summary.
func (c *Client) Overview(ctx context.Context, summary string) (string, error) {
	out, err := c.chat(ctx, fmt.Sprintf(overviewPrompt, summary))
	if err != nil {
		return "", fmt.Errorf("textgen: overview: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Actions extracts action items from a summary. Responses wrapped in code
// fences are unwrapped first; a result that is not a JSON array yields an
// empty list rather than an error.
func (c *Client) Actions(ctx context.Context, summary string) ([]Action, error) {
	out, err := c.chat(ctx, fmt.Sprintf(actionsPrompt, summary))
	if err != nil {
		return nil, fmt.Errorf("textgen: actions: %w", err)
	}
	return parseActions(out), nil
}

// parseActions tolerates fenced and malformed model output.
func parseActions(raw string) []Action {
	var actions []Action
	if err := json.Unmarshal([]byte(StripFences(raw)), &actions); err != nil {
		return []Action{}
	}
	if actions == nil {
		return []Action{}
	}
	return actions
}

// StripFences removes a surrounding markdown code fence (``` or ```json)
// from model output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		// drop the language tag line ("json", "JSON", or empty)
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// chat sends a single-turn chat completion request and returns the message
// content, retrying transient failures.
func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("api key not configured")
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var content string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(body, 200))
		}
		if resp.StatusCode >= 400 {
			// Surfaced unretried so the job-level classifier sees the
			// status code text (401, 404, 429, ...).
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
		}

		var parsed struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("decode response: %w body=%s", err, truncate(body, 200))
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("empty choices in response"))
		}
		content = parsed.Choices[0].Message.Content
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsedTime
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return content, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
