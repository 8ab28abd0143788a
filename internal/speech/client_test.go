package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, "sk-test", "whisper-1", &http.Client{Timeout: 5 * time.Second})
	c.maxElapsedTime = 2 * time.Second
	return srv, c
}

func TestTranscribe(t *testing.T) {
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "meeting.m4a" {
			t.Errorf("filename = %q", header.Filename)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "hello from whisper"})
	})

	got, err := c.Transcribe(context.Background(), []byte("fake-audio"), "meeting.m4a", "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello from whisper" {
		t.Errorf("transcript = %q", got)
	}
}

func TestTranscribe_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "recovered"})
	})

	got, err := c.Transcribe(context.Background(), []byte("a"), "a.m4a", "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "recovered" {
		t.Errorf("transcript = %q", got)
	}
	if calls.Load() < 2 {
		t.Errorf("calls = %d, want at least 2", calls.Load())
	}
}

func TestTranscribe_ClientErrorSurfacesStatus(t *testing.T) {
	var calls atomic.Int32
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid_api_key"}`))
	})

	_, err := c.Transcribe(context.Background(), []byte("a"), "a.m4a", "")
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want to contain 401", err.Error())
	}
	if !strings.Contains(err.Error(), "invalid_api_key") {
		t.Errorf("error = %q, want to contain backend message", err.Error())
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestTranscribe_NoAPIKey(t *testing.T) {
	c := New("http://localhost:0", "", "whisper-1", nil)
	_, err := c.Transcribe(context.Background(), []byte("a"), "a.m4a", "")
	if err == nil {
		t.Fatal("expected error without api key")
	}
	if !strings.Contains(err.Error(), "api key") {
		t.Errorf("error = %q, want to mention api key", err.Error())
	}
}
