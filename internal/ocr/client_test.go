package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

func testImage() models.PreprocessedImage {
	return models.PreprocessedImage{SourceID: "sheet-1", Data: []byte("png-bytes"), Width: 10, Height: 10}
}

func fastClient(backend Backend) *Client {
	c := NewClient(backend, 2*time.Second, 3)
	c.backoffBase = time.Millisecond
	return c
}

func TestExtract_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key-123" {
			t.Errorf("Expected bearer credentials, got %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(httpOCRResponse{Text: "STA 100+00  12in  DI  1920", Confidence: 0.91})
	}))
	defer server.Close()

	client := fastClient(NewHTTPBackend(server.URL))
	result, err := client.Extract(context.Background(), testImage(), Credentials{APIKey: "key-123"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Text != "STA 100+00  12in  DI  1920" {
		t.Errorf("Unexpected text: %q", result.Text)
	}
	if result.Confidence != 0.91 {
		t.Errorf("Expected confidence 0.91, got %v", result.Confidence)
	}
	if result.SourceID != "sheet-1" {
		t.Errorf("Expected source reference sheet-1, got %q", result.SourceID)
	}
}

func TestExtract_AuthErrorNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := fastClient(NewHTTPBackend(server.URL))
	_, err := client.Extract(context.Background(), testImage(), Credentials{APIKey: "bad-key"})
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("Expected ErrAuth, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 call for auth failure, got %d", calls)
	}
}

func TestExtract_MissingKeyIsAuthError(t *testing.T) {
	client := fastClient(NewHTTPBackend("http://localhost:1"))
	_, err := client.Extract(context.Background(), testImage(), Credentials{})
	if !errors.Is(err, ErrAuth) {
		t.Errorf("Expected ErrAuth for missing key, got %v", err)
	}
}

func TestExtract_TransientFailureRetriedWithBackoff(t *testing.T) {
	var callTimes []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callTimes = append(callTimes, time.Now())
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(NewHTTPBackend(server.URL), 2*time.Second, 3)
	client.backoffBase = 10 * time.Millisecond

	_, err := client.Extract(context.Background(), testImage(), Credentials{APIKey: "key"})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("Expected ErrBackendUnavailable, got %v", err)
	}
	if len(callTimes) != 3 {
		t.Fatalf("Expected 3 attempts, got %d", len(callTimes))
	}

	firstGap := callTimes[1].Sub(callTimes[0])
	secondGap := callTimes[2].Sub(callTimes[1])
	if firstGap < 10*time.Millisecond {
		t.Errorf("First retry delay too short: %v", firstGap)
	}
	if secondGap < 20*time.Millisecond {
		t.Errorf("Second retry delay did not grow: first %v, second %v", firstGap, secondGap)
	}
}

func TestExtract_RecoversAfterTransientFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(httpOCRResponse{Text: "recovered"})
	}))
	defer server.Close()

	client := fastClient(NewHTTPBackend(server.URL))
	result, err := client.Extract(context.Background(), testImage(), Credentials{APIKey: "key"})
	if err != nil {
		t.Fatalf("Expected recovery on third attempt, got %v", err)
	}
	if result.Text != "recovered" {
		t.Errorf("Unexpected text: %q", result.Text)
	}
}

func TestExtract_EmptyTextIsEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(httpOCRResponse{Text: "   \n  "})
	}))
	defer server.Close()

	client := fastClient(NewHTTPBackend(server.URL))
	_, err := client.Extract(context.Background(), testImage(), Credentials{APIKey: "key"})
	if !errors.Is(err, ErrEmptyResult) {
		t.Errorf("Expected ErrEmptyResult, got %v", err)
	}
}

func TestExtract_TimeoutSurfacedDistinctly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(httpOCRResponse{Text: "too late"})
	}))
	defer server.Close()

	client := NewClient(NewHTTPBackend(server.URL), 20*time.Millisecond, 3)
	client.backoffBase = time.Millisecond

	_, err := client.Extract(context.Background(), testImage(), Credentials{APIKey: "key"})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
	if errors.Is(err, ErrBackendUnavailable) {
		t.Error("Timeout must not be reported as backend unavailability")
	}
}

func TestExtract_StubIsDeterministic(t *testing.T) {
	stub := &StubBackend{Text: "| A | B |\n|---|---|\n| 1 | 2 |", Confidence: 1}
	client := fastClient(stub)

	first, err := client.Extract(context.Background(), testImage(), Credentials{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, err := client.Extract(context.Background(), testImage(), Credentials{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if first.Text != second.Text || first.Confidence != second.Confidence {
		t.Error("Stub backend produced differing results across runs")
	}
	if stub.Calls() != 2 {
		t.Errorf("Expected 2 backend calls, got %d", stub.Calls())
	}
}
