package httpretry

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient() *RetryClient {
	return NewRetryClientWithDelays(nil, 2, time.Millisecond, 5*time.Millisecond)
}

func TestDoRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"sent"}`))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := testClient().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if hits != 3 {
		t.Fatalf("server hit %d times, want 3", hits)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := testClient().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if hits != 1 {
		t.Fatalf("client error retried: %d hits", hits)
	}
}

func TestDoReturnsFinalResponseWhenRetriesExhaust(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := testClient().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	// The sender reads the last body for its failover decision.
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "upstream down" {
		t.Fatalf("body %q", body)
	}
}

func TestDoRewindsBodyBetweenAttempts(t *testing.T) {
	var hits int32
	var lastBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastBody, _ = io.ReadAll(r.Body)
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := []byte(`{"number":"5511987654321","message":"oi"}`)
	req, _ := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader(payload))
	resp, err := testClient().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()

	if hits != 2 {
		t.Fatalf("hits: %d", hits)
	}
	if !bytes.Equal(lastBody, payload) {
		t.Fatalf("retried request body %q, want %q", lastBody, payload)
	}
}

func TestBackoffStaysWithinBounds(t *testing.T) {
	rc := NewRetryClientWithDelays(nil, 5, 200*time.Millisecond, 2*time.Second)
	for attempt := 1; attempt <= 5; attempt++ {
		d := rc.backoff(attempt)
		if d < minDelay || d > rc.maxDelay {
			t.Errorf("backoff(%d) = %v outside [%v, %v]", attempt, d, minDelay, rc.maxDelay)
		}
	}
}
