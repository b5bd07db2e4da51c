package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"vlget/internal/infra/logger"
)

func testClient(attempts int) *Client {
	return New(Options{
		Attempts:  attempts,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	}, logger.Discard())
}

func TestFetchTransientThenSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	data, err := testClient(3).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("body = %q", data)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times, want exactly 2", got)
	}
}

func TestFetchPermanentNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(3).Fetch(context.Background(), srv.URL)

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *fetch.Error", err)
	}
	if fe.Status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", fe.Status)
	}
	if fe.Transient {
		t.Error("403 classified transient")
	}
	if fe.Attempts != 1 || hits.Load() != 1 {
		t.Errorf("attempts = %d, hits = %d, want 1/1", fe.Attempts, hits.Load())
	}
}

func TestFetchExhaustedBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(3).Fetch(context.Background(), srv.URL)

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *fetch.Error", err)
	}
	if !fe.Transient {
		t.Error("exhausted 502s should be marked as a spent transient budget")
	}
	if fe.Attempts != 3 || hits.Load() != 3 {
		t.Errorf("attempts = %d, hits = %d, want 3/3", fe.Attempts, hits.Load())
	}
}

func TestFetchShortReadRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Content-Length", "100")
			w.Write([]byte("truncated"))
			return
		}
		fmt.Fprint(w, "complete body")
	}))
	defer srv.Close()

	data, err := testClient(3).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "complete body" {
		t.Errorf("body = %q", data)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestFetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("x-api-key = %q", got)
		}
		fmt.Fprint(w, `{"name":"value"}`)
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	err := testClient(1).FetchJSON(context.Background(), srv.URL, map[string]string{"x-api-key": "secret"}, &out)
	if err != nil {
		t.Fatalf("FetchJSON: %v", err)
	}
	if out.Name != "value" {
		t.Errorf("decoded = %+v", out)
	}
}

func TestFetchToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "file contents")
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.bin")
	var progressed atomic.Int64
	n, err := testClient(1).FetchToFile(context.Background(), srv.URL, path, func(d int64) {
		progressed.Add(d)
	})
	if err != nil {
		t.Fatalf("FetchToFile: %v", err)
	}
	if n != int64(len("file contents")) {
		t.Errorf("written = %d", n)
	}
	if progressed.Load() != n {
		t.Errorf("progress = %d, want %d", progressed.Load(), n)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "file contents" {
		t.Errorf("file = %q", data)
	}
}

func TestFetchToFileRemovedOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.bin")
	if _, err := testClient(2).FetchToFile(context.Background(), srv.URL, path, nil); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("failed download left a file behind")
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", "4096")
		if r.Method == http.MethodHead {
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	total, resumable, err := testClient(1).Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if total != 4096 {
		t.Errorf("total = %d, want 4096", total)
	}
	if !resumable {
		t.Error("expected resumable")
	}
}

func TestFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(3).Fetch(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	base := 2 * time.Second
	max := 30 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{50, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := BackoffDelay(base, max, tc.attempt); got != tc.want {
			t.Errorf("BackoffDelay(attempt=%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}
