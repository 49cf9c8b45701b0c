package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestUpload_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if r.URL.Path != "/orders/JOHN001_001/0_front.jpg" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("content type = %s, want image/jpeg", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "jpeg-bytes" {
			t.Errorf("body = %q", body)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	url, err := client.Upload(ctx, "orders/JOHN001_001/0_front.jpg", "image/jpeg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if url != ts.URL+"/orders/JOHN001_001/0_front.jpg" {
		t.Fatalf("url = %s", url)
	}

	key, ok := client.KeyFromURL(url)
	if !ok || key != "orders/JOHN001_001/0_front.jpg" {
		t.Fatalf("KeyFromURL = %q, %v", key, ok)
	}
}

func TestUpload_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	_, err := client.Upload(context.Background(), "a.jpg", "image/jpeg", []byte("x"))
	var throttled *ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected ThrottledError, got %v", err)
	}
	if throttled.RetryAfter < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", throttled.RetryAfter)
	}
}

func TestUpload_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	if _, err := client.Upload(context.Background(), "a.jpg", "", []byte("x")); err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestDelete_NotFoundIsOK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	if err := NewClient(ts.URL).Delete(context.Background(), "gone.jpg"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
}

func TestDelete_Forbidden(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	if err := NewClient(ts.URL).Delete(context.Background(), "a.jpg"); err == nil {
		t.Fatalf("expected error for 403")
	}
}

func TestNotConfigured(t *testing.T) {
	client := NewClient("")

	if _, err := client.Upload(context.Background(), "a.jpg", "", nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := client.Delete(context.Background(), "a.jpg"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, ok := client.KeyFromURL("http://elsewhere/a.jpg"); ok {
		t.Fatalf("KeyFromURL must fail without base url")
	}
}
