package infra

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(1 * time.Second)

	c.Set("key1", "value1")
	v, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if v != "value1" {
		t.Fatalf("got %v, want value1", v)
	}
}

func TestCacheMiss(t *testing.T) {
	c := NewCache(1 * time.Second)
	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(1 * time.Millisecond)
	c.Set("key", "val")

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("key")
	if ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestCacheSetWithTTL(t *testing.T) {
	c := NewCache(1 * time.Hour)
	c.SetWithTTL("quick", "val", 1*time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("quick")
	if ok {
		t.Fatal("expected cache miss after custom TTL expiry")
	}
}

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("burst of 3 took %v, expected no blocking", elapsed)
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait after cancel = %v, want context.Canceled", err)
	}
}

func TestDoGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	body, status, err := DoGet(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("DoGet: %v", err)
	}
	defer body.Close()

	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	data, _ := io.ReadAll(body)
	if string(data) != "ok" {
		t.Errorf("body = %q, want ok", data)
	}
}

func TestDoGetErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	_, status, err := DoGet(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("error type = %T, want *ErrHTTP", err)
	}
}

func TestDoPostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostFormValue("token"); got != "abc" {
			t.Errorf("token = %q, want abc", got)
		}
		io.WriteString(w, "posted")
	}))
	defer srv.Close()

	form := url.Values{"token": {"abc"}}
	body, _, err := DoPostForm(context.Background(), srv.Client(), srv.URL, form, nil)
	if err != nil {
		t.Fatalf("DoPostForm: %v", err)
	}
	body.Close()
}
