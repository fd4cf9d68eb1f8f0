package goAuthClient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestBuilderSingleUse(t *testing.T) {
	b := New()
	gw, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer gw.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refresh.Timeout = 0
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected invalid config to fail Build")
	}
}

func TestBuilderToggles(t *testing.T) {
	gw, err := New().WithMetricsEnabled(true).WithLatencyHistograms(true).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer gw.Close()

	if !gw.metrics.Enabled() || !gw.metrics.LatencyEnabled() {
		t.Fatal("expected metrics and histograms enabled")
	}
	if gw.audit != nil {
		t.Fatal("audit dispatcher must stay nil while audit is disabled")
	}
}

// The default refresher posts to BaseURL + Refresh.Path through the same
// cookie-carrying client, so a cookie set by reissue is sent on the replay.
func TestBuilderDefaultRefresherSharesCookieJar(t *testing.T) {
	var reissues atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/reissue", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reissues.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: "fresh", Path: "/"})
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("/api/members/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("accessToken"); err != nil || c.Value != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"m-1"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Transport.BaseURL = srv.URL + "/api/"
	gw, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer gw.Close()

	resp, err := gw.Do(context.Background(), http.MethodGet, "/members/me")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if string(resp.Body) != `{"id":"m-1"}` {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if reissues.Load() != 1 {
		t.Fatalf("expected one reissue, got %d", reissues.Load())
	}
}

func TestBuilderDefaultRefresherRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/reissue", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Transport.BaseURL = srv.URL + "/api"
	o := &recordingObserver{}
	gw, err := New().WithConfig(cfg).WithSessionObserver(o).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer gw.Close()

	_, err = gw.Do(context.Background(), http.MethodGet, "/members/me")
	var refreshErr *RefreshError
	if err == nil || !errors.As(err, &refreshErr) {
		t.Fatalf("expected *RefreshError, got %v", err)
	}
	if len(o.snapshot()) != 1 {
		t.Fatal("expected session termination after rejected reissue")
	}
}
