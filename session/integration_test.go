package session_test

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/api"
	"github.com/MrEthical07/goAuthClient/internal/devserver"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stack struct {
	dev     *devserver.Server
	gw      *goAuthClient.Gateway
	api     *api.Client
	manager *session.Manager
	store   *session.RedisStore
	nav     *pathLog
}

type pathLog struct {
	mu    sync.Mutex
	paths []string
}

func (p *pathLog) Navigate(_ context.Context, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
}

func (p *pathLog) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func newStack(t *testing.T) *stack {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	devCfg := devserver.DefaultConfig()
	devCfg.ReissueDelay = 30 * time.Millisecond
	dev, err := devserver.New(devCfg, rdb, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("devserver: %v", err)
	}
	hs := httptest.NewServer(dev.Handler())

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	httpClient := &http.Client{Jar: jar, Timeout: 5 * time.Second}

	resp, err := httpClient.Post(hs.URL+"/api/dev/login", "application/json", strings.NewReader(`{"email":"alice@example.com"}`))
	if err != nil {
		t.Fatalf("dev login: %v", err)
	}
	_ = resp.Body.Close()

	s := &stack{dev: dev, nav: &pathLog{}}

	cfg := goAuthClient.DefaultConfig()
	cfg.Transport.BaseURL = hs.URL + "/api"
	cfg.Metrics.Enabled = true
	// The manager needs the api client, which needs the gateway, so the
	// observer forwards to it once wired.
	s.gw, err = goAuthClient.New().
		WithConfig(cfg).
		WithHTTPClient(httpClient).
		WithSessionObserver(goAuthClient.SessionObserverFunc(func(ctx context.Context, term goAuthClient.SessionTermination) {
			s.manager.OnSessionTerminated(ctx, term)
		})).
		WithLogger(log.New(io.Discard, "", 0)).
		Build()
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}

	s.api = api.NewClient(s.gw)
	s.store = session.NewRedisStore(rdb, "client", time.Hour)
	s.manager, err = session.NewManager(s.store, s.api, s.nav, session.Config{}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	t.Cleanup(func() {
		s.gw.Close()
		hs.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return s
}

func TestCompleteLoginAgainstBackend(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	m, err := s.manager.CompleteLogin(ctx)
	if err != nil {
		t.Fatalf("complete login: %v", err)
	}
	if m.Email != "alice@example.com" {
		t.Fatalf("unexpected member %+v", m)
	}
	stored, err := s.manager.Current(ctx)
	if err != nil || stored.ID != m.ID {
		t.Fatalf("expected stored profile %q, got %+v %v", m.ID, stored, err)
	}
}

func TestExpiredCredentialRefreshesOnceForConcurrentCallers(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	if _, err := s.manager.CompleteLogin(ctx); err != nil {
		t.Fatalf("complete login: %v", err)
	}

	s.dev.ExpireAccessTokens()

	const callers = 6
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.api.Me(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("expected every caller to succeed after refresh, got %v", err)
		}
	}
	if got := s.dev.ReissueCount(); got != 1 {
		t.Fatalf("expected exactly one reissue, got %d", got)
	}
	if !s.manager.LoggedIn(ctx) || s.manager.Terminations() != 0 {
		t.Fatal("expected session to survive a successful refresh")
	}
}

func TestRefreshFailureTerminatesSessionOnce(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	if _, err := s.manager.CompleteLogin(ctx); err != nil {
		t.Fatalf("complete login: %v", err)
	}

	if err := s.dev.RevokeRefreshTokens(ctx); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	s.dev.ExpireAccessTokens()

	_, err := s.api.Me(ctx)
	if !errors.Is(err, goAuthClient.ErrRefreshFailed) || !errors.Is(err, goAuthClient.ErrAuthExpired) {
		t.Fatalf("expected refresh failure carrying auth expiry, got %v", err)
	}

	if s.manager.Terminations() != 1 {
		t.Fatalf("expected one termination, got %d", s.manager.Terminations())
	}
	if s.manager.LoggedIn(ctx) {
		t.Fatal("expected profile cleared after termination")
	}
	paths := s.nav.snapshot()
	if len(paths) == 0 || paths[len(paths)-1] != "/login" {
		t.Fatalf("expected navigation to /login, got %v", paths)
	}
}

func TestLogoutAgainstBackend(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	if _, err := s.manager.CompleteLogin(ctx); err != nil {
		t.Fatalf("complete login: %v", err)
	}

	if err := s.manager.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s.manager.LoggedIn(ctx) {
		t.Fatal("expected logged out")
	}

	// Cookies are gone, so the next guarded call fails the refresh too.
	if _, err := s.api.Me(ctx); !errors.Is(err, goAuthClient.ErrRefreshFailed) {
		t.Fatalf("expected refresh failure after logout, got %v", err)
	}
}
