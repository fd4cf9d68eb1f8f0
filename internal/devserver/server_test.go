package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testEnv struct {
	srv  *Server
	http *httptest.Server
	mr   *miniredis.Miniredis
	rdb  *redis.Client
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	srv, err := New(cfg, rdb, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	hs := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		hs.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &testEnv{srv: srv, http: hs, mr: mr, rdb: rdb}
}

func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (e *testEnv) login(t *testing.T, c *http.Client, email string) memberView {
	t.Helper()
	resp := e.do(t, c, http.MethodPost, "/api/dev/login", map[string]string{"email": email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	var m memberView
	decode(t, resp, &m)
	return m
}

func (e *testEnv) do(t *testing.T, c *http.Client, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.http.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) refreshCookie(t *testing.T, c *http.Client) string {
	t.Helper()
	u, _ := url.Parse(e.http.URL + "/api/auth/reissue")
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == refreshCookieName {
			return ck.Value
		}
	}
	return ""
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestLoginSetsCookiesAndMe(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	m := e.login(t, c, "alice@example.com")
	if m.ID == "" || m.Email != "alice@example.com" || m.Name != "alice" {
		t.Fatalf("unexpected member %+v", m)
	}
	if e.refreshCookie(t, c) == "" {
		t.Fatal("expected refresh cookie scoped to /api/auth")
	}

	resp := e.do(t, c, http.MethodGet, "/api/members/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status %d", resp.StatusCode)
	}
	var me memberView
	decode(t, resp, &me)
	if me.ID != m.ID {
		t.Fatalf("me returned %q, want %q", me.ID, m.ID)
	}
}

func TestGuardRejectsAnonymousWithBare401(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, e.client(t), http.MethodGet, "/api/members/me", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Fatalf("expected empty body, got %q", body)
	}
}

func TestExpireAccessTokensThenReissue(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)
	e.login(t, c, "bob@example.com")

	e.srv.ExpireAccessTokens()
	if resp := e.do(t, c, http.MethodGet, "/api/members/me", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after expiry, got %d", resp.StatusCode)
	}

	before := e.refreshCookie(t, c)
	resp := e.do(t, c, http.MethodPost, "/api/auth/reissue", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reissue status %d", resp.StatusCode)
	}
	var env struct {
		Success bool `json:"success"`
	}
	decode(t, resp, &env)
	if !env.Success {
		t.Fatal("expected success envelope")
	}
	if after := e.refreshCookie(t, c); after == "" || after == before {
		t.Fatal("expected refresh token to rotate")
	}
	if e.srv.ReissueCount() != 1 {
		t.Fatalf("expected one reissue, got %d", e.srv.ReissueCount())
	}

	if resp := e.do(t, c, http.MethodGet, "/api/members/me", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after reissue, got %d", resp.StatusCode)
	}
}

func TestReissueReuseRevokesFamily(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)
	e.login(t, c, "carol@example.com")

	stolen := e.refreshCookie(t, c)
	if resp := e.do(t, c, http.MethodPost, "/api/auth/reissue", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("first reissue status %d", resp.StatusCode)
	}

	_, _, err := e.srv.refresh.Rotate(context.Background(), stolen)
	if !errors.Is(err, ErrRefreshReused) {
		t.Fatalf("expected reuse detection, got %v", err)
	}

	// The legitimate holder lost the family too.
	if resp := e.do(t, c, http.MethodPost, "/api/auth/reissue", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after family revocation, got %d", resp.StatusCode)
	}
}

func TestRevokeRefreshTokensFailsReissue(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)
	e.login(t, c, "dave@example.com")

	if err := e.srv.RevokeRefreshTokens(context.Background()); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	resp := e.do(t, c, http.MethodPost, "/api/auth/reissue", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Fatalf("expected empty body, got %q", body)
	}
	if keys := e.mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no refresh keys left, got %v", keys)
	}
}

func TestRefreshFamilyTTL(t *testing.T) {
	e := newTestEnv(t, func(c *Config) { c.RefreshTTL = time.Hour })
	c := e.client(t)
	e.login(t, c, "erin@example.com")

	keys := e.mr.Keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "mcpanda:refresh:") {
		t.Fatalf("unexpected keys %v", keys)
	}
	if ttl := e.mr.TTL(keys[0]); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected ttl %s", ttl)
	}

	e.mr.FastForward(2 * time.Hour)
	if resp := e.do(t, c, http.MethodPost, "/api/auth/reissue", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected expired family to fail, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesFamily(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)
	e.login(t, c, "frank@example.com")

	if resp := e.do(t, c, http.MethodPost, "/api/auth/logout", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status %d", resp.StatusCode)
	}
	if keys := e.mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected family deleted, got %v", keys)
	}
	if resp := e.do(t, c, http.MethodGet, "/api/members/me", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestArticleLifecycle(t *testing.T) {
	e := newTestEnv(t, func(c *Config) { c.SeedData = false })
	alice := e.client(t)
	bob := e.client(t)
	e.login(t, alice, "alice@example.com")
	e.login(t, bob, "bob@example.com")

	resp := e.do(t, alice, http.MethodPost, "/api/articles", articleInput{Title: "Hello", Content: "World", Mcps: []string{"github"}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	var created articleView
	decode(t, resp, &created)

	if resp := e.do(t, bob, http.MethodPut, "/api/articles/"+created.ID, articleInput{Title: "x", Content: "y"}); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author update, got %d", resp.StatusCode)
	}

	resp = e.do(t, bob, http.MethodPost, "/api/articles/"+created.ID+"/recommends", nil)
	var rec struct {
		RecommendCount int  `json:"recommendCount"`
		Liked          bool `json:"liked"`
	}
	decode(t, resp, &rec)
	if rec.RecommendCount != 1 || !rec.Liked {
		t.Fatalf("unexpected recommendation %+v", rec)
	}
	resp = e.do(t, bob, http.MethodPost, "/api/articles/"+created.ID+"/recommends", nil)
	decode(t, resp, &rec)
	if rec.RecommendCount != 0 || rec.Liked {
		t.Fatalf("expected toggle off, got %+v", rec)
	}

	resp = e.do(t, bob, http.MethodPost, "/api/comments/"+created.ID+"/comment", map[string]string{"content": "nice"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("comment status %d", resp.StatusCode)
	}
	var cr struct {
		CommentID string `json:"commentId"`
	}
	decode(t, resp, &cr)

	if resp := e.do(t, alice, http.MethodDelete, "/api/comments/"+created.ID+"/"+cr.CommentID, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author comment delete, got %d", resp.StatusCode)
	}

	resp = e.do(t, e.client(t), http.MethodGet, "/api/articles/"+created.ID, nil)
	var detail articleView
	decode(t, resp, &detail)
	if detail.CommentsCount != 1 || len(detail.Comments) != 1 || detail.Comments[0].Content != "nice" {
		t.Fatalf("unexpected detail %+v", detail)
	}

	if resp := e.do(t, alice, http.MethodDelete, "/api/articles/"+created.ID, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d", resp.StatusCode)
	}
	if resp := e.do(t, alice, http.MethodGet, "/api/articles/"+created.ID, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCreateArticleValidation(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)
	e.login(t, c, "alice@example.com")

	for name, in := range map[string]articleInput{
		"no title":   {Content: "c"},
		"long title": {Title: strings.Repeat("가", 101), Content: "c"},
		"no content": {Title: "t"},
		"many mcps":  {Title: "t", Content: "c", Mcps: []string{"a", "b", "c", "d"}},
	} {
		if resp := e.do(t, c, http.MethodPost, "/api/articles", in); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
}

func TestListArticlesPaging(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, e.client(t), http.MethodGet, "/api/articles?size=2&page=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", resp.StatusCode)
	}
	var page struct {
		Page          int           `json:"page"`
		TotalPages    int           `json:"totalPages"`
		TotalArticles int           `json:"totalArticles"`
		Articles      []articleView `json:"articles"`
	}
	decode(t, resp, &page)
	if page.Page != 2 || page.TotalPages != 2 || page.TotalArticles != 3 || len(page.Articles) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	// Oldest seed article lands last under latest-first ordering.
	if page.Articles[0].Title != "Welcome to MCPanda" {
		t.Fatalf("unexpected ordering, got %q", page.Articles[0].Title)
	}
}

func TestListArticlesRejectsStaleCookie(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)
	e.login(t, c, "alice@example.com")
	e.srv.ExpireAccessTokens()

	if resp := e.do(t, c, http.MethodGet, "/api/articles", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale cookie on optional route, got %d", resp.StatusCode)
	}
}

func TestMcps(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp := e.do(t, c, http.MethodGet, "/api/mcps", nil)
	var list []mcp
	decode(t, resp, &list)
	if len(list) != 4 {
		t.Fatalf("expected 4 seeded mcps, got %d", len(list))
	}

	resp = e.do(t, c, http.MethodGet, "/api/mcps/github", nil)
	var one mcp
	decode(t, resp, &one)
	if one.Name != "github" || one.McpServers["github"] == nil {
		t.Fatalf("unexpected mcp %+v", one)
	}

	if resp := e.do(t, c, http.MethodGet, "/api/mcps/missing", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MCPANDA_DEV_ACCESS_TTL", "1m")
	t.Setenv("MCPANDA_DEV_REISSUE_DELAY", "25ms")
	t.Setenv("MCPANDA_DEV_KEY_PREFIX", "dev")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AccessTTL != time.Minute || cfg.ReissueDelay != 25*time.Millisecond || cfg.KeyPrefix != "dev" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	t.Setenv("MCPANDA_DEV_JWT_SECRET", "short")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected short secret to fail validation")
	}
}

func TestReissueThrottle(t *testing.T) {
	e := newTestEnv(t, func(c *Config) { c.ReissueLimit = 2 })
	c := e.client(t)
	e.login(t, c, "gina@example.com")

	for i := 0; i < 2; i++ {
		if resp := e.do(t, c, http.MethodPost, "/api/auth/reissue", nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("reissue %d status %d", i, resp.StatusCode)
		}
	}
	resp := e.do(t, c, http.MethodPost, "/api/auth/reissue", nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", resp.Header.Get("Retry-After"))
	}

	e.mr.FastForward(2 * time.Minute)
	if resp := e.do(t, c, http.MethodPost, "/api/auth/reissue", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected new window to allow reissue, got %d", resp.StatusCode)
	}
}

func TestLoginThrottle(t *testing.T) {
	e := newTestEnv(t, func(c *Config) { c.LoginLimit = 1 })
	c := e.client(t)
	e.login(t, c, "hank@example.com")

	resp := e.do(t, c, http.MethodPost, "/api/dev/login", map[string]string{"email": "HANK@example.com"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for second login, got %d", resp.StatusCode)
	}

	// Other emails keep their own budget.
	e.login(t, e.client(t), "ivy@example.com")
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero access ttl":      func(c *Config) { c.AccessTTL = 0 },
		"refresh below access": func(c *Config) { c.RefreshTTL = time.Second },
		"empty prefix":         func(c *Config) { c.KeyPrefix = "" },
		"negative delay":       func(c *Config) { c.ReissueDelay = -time.Second },
		"negative limit":       func(c *Config) { c.ReissueLimit = -1 },
		"limit without window": func(c *Config) { c.LoginLimit = 3; c.ThrottleWindow = 0 },
		"zero page size":       func(c *Config) { c.DefaultPageSize = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
