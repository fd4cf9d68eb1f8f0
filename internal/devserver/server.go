package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const refreshCookieName = "refreshToken"

var errStaleGeneration = errors.New("access token generation revoked")

// Server emulates the MCPanda API: cookie credentials, reissue with refresh
// rotation, and the community endpoints. Content lives in memory; refresh
// token families live in Redis.
type Server struct {
	cfg     Config
	jwt     *jwt.Manager
	refresh *refreshStore
	reissue *throttle
	login   *throttle
	logger  *log.Logger
	mux     *http.ServeMux

	generation atomic.Uint32
	reissues   atomic.Int64
	requests   atomic.Int64

	mu       sync.RWMutex
	members  map[string]*member
	byEmail  map[string]string
	articles map[string]*article
	seq      int64
	mcps     []mcp
}

// New builds a Server. rdb holds refresh token families.
func New(cfg Config, rdb redis.UniversalClient, logger *log.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rdb == nil {
		return nil, errors.New("devserver: redis client required")
	}
	if logger == nil {
		logger = log.Default()
	}

	manager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(cfg.JWTSecret),
		Issuer:        cfg.Issuer,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		jwt:      manager,
		refresh:  newRefreshStore(rdb, cfg.KeyPrefix, cfg.RefreshTTL),
		reissue:  newThrottle(rdb, cfg.KeyPrefix+":reissue", cfg.ReissueLimit, cfg.ThrottleWindow),
		login:    newThrottle(rdb, cfg.KeyPrefix+":login", cfg.LoginLimit, cfg.ThrottleWindow),
		logger:   logger,
		members:  make(map[string]*member),
		byEmail:  make(map[string]string),
		articles: make(map[string]*article),
	}
	if cfg.SeedData {
		s.seed()
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	guard := middleware.CookieGuard(s)
	optional := middleware.OptionalAuth(s)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/dev/login", s.handleDevLogin)
	mux.HandleFunc("POST /api/auth/reissue", s.handleReissue)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.Handle("GET /api/members/me", guard(http.HandlerFunc(s.handleMe)))

	mux.Handle("GET /api/articles", optional(http.HandlerFunc(s.handleListArticles)))
	mux.Handle("POST /api/articles", guard(http.HandlerFunc(s.handleCreateArticle)))
	mux.Handle("GET /api/articles/{id}", optional(http.HandlerFunc(s.handleGetArticle)))
	mux.Handle("PUT /api/articles/{id}", guard(http.HandlerFunc(s.handleUpdateArticle)))
	mux.Handle("DELETE /api/articles/{id}", guard(http.HandlerFunc(s.handleDeleteArticle)))
	mux.Handle("POST /api/articles/{id}/recommends", guard(http.HandlerFunc(s.handleRecommend)))

	mux.Handle("POST /api/comments/{articleId}/comment", guard(http.HandlerFunc(s.handleAddComment)))
	mux.Handle("DELETE /api/comments/{articleId}/{commentId}", guard(http.HandlerFunc(s.handleDeleteComment)))

	mux.HandleFunc("GET /api/mcps", s.handleListMcps)
	mux.HandleFunc("GET /api/mcps/{name}", s.handleGetMcp)

	s.mux = mux
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.mux.ServeHTTP(w, r)
	})
}

// ValidateAccess verifies signature, expiry and generation. It makes Server a
// middleware.Validator.
func (s *Server) ValidateAccess(_ context.Context, token string) (*jwt.AccessClaims, error) {
	claims, err := s.jwt.ParseAccess(token)
	if err != nil {
		return nil, err
	}
	if claims.Generation != s.generation.Load() {
		return nil, errStaleGeneration
	}
	s.mu.RLock()
	_, ok := s.members[claims.MemberID]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.New("unknown member")
	}
	return claims, nil
}

/*
====================================
TEST HOOKS
====================================
*/

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid, so the next reissue succeeds.
func (s *Server) ExpireAccessTokens() {
	s.generation.Add(1)
}

// RevokeRefreshTokens deletes every refresh family, so the next reissue fails.
func (s *Server) RevokeRefreshTokens(ctx context.Context) error {
	_, err := s.refresh.RevokeAll(ctx)
	return err
}

// ReissueCount returns how many reissue calls were received.
func (s *Server) ReissueCount() int64 {
	return s.reissues.Load()
}

// RequestCount returns how many requests were received on any route.
func (s *Server) RequestCount() int64 {
	return s.requests.Load()
}

/*
====================================
AUTH HANDLERS
====================================
*/

// handleDevLogin stands in for the OAuth2 success handler: it signs the member
// in by email and sets both credential cookies.
func (s *Server) handleDevLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Nickname string `json:"nickname"`
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !strings.Contains(body.Email, "@") {
		writeMessage(w, http.StatusBadRequest, "valid email required")
		return
	}

	if err := s.login.Allow(r.Context(), strings.ToLower(body.Email)); err != nil {
		s.writeThrottleError(w, err)
		return
	}

	m := s.upsertMember(body.Email, body.Name, body.Nickname, body.Provider)
	if err := s.issueCredentials(r.Context(), w, m); err != nil {
		s.logger.Printf("devserver: issue credentials: %v", err)
		writeMessage(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, m.view())
}

// handleReissue rotates the refresh token and mints a new access token. A
// missing, unknown or reused token answers 401 with an empty body.
func (s *Server) handleReissue(w http.ResponseWriter, r *http.Request) {
	s.reissues.Add(1)

	if s.cfg.ReissueDelay > 0 {
		select {
		case <-time.After(s.cfg.ReissueDelay):
		case <-r.Context().Done():
			return
		}
	}

	c, err := r.Cookie(refreshCookieName)
	if err != nil || c.Value == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if f, _, err := decodeRefreshToken(c.Value); err == nil {
		if err := s.reissue.Allow(r.Context(), f.String()); err != nil {
			s.writeThrottleError(w, err)
			return
		}
	}

	memberID, next, err := s.refresh.Rotate(r.Context(), c.Value)
	if err != nil {
		if errors.Is(err, ErrRefreshReused) {
			s.logger.Printf("devserver: refresh token reuse detected, family revoked")
		}
		s.clearCredentials(w)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	m, ok := s.member(memberID)
	if !ok {
		s.clearCredentials(w)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	access, err := s.jwt.CreateAccess(m.ID, m.Email, m.Role, s.generation.Load())
	if err != nil {
		s.logger.Printf("devserver: create access: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.setCookies(w, access, next)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		if err := s.refresh.Revoke(r.Context(), c.Value); err != nil {
			s.logger.Printf("devserver: revoke refresh: %v", err)
		}
	}
	s.clearCredentials(w)
	writeMessage(w, http.StatusOK, "logged out")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	m, ok := s.member(claims.MemberID)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, m.view())
}

func (s *Server) issueCredentials(ctx context.Context, w http.ResponseWriter, m member) error {
	access, err := s.jwt.CreateAccess(m.ID, m.Email, m.Role, s.generation.Load())
	if err != nil {
		return err
	}
	refresh, err := s.refresh.Issue(ctx, m.ID)
	if err != nil {
		return err
	}
	s.setCookies(w, access, refresh)
	return nil
}

func (s *Server) setCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookieName,
		Value:    access,
		Path:     "/",
		MaxAge:   int(s.cfg.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refresh,
		Path:     "/api/auth",
		MaxAge:   int(s.cfg.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCredentials(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{middleware.AccessCookieName, "/"},
		{refreshCookieName, "/api/auth"},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.cfg.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

/*
====================================
MEMBERS
====================================
*/

// upsertMember returns a copy of the stored member.
func (s *Server) upsertMember(email, name, nickname, provider string) member {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if id, ok := s.byEmail[strings.ToLower(email)]; ok {
		m := s.members[id]
		m.UpdatedAt = now
		return *m
	}

	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	if nickname == "" {
		nickname = name
	}
	if provider == "" {
		provider = "github"
	}
	m := &member{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Nickname:  nickname,
		Role:      "USER",
		Providers: []string{provider},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.members[m.ID] = m
	s.byEmail[strings.ToLower(email)] = m.ID
	return *m
}

func (s *Server) member(id string) (member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return member{}, false
	}
	return *m, true
}

func (s *Server) writeThrottleError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrThrottled) {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.ThrottleWindow.Seconds())))
		writeMessage(w, http.StatusTooManyRequests, "too many attempts")
		return
	}
	s.logger.Printf("devserver: throttle: %v", err)
	writeMessage(w, http.StatusServiceUnavailable, "try again later")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"message": fmt.Sprintf(format, args...)})
}
