package devserver

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/middleware"
	"github.com/google/uuid"
)

const (
	timestampLayout = "2006-01-02T15:04:05"
	maxTitleLength  = 100
	maxArticleMcps  = 3
)

type member struct {
	ID           string
	Email        string
	Name         string
	Nickname     string
	ProfileImage string
	Role         string
	Providers    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type memberView struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	Name               string   `json:"name"`
	Nickname           string   `json:"nickname"`
	ProfileImage       string   `json:"profileImage"`
	Role               string   `json:"role"`
	ConnectedProviders []string `json:"connectedProviders"`
	CreatedAt          string   `json:"createdAt"`
	UpdatedAt          string   `json:"updatedAt"`
}

func (m *member) view() memberView {
	return memberView{
		ID:                 m.ID,
		Email:              m.Email,
		Name:               m.Name,
		Nickname:           m.Nickname,
		ProfileImage:       m.ProfileImage,
		Role:               m.Role,
		ConnectedProviders: append([]string(nil), m.Providers...),
		CreatedAt:          m.CreatedAt.Format(timestampLayout),
		UpdatedAt:          m.UpdatedAt.Format(timestampLayout),
	}
}

type comment struct {
	ID         string
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

type article struct {
	ID          string
	seq         int64
	Notice      bool
	Title       string
	Content     string
	Mcps        []string
	Category    string
	AuthorID    string
	AuthorName  string
	CreatedAt   time.Time
	recommended map[string]struct{}
	comments    []comment
}

type authorView struct {
	MemberID string `json:"memberId,omitempty"`
	Name     string `json:"name"`
}

type commentView struct {
	ID        string     `json:"id"`
	Author    authorView `json:"author"`
	Content   string     `json:"content"`
	CreatedAt string     `json:"createdAt"`
}

type articleView struct {
	ID             string        `json:"id"`
	IsNotice       bool          `json:"isNotice"`
	Title          string        `json:"title"`
	Content        string        `json:"content"`
	Mcps           []string      `json:"mcps"`
	Category       string        `json:"category,omitempty"`
	CreatedAt      string        `json:"createdAt"`
	Author         authorView    `json:"author"`
	RecommendCount int           `json:"recommendCount"`
	CommentsCount  int           `json:"commentsCount"`
	Comments       []commentView `json:"comments,omitempty"`
}

// view must be called with s.mu held.
func (a *article) view(withComments bool) articleView {
	v := articleView{
		ID:             a.ID,
		IsNotice:       a.Notice,
		Title:          a.Title,
		Content:        a.Content,
		Mcps:           append([]string{}, a.Mcps...),
		Category:       a.Category,
		CreatedAt:      a.CreatedAt.Format(timestampLayout),
		Author:         authorView{MemberID: a.AuthorID, Name: a.AuthorName},
		RecommendCount: len(a.recommended),
		CommentsCount:  len(a.comments),
	}
	if withComments {
		v.Comments = make([]commentView, 0, len(a.comments))
		for _, c := range a.comments {
			v.Comments = append(v.Comments, commentView{
				ID:        c.ID,
				Author:    authorView{MemberID: c.AuthorID, Name: c.AuthorName},
				Content:   c.Content,
				CreatedAt: c.CreatedAt.Format(timestampLayout),
			})
		}
	}
	return v
}

type mcp struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Category   string         `json:"category"`
	McpServers map[string]any `json:"mcpServers"`
}

type articleInput struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Mcps     []string `json:"mcps"`
	Category string   `json:"category"`
}

func (in articleInput) problem() string {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return "title required"
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		return "title exceeds 100 characters"
	case strings.TrimSpace(in.Content) == "":
		return "content required"
	case len(in.Mcps) > maxArticleMcps:
		return "at most 3 mcps"
	}
	return ""
}

/*
====================================
ARTICLES
====================================
*/

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := positiveInt(q.Get("page"), 1)
	size := positiveInt(q.Get("size"), s.cfg.DefaultPageSize)
	search := strings.ToLower(strings.TrimSpace(q.Get("search")))
	category := q.Get("category")
	byRecommend := q.Get("type") == "recommend"

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*article, 0, len(s.articles))
	for _, a := range s.articles {
		if category != "" && a.Category != category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Title), search) &&
			!strings.Contains(strings.ToLower(a.Content), search) {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		if byRecommend {
			ri, rj := len(matched[i].recommended), len(matched[j].recommended)
			if ri != rj {
				return ri > rj
			}
		}
		return matched[i].seq > matched[j].seq
	})

	total := len(matched)
	totalPages := (total + size - 1) / size
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	views := make([]articleView, 0, end-start)
	for _, a := range matched[start:end] {
		views = append(views, a.view(false))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":          page,
		"totalPages":    totalPages,
		"totalArticles": total,
		"articles":      views,
	})
}

func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	in, ok := decodeArticleInput(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	author := s.members[claims.MemberID]
	s.seq++
	a := &article{
		ID:          uuid.NewString(),
		seq:         s.seq,
		Title:       in.Title,
		Content:     in.Content,
		Mcps:        in.Mcps,
		Category:    in.Category,
		AuthorID:    author.ID,
		AuthorName:  author.Nickname,
		CreatedAt:   time.Now(),
		recommended: make(map[string]struct{}),
	}
	s.articles[a.ID] = a
	writeJSON(w, http.StatusCreated, a.view(false))
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[r.PathValue("id")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "article not found")
		return
	}
	writeJSON(w, http.StatusOK, a.view(true))
}

func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	in, ok := decodeArticleInput(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.ownedArticle(w, r.PathValue("id"), claims)
	if !ok {
		return
	}
	a.Title = in.Title
	a.Content = in.Content
	a.Mcps = in.Mcps
	a.Category = in.Category
	writeJSON(w, http.StatusOK, a.view(false))
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.ownedArticle(w, r.PathValue("id"), claims)
	if !ok {
		return
	}
	delete(s.articles, a.ID)
	writeMessage(w, http.StatusOK, "article deleted")
}

// handleRecommend toggles the caller's recommendation.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[r.PathValue("id")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "article not found")
		return
	}

	_, liked := a.recommended[claims.MemberID]
	msg := "recommended"
	if liked {
		delete(a.recommended, claims.MemberID)
		msg = "recommendation cancelled"
	} else {
		a.recommended[claims.MemberID] = struct{}{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        msg,
		"recommendCount": len(a.recommended),
		"liked":          !liked,
	})
}

// ownedArticle must be called with s.mu held.
func (s *Server) ownedArticle(w http.ResponseWriter, id string, claims *jwt.AccessClaims) (*article, bool) {
	a, ok := s.articles[id]
	if !ok {
		writeMessage(w, http.StatusNotFound, "article not found")
		return nil, false
	}
	if a.AuthorID != claims.MemberID {
		writeMessage(w, http.StatusForbidden, "only the author may modify this article")
		return nil, false
	}
	return a, true
}

/*
====================================
COMMENTS
====================================
*/

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Content) == "" {
		writeMessage(w, http.StatusBadRequest, "comment content required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[r.PathValue("articleId")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "article not found")
		return
	}
	author := s.members[claims.MemberID]
	c := comment{
		ID:         uuid.NewString(),
		AuthorID:   author.ID,
		AuthorName: author.Nickname,
		Content:    body.Content,
		CreatedAt:  time.Now(),
	}
	a.comments = append(a.comments, c)
	writeJSON(w, http.StatusCreated, map[string]string{"commentId": c.ID, "message": "comment created"})
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[r.PathValue("articleId")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "article not found")
		return
	}
	id := r.PathValue("commentId")
	for i, c := range a.comments {
		if c.ID != id {
			continue
		}
		if c.AuthorID != claims.MemberID {
			writeMessage(w, http.StatusForbidden, "only the author may delete this comment")
			return
		}
		a.comments = append(a.comments[:i], a.comments[i+1:]...)
		writeMessage(w, http.StatusOK, "comment deleted")
		return
	}
	writeMessage(w, http.StatusNotFound, "comment not found")
}

/*
====================================
MCPS
====================================
*/

func (s *Server) handleListMcps(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, append([]mcp{}, s.mcps...))
}

func (s *Server) handleGetMcp(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mcps {
		if m.Name == name {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "mcp %q not found", name)
}

/*
====================================
SEED
====================================
*/

func (s *Server) seed() {
	now := time.Now()
	admin := &member{
		ID:        uuid.NewString(),
		Email:     "admin@mcpanda.dev",
		Name:      "MCPanda",
		Nickname:  "MCPanda",
		Role:      "ADMIN",
		Providers: []string{"github"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.members[admin.ID] = admin
	s.byEmail[admin.Email] = admin.ID

	s.mcps = []mcp{
		{ID: uuid.NewString(), Name: "filesystem", Category: "Development", McpServers: map[string]any{
			"filesystem": map[string]any{"command": "npx", "args": []any{"-y", "@modelcontextprotocol/server-filesystem", "."}},
		}},
		{ID: uuid.NewString(), Name: "github", Category: "Development", McpServers: map[string]any{
			"github": map[string]any{"command": "npx", "args": []any{"-y", "@modelcontextprotocol/server-github"}},
		}},
		{ID: uuid.NewString(), Name: "slack", Category: "Communication", McpServers: map[string]any{
			"slack": map[string]any{"command": "npx", "args": []any{"-y", "@modelcontextprotocol/server-slack"}},
		}},
		{ID: uuid.NewString(), Name: "postgres", Category: "Database", McpServers: map[string]any{
			"postgres": map[string]any{"command": "npx", "args": []any{"-y", "@modelcontextprotocol/server-postgres"}},
		}},
	}

	for i, in := range []articleInput{
		{Title: "Welcome to MCPanda", Content: "Share the MCP servers you rely on.", Category: "notice"},
		{Title: "Filesystem plus GitHub", Content: "A minimal coding setup.", Mcps: []string{"filesystem", "github"}, Category: "Development"},
		{Title: "Team chat automation", Content: "Posting build results to Slack.", Mcps: []string{"slack"}, Category: "Communication"},
	} {
		s.seq++
		a := &article{
			ID:          uuid.NewString(),
			seq:         s.seq,
			Notice:      i == 0,
			Title:       in.Title,
			Content:     in.Content,
			Mcps:        in.Mcps,
			Category:    in.Category,
			AuthorID:    admin.ID,
			AuthorName:  admin.Nickname,
			CreatedAt:   now.Add(time.Duration(i) * time.Second),
			recommended: make(map[string]struct{}),
		}
		s.articles[a.ID] = a
	}
}

func decodeArticleInput(w http.ResponseWriter, r *http.Request) (articleInput, bool) {
	var in articleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid article payload")
		return in, false
	}
	if p := in.problem(); p != "" {
		writeMessage(w, http.StatusBadRequest, "%s", p)
		return in, false
	}
	return in, true
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
