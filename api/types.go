package api

import (
	"encoding/json"
	"sort"
)

// ArticleSort selects the list ordering.
type ArticleSort string

const (
	SortLatest    ArticleSort = "latest"
	SortRecommend ArticleSort = "recommend"
)

// ArticleQuery filters and pages the article list. Zero values are omitted.
type ArticleQuery struct {
	Search   string
	Type     ArticleSort
	Page     int
	Size     int
	Category string
}

type ArticlePage struct {
	Page          int       `json:"page"`
	TotalPages    int       `json:"totalPages"`
	TotalArticles int64     `json:"totalArticles"`
	Articles      []Article `json:"articles"`
}

type Author struct {
	MemberID string `json:"memberId,omitempty"`
	Name     string `json:"name"`
}

// Article is both the list entry and the detail view; Comments is only set on detail.
type Article struct {
	ID             string    `json:"id"`
	IsNotice       bool      `json:"isNotice"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Mcps           McpRefs   `json:"mcps"`
	Category       string    `json:"category,omitempty"`
	CreatedAt      string    `json:"createdAt"`
	Author         Author    `json:"author"`
	RecommendCount int       `json:"recommendCount"`
	CommentsCount  int       `json:"commentsCount"`
	Comments       []Comment `json:"comments,omitempty"`
}

// UnmarshalJSON accepts the legacy "_id" key used by some list endpoints.
func (a *Article) UnmarshalJSON(data []byte) error {
	type plain Article
	aux := struct {
		*plain
		LegacyID string `json:"_id"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = aux.LegacyID
	}
	return nil
}

// McpRefs lists the MCP names attached to an article. The backend sends
// either an array of names or an object keyed by name; both decode to the
// names, the object form sorted.
type McpRefs []string

func (m *McpRefs) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = nil
		return nil
	}

	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		*m = names
		return nil
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err != nil {
		return err
	}
	names = make([]string, 0, len(keyed))
	for k := range keyed {
		names = append(names, k)
	}
	sort.Strings(names)
	*m = names
	return nil
}

type Comment struct {
	ID        string `json:"id"`
	Author    Author `json:"author"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// ArticleInput is the create and update payload.
type ArticleInput struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Mcps     []string `json:"mcps,omitempty"`
	Category string   `json:"category,omitempty"`
}

type Recommendation struct {
	Message        string `json:"message"`
	RecommendCount int    `json:"recommendCount"`
	Liked          bool   `json:"liked"`
}

type CommentResult struct {
	CommentID string `json:"commentId"`
	Message   string `json:"message"`
}

// Message is the {"message": ...} acknowledgement of delete endpoints.
type Message struct {
	Message string `json:"message"`
}

type Mcp struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Category   string         `json:"category"`
	McpServers map[string]any `json:"mcpServers"`
}

// McpCategory groups MCPs sharing a category.
type McpCategory struct {
	Category string `json:"category"`
	Mcps     []Mcp  `json:"mcps"`
}

// Member is the signed-in profile returned by /members/me.
type Member struct {
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
