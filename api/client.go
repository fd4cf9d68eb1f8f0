package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

var (
	// ErrMissingID is returned before any request when a path identifier is empty.
	ErrMissingID = errors.New("api: identifier required")
	// ErrInvalidInput is returned for article or comment payloads the backend would reject.
	ErrInvalidInput = errors.New("api: invalid input")
)

const (
	maxTitleLength = 100
	maxArticleMcps = 3
)

// Sender issues request descriptors. *goAuthClient.Gateway satisfies it.
type Sender interface {
	Send(ctx context.Context, req *goAuthClient.Request) (*goAuthClient.Response, error)
}

// Client is safe for concurrent use when its Sender is.
type Client struct {
	sender Sender
}

func NewClient(sender Sender) *Client {
	return &Client{sender: sender}
}

/*
====================================
ARTICLES
====================================
*/

func (c *Client) ListArticles(ctx context.Context, q ArticleQuery) (ArticlePage, error) {
	req := goAuthClient.NewRequest(http.MethodGet, "/articles")
	req.Query = q.values()

	var page ArticlePage
	err := c.do(ctx, req, &page)
	return page, err
}

func (c *Client) GetArticle(ctx context.Context, id string) (Article, error) {
	var a Article
	if id == "" {
		return a, ErrMissingID
	}
	err := c.do(ctx, goAuthClient.NewRequest(http.MethodGet, "/articles/"+url.PathEscape(id)), &a)
	return a, err
}

func (c *Client) CreateArticle(ctx context.Context, in ArticleInput) (Article, error) {
	var a Article
	if err := in.validate(); err != nil {
		return a, err
	}
	req, err := goAuthClient.NewJSONRequest(http.MethodPost, "/articles", in)
	if err != nil {
		return a, err
	}
	err = c.do(ctx, req, &a)
	return a, err
}

func (c *Client) UpdateArticle(ctx context.Context, id string, in ArticleInput) (Article, error) {
	var a Article
	if id == "" {
		return a, ErrMissingID
	}
	if err := in.validate(); err != nil {
		return a, err
	}
	req, err := goAuthClient.NewJSONRequest(http.MethodPut, "/articles/"+url.PathEscape(id), in)
	if err != nil {
		return a, err
	}
	err = c.do(ctx, req, &a)
	return a, err
}

func (c *Client) DeleteArticle(ctx context.Context, id string) (Message, error) {
	var m Message
	if id == "" {
		return m, ErrMissingID
	}
	err := c.do(ctx, goAuthClient.NewRequest(http.MethodDelete, "/articles/"+url.PathEscape(id)), &m)
	return m, err
}

// RecommendArticle toggles the caller's recommendation.
func (c *Client) RecommendArticle(ctx context.Context, id string) (Recommendation, error) {
	var r Recommendation
	if id == "" {
		return r, ErrMissingID
	}
	err := c.do(ctx, goAuthClient.NewRequest(http.MethodPost, "/articles/"+url.PathEscape(id)+"/recommends"), &r)
	return r, err
}

/*
====================================
COMMENTS
====================================
*/

func (c *Client) AddComment(ctx context.Context, articleID, content string) (CommentResult, error) {
	var r CommentResult
	if articleID == "" {
		return r, ErrMissingID
	}
	if strings.TrimSpace(content) == "" {
		return r, errors.Join(ErrInvalidInput, errors.New("comment content required"))
	}
	req, err := goAuthClient.NewJSONRequest(http.MethodPost, "/comments/"+url.PathEscape(articleID)+"/comment", map[string]string{"content": content})
	if err != nil {
		return r, err
	}
	err = c.do(ctx, req, &r)
	return r, err
}

func (c *Client) DeleteComment(ctx context.Context, articleID, commentID string) (Message, error) {
	var m Message
	if articleID == "" || commentID == "" {
		return m, ErrMissingID
	}
	path := "/comments/" + url.PathEscape(articleID) + "/" + url.PathEscape(commentID)
	err := c.do(ctx, goAuthClient.NewRequest(http.MethodDelete, path), &m)
	return m, err
}

/*
====================================
MCPS
====================================
*/

func (c *Client) ListMcps(ctx context.Context) ([]Mcp, error) {
	var mcps []Mcp
	err := c.do(ctx, goAuthClient.NewRequest(http.MethodGet, "/mcps"), &mcps)
	return mcps, err
}

// ListMcpCategories groups ListMcps by category in order of first appearance.
func (c *Client) ListMcpCategories(ctx context.Context) ([]McpCategory, error) {
	mcps, err := c.ListMcps(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByCategory(mcps), nil
}

func (c *Client) GetMcp(ctx context.Context, name string) (Mcp, error) {
	var m Mcp
	if name == "" {
		return m, ErrMissingID
	}
	err := c.do(ctx, goAuthClient.NewRequest(http.MethodGet, "/mcps/"+url.PathEscape(name)), &m)
	return m, err
}

// GroupByCategory keeps the input order inside each group.
func GroupByCategory(mcps []Mcp) []McpCategory {
	index := make(map[string]int)
	var out []McpCategory
	for _, m := range mcps {
		i, ok := index[m.Category]
		if !ok {
			i = len(out)
			index[m.Category] = i
			out = append(out, McpCategory{Category: m.Category})
		}
		out[i].Mcps = append(out[i].Mcps, m)
	}
	return out
}

/*
====================================
MEMBERS
====================================
*/

func (c *Client) Me(ctx context.Context) (Member, error) {
	var m Member
	err := c.do(ctx, goAuthClient.NewRequest(http.MethodGet, "/members/me"), &m)
	return m, err
}

// Logout ends the server-side session. Local identity state is the caller's.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, goAuthClient.NewRequest(http.MethodPost, "/auth/logout"), nil)
}

func (c *Client) do(ctx context.Context, req *goAuthClient.Request, out any) error {
	resp, err := c.sender.Send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.DecodeJSON(out)
}

func (q ArticleQuery) values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Type != "" {
		v.Set("type", string(q.Type))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	return v
}

func (in ArticleInput) validate() error {
	var errs []error
	if strings.TrimSpace(in.Title) == "" {
		errs = append(errs, errors.New("title required"))
	}
	if len([]rune(in.Title)) > maxTitleLength {
		errs = append(errs, errors.New("title exceeds 100 characters"))
	}
	if strings.TrimSpace(in.Content) == "" {
		errs = append(errs, errors.New("content required"))
	}
	if len(in.Mcps) > maxArticleMcps {
		errs = append(errs, errors.New("at most 3 mcps"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalidInput}, errs...)...)
}
