package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/jwt"
)

const maxBodySize = 64 << 10

var (
	// ErrRejected is returned when the reissue endpoint refuses to mint a new
	// credential: a non-2xx status or an explicit {"success": false}.
	ErrRejected = errors.New("refresh rejected")
	// ErrMalformedResponse is returned for a 2xx body that is neither empty,
	// a success envelope, nor a token pair.
	ErrMalformedResponse = errors.New("malformed refresh response")
)

// Doer is the HTTP client carrying the credential cookies.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	// Endpoint is the absolute reissue URL, e.g. http://host/api/auth/reissue.
	Endpoint string
	Doer     Doer
	// Method defaults to POST.
	Method string
	// Header is added to every refresh request.
	Header http.Header
}

// Result describes a successful refresh.
type Result struct {
	StatusCode int
	// AccessExpiresAt is set when the body carried an access token with an
	// exp claim. The cookie-based flow usually leaves it zero.
	AccessExpiresAt time.Time
	// Rotated reports whether the body carried a new refresh token.
	Rotated bool
}

// Client issues refresh calls. It is safe for concurrent use, although the
// gateway guarantees only one call is in flight.
type Client struct {
	endpoint string
	method   string
	header   http.Header
	doer     Doer
}

type envelope struct {
	Success      *bool  `json:"success"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Doer == nil {
		return nil, errors.New("refresh doer required")
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return nil, errors.New("refresh endpoint must be an absolute http(s) url")
	}
	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	return &Client{
		endpoint: cfg.Endpoint,
		method:   method,
		header:   cfg.Header.Clone(),
		doer:     cfg.Doer,
	}, nil
}

// Refresh performs one reissue call and reports only whether it succeeded.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.Reissue(ctx)
	return err
}

// Reissue performs one reissue call.
func (c *Client) Reissue(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, c.method, c.endpoint, http.NoBody)
	if err != nil {
		return Result{}, err
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Result{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	result := Result{StatusCode: resp.StatusCode}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return result, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.Success != nil && !*env.Success {
		return Result{}, fmt.Errorf("%w: success=false", ErrRejected)
	}
	if env.Success == nil && env.AccessToken == "" {
		return Result{}, ErrMalformedResponse
	}

	if env.AccessToken != "" {
		if exp, err := jwt.InspectExpiry(env.AccessToken); err == nil {
			result.AccessExpiresAt = exp
		}
	}
	result.Rotated = env.RefreshToken != ""
	return result, nil
}
