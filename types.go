package goAuthClient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request is the descriptor of one outbound API call.
//
// Path is relative to Transport.BaseURL. Body is kept as bytes so the request
// can be replayed after a credential refresh. A Request must not be shared
// between concurrent Send calls.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	retried bool
}

// NewRequest builds a descriptor without a body.
func NewRequest(method, path string) *Request {
	return &Request{
		Method: method,
		Path:   path,
	}
}

// NewJSONRequest builds a descriptor with v encoded as the JSON body.
func NewJSONRequest(method, path string, v any) (*Request, error) {
	req := NewRequest(method, path)
	if v == nil {
		return req, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

// Retried reports whether the descriptor was already replayed after a refresh.
func (r *Request) Retried() bool {
	return r != nil && r.retried
}

func (r *Request) validate() error {
	if r == nil {
		return ErrInvalidRequest
	}
	if strings.TrimSpace(r.Method) == "" {
		return errors.Join(ErrInvalidRequest, errors.New("method required"))
	}
	if !strings.HasPrefix(r.Path, "/") {
		return errors.Join(ErrInvalidRequest, errors.New("path must start with /"))
	}
	return nil
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into v. An empty body is a no-op.
func (r *Response) DecodeJSON(v any) error {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Doer issues HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Refresher renews the ambient credential. A nil error means the credential
// was renewed and replays may proceed.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) error

// Refresh calls f(ctx).
func (f RefresherFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}

// SessionTermination describes an unrecoverable refresh failure.
type SessionTermination struct {
	At        time.Time
	Cause     error
	LoginPath string
	// Released counts the pending callers rejected together with the originator.
	Released int
}

// SessionObserver is notified once per failed refresh cycle. It owns local
// identity state and navigation; the gateway only emits the notification.
type SessionObserver interface {
	OnSessionTerminated(ctx context.Context, t SessionTermination)
}

// SessionObserverFunc adapts a function to SessionObserver.
type SessionObserverFunc func(ctx context.Context, t SessionTermination)

// OnSessionTerminated calls f(ctx, t).
func (f SessionObserverFunc) OnSessionTerminated(ctx context.Context, t SessionTermination) {
	f(ctx, t)
}
