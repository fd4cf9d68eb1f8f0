package goAuthClient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// roundTrip issues one HTTP exchange for req and reads the whole body.
// It never consults the refresh gate.
func (g *Gateway) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	if g.config.Transport.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Transport.RequestTimeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, g.target(req), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	g.applyHeaders(ctx, httpReq, req)

	g.metricInc(MetricRequestSent)
	resp, err := g.doer.Do(httpReq)
	if err != nil {
		g.metricInc(MetricRequestFailed)
		return nil, err
	}
	defer resp.Body.Close()

	limit := g.config.Transport.MaxResponseSize
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		g.metricInc(MetricRequestFailed)
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > limit {
		g.metricInc(MetricRequestFailed)
		return nil, fmt.Errorf("read response: body exceeds %d bytes", limit)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       data,
		}, nil
	}

	statusErr := &StatusError{
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}
	if resp.StatusCode == g.config.Refresh.AuthExpiredStatus {
		statusErr.authExpired = true
		g.metricInc(MetricAuthExpired)
	} else {
		g.metricInc(MetricRequestFailed)
	}
	return nil, statusErr
}

func (g *Gateway) target(req *Request) string {
	target := g.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	return target
}

func (g *Gateway) applyHeaders(ctx context.Context, httpReq *http.Request, req *Request) {
	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range g.config.Transport.DefaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, values := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if name := g.config.Transport.RequestIDHeader; name != "" && httpReq.Header.Get(name) == "" {
		httpReq.Header.Set(name, requestIDFor(ctx))
	}
}

func trimBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
