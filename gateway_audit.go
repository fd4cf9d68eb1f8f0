package goAuthClient

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRefreshStarted    = "refresh_started"
	auditEventRefreshSuccess    = "refresh_success"
	auditEventRefreshFailure    = "refresh_failure"
	auditEventRetryExhausted    = "retry_exhausted"
	auditEventSessionTerminated = "session_terminated"
)

// AuditErrorCode is the stable error label written into AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrAuthExpired    AuditErrorCode = "auth_expired"
	auditErrRefreshTimeout AuditErrorCode = "refresh_timeout"
	auditErrRefreshFailed  AuditErrorCode = "refresh_failed"
	auditErrRetryExhausted AuditErrorCode = "retry_exhausted"
	auditErrCanceled       AuditErrorCode = "canceled"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (g *Gateway) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	req *Request,
	err error,
	metadataBuilder func() map[string]string,
) {
	if g == nil || g.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Success:   success,
		Metadata:  metadata,
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		event.RequestID = id
	}
	if req != nil {
		event.Method = req.Method
		event.Path = req.Path
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	g.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRetryExhausted):
		return auditErrRetryExhausted
	case errors.Is(err, ErrRefreshTimeout):
		return auditErrRefreshTimeout
	case errors.Is(err, context.Canceled):
		return auditErrCanceled
	case errors.Is(err, ErrAuthExpired):
		return auditErrAuthExpired
	case errors.Is(err, ErrRefreshFailed):
		return auditErrRefreshFailed
	default:
		return auditErrInternal
	}
}
