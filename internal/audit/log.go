package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"clipstream.dev/internal/auth"
	"clipstream.dev/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes a session-lifecycle audit entry enriched with request and
// user context. Events: auth.register, auth.login, auth.refresh, auth.logout,
// auth.refresh.reuse_detected, auth.password.changed.
func LogEvent(ctx context.Context, event string, fields ...zap.Field) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := make([]zap.Field, 0, len(fields)+3)
	entry = append(entry, zap.String("type", "audit"), zap.String("event", event))
	if rid := RequestIDFromContext(ctx); rid != "" {
		entry = append(entry, zap.String("request_id", rid))
	}
	if principal, ok := auth.PrincipalFromContext(ctx); ok {
		entry = append(entry, zap.String("user_id", principal.ID))
	}
	entry = append(entry, fields...)
	obs.Logger().Info(event, entry...)
	return nil
}
