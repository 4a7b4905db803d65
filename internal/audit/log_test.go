package audit

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"clipstream.dev/internal/auth"
	"clipstream.dev/internal/obs"
)

func TestLogEventEnrichesWithContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	obs.SetLogger(zap.New(core))

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithPrincipal(ctx, auth.Profile{ID: "user-7", Username: "alice"})

	if err := LogEvent(ctx, "auth.login", zap.String("extra", "x")); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event"] != "auth.login" {
		t.Fatalf("unexpected event: %v", fields["event"])
	}
	if fields["request_id"] != "req-123" {
		t.Fatalf("unexpected request_id: %v", fields["request_id"])
	}
	if fields["user_id"] != "user-7" {
		t.Fatalf("unexpected user_id: %v", fields["user_id"])
	}
	if fields["extra"] != "x" {
		t.Fatalf("expected passthrough field, got %v", fields)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty event name")
	}
}
