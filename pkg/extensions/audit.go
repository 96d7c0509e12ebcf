// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// AuditEvent records one security-relevant action: content mutations and
// admin user management.
type AuditEvent struct {
	// EventType groups events, e.g. "content.mutation", "admin.user".
	EventType string

	Timestamp time.Time

	UserID string

	// Action is one of the Action* constants.
	Action string

	// ResourceType is "card", "section", "code_snippet", "url" or "user".
	ResourceType string

	ResourceID string

	// Outcome is one of the Outcome* constants.
	Outcome string

	Metadata map[string]any
}

// AuditFilter selects events for Query. Zero fields match everything.
type AuditFilter struct {
	UserID       string
	ResourceType string
	Outcome      string
	Since        time.Time
	Limit        int
}

func (f AuditFilter) matches(e AuditEvent) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// AuditLogger records and queries audit events.
//
// Implementations must be safe for concurrent use.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events.
type NopAuditLogger struct{}

func (l *NopAuditLogger) Log(context.Context, AuditEvent) error { return nil }

func (l *NopAuditLogger) Query(context.Context, AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

func (l *NopAuditLogger) Flush(context.Context) error { return nil }

// SlogAuditLogger writes events to a slog.Logger and keeps the most recent
// ones in memory for Query.
//
// # Thread Safety
//
// Safe for concurrent use.
type SlogAuditLogger struct {
	logger *slog.Logger
	max    int

	mu     sync.Mutex
	events []AuditEvent
}

// NewSlogAuditLogger keeps up to max events in memory (default 1000).
func NewSlogAuditLogger(logger *slog.Logger, max int) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	if max <= 0 {
		max = 1000
	}
	return &SlogAuditLogger{logger: logger, max: max}
}

// Log implements AuditLogger.
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.logger.InfoContext(ctx, "audit",
		"event_type", event.EventType,
		"user_id", event.UserID,
		"action", event.Action,
		"resource_type", event.ResourceType,
		"resource_id", event.ResourceID,
		"outcome", event.Outcome,
	)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	if len(l.events) > l.max {
		l.events = l.events[len(l.events)-l.max:]
	}
	return nil
}

// Query returns matching events, newest first.
func (l *SlogAuditLogger) Query(_ context.Context, filter AuditFilter) ([]AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := []AuditEvent{}
	for i := len(l.events) - 1; i >= 0; i-- {
		if filter.matches(l.events[i]) {
			out = append(out, l.events[i])
			if filter.Limit > 0 && len(out) == filter.Limit {
				break
			}
		}
	}
	return out, nil
}

// Flush is a no-op; events are written synchronously.
func (l *SlogAuditLogger) Flush(context.Context) error { return nil }

var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*SlogAuditLogger)(nil)
)
