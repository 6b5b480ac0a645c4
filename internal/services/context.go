package services

import "context"

type contextKey string

const (
	productionKey contextKey = "production"
	sessionIDKey  contextKey = "session_id"
	roundKey      contextKey = "round"
	segmentKey    contextKey = "segment"
)

// WithProduction annotates context with the production name.
func WithProduction(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, productionKey, name)
}

// ProductionFromContext returns the production name if present.
func ProductionFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(productionKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSessionID annotates context with the rebuild session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the rebuild session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRound annotates context with the rebuild round number.
func WithRound(ctx context.Context, round int) context.Context {
	if round <= 0 {
		return ctx
	}
	return context.WithValue(ctx, roundKey, round)
}

// RoundFromContext extracts the rebuild round number if present.
func RoundFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(roundKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithSegment annotates context with the segment index being worked on.
func WithSegment(ctx context.Context, index int) context.Context {
	if index < 0 {
		return ctx
	}
	return context.WithValue(ctx, segmentKey, index)
}

// SegmentFromContext extracts the segment index if present.
func SegmentFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(segmentKey)
	if v == nil {
		return 0, false
	}
	if val, ok := v.(int); ok {
		return val, true
	}
	return 0, false
}
