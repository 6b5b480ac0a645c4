package services_test

import (
	"context"
	"testing"

	"retake/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProduction(ctx, "nightfall")
	ctx = services.WithSessionID(ctx, "sess-123")
	ctx = services.WithRound(ctx, 3)
	ctx = services.WithSegment(ctx, 17)

	if name, ok := services.ProductionFromContext(ctx); !ok || name != "nightfall" {
		t.Fatalf("unexpected production: %v %v", name, ok)
	}
	if id, ok := services.SessionIDFromContext(ctx); !ok || id != "sess-123" {
		t.Fatalf("unexpected session id: %v %v", id, ok)
	}
	if round, ok := services.RoundFromContext(ctx); !ok || round != 3 {
		t.Fatalf("unexpected round: %v %v", round, ok)
	}
	if segment, ok := services.SegmentFromContext(ctx); !ok || segment != 17 {
		t.Fatalf("unexpected segment: %v %v", segment, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProduction(ctx, "")
	ctx = services.WithRound(ctx, 0)
	if _, ok := services.ProductionFromContext(ctx); ok {
		t.Fatal("expected no production value")
	}
	if _, ok := services.RoundFromContext(ctx); ok {
		t.Fatal("expected no round value")
	}
}

func TestSegmentZeroIsValid(t *testing.T) {
	ctx := services.WithSegment(context.Background(), 0)
	if segment, ok := services.SegmentFromContext(ctx); !ok || segment != 0 {
		t.Fatalf("expected segment zero to round-trip, got %v %v", segment, ok)
	}
}
