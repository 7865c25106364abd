package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type (
	runIDKey  struct{}
	turnIDKey struct{}
)

// NewRunID returns a fresh random run identifier.
func NewRunID() string { return uuid.NewString() }

// TurnID formats the identifier of the n-th model turn of a run.
func TurnID(runID string, n int) string { return fmt.Sprintf("%s/%d", runID, n) }

// WithRunID returns a child context that carries the run ID.
func WithRunID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run ID from ctx, if present and non-empty.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, runIDKey{})
}

// WithTurnID returns a child context that carries the provided turn ID.
// If ctx is nil, context.Background() is used
func WithTurnID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, turnIDKey{}, id)
}

// TurnIDFromContext returns the turn ID from ctx, if present.
// Returns "", false if the value is missing or not a non-empty string.
func TurnIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, turnIDKey{})
}

func stringValue(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(key).(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
