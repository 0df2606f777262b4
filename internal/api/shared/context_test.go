package shared

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSetAndGetTraceID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	assert.Len(t, traceID, 32)
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err)

	assert.Empty(t, GetTraceID(ctx), "original context is unchanged")
	assert.NotEqual(t, traceID, GetTraceID(SetTraceID(ctx)))
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestUserIDFromContext(t *testing.T) {
	t.Parallel()

	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = UserIDFromContext(WithUserID(context.Background(), uuid.Nil))
	assert.False(t, ok)

	id := uuid.New()
	got, ok := UserIDFromContext(WithUserID(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
