package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAppendAndHistory(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", Message{Role: "user", Content: "hi", Timestamp: time.Now()}))
	require.NoError(t, store.AppendMessage(ctx, "s1", Message{Role: "assistant", Content: "hello", Timestamp: time.Now()}))
	require.NoError(t, store.AppendMessage(ctx, "s2", Message{Role: "user", Content: "other session", Timestamp: time.Now()}))

	history, err := store.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, "hello", history[1].Content)

	history, err = store.History(ctx, "s2", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMemoryStoreHistoryLimit(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.AppendMessage(ctx, "s1", Message{Role: "user", Content: fmt.Sprintf("msg-%d", i)}))
	}

	history, err := store.History(ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "msg-7", history[0].Content)
	assert.Equal(t, "msg-9", history[2].Content)
}

func TestMemoryStoreTrimsToMaxHistory(t *testing.T) {
	store := NewMemoryStore(5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, store.AppendMessage(ctx, "s1", Message{Content: fmt.Sprintf("msg-%d", i)}))
	}

	history, err := store.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, "msg-3", history[0].Content)
}
