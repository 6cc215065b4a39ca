package relay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisPath(t *testing.T) (*miniredis.Miniredis, *RedisPath) {
	t.Helper()
	mr := miniredis.RunT(t)
	p := NewRedisPath(mr.Addr(), zap.NewNop())
	t.Cleanup(p.Close)
	return mr, p
}

func TestRedisPathDeliversPublishes(t *testing.T) {
	_, p := setupRedisPath(t)
	ctx := context.Background()

	received := make(chan []byte, 4)
	require.NoError(t, p.Subscribe(ctx, "room-a", func(payload []byte) {
		received <- payload
	}))

	require.NoError(t, p.Publish(ctx, "room-a", "1-a", []byte(`{"id":"1-a"}`)))

	select {
	case payload := <-received:
		assert.JSONEq(t, `{"id":"1-a"}`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery within deadline")
	}
}

func TestRedisPathBacklogReplaysHistory(t *testing.T) {
	_, p := setupRedisPath(t)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, "room-a", "1-a", []byte(`{"id":"1-a"}`)))
	require.NoError(t, p.Publish(ctx, "room-a", "2-b", []byte(`{"id":"2-b"}`)))
	// Same id again overwrites, not duplicates.
	require.NoError(t, p.Publish(ctx, "room-a", "1-a", []byte(`{"id":"1-a"}`)))

	backlog, err := p.Backlog(ctx, "room-a")
	require.NoError(t, err)
	assert.Len(t, backlog, 2)
}

func TestRedisPathBacklogIsPerRoom(t *testing.T) {
	_, p := setupRedisPath(t)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, "room-a", "1-a", []byte(`{"id":"1-a"}`)))

	backlog, err := p.Backlog(ctx, "room-b")
	require.NoError(t, err)
	assert.Empty(t, backlog)
}

func TestRedisPathUnsubscribeStopsDelivery(t *testing.T) {
	_, p := setupRedisPath(t)
	ctx := context.Background()

	received := make(chan []byte, 4)
	require.NoError(t, p.Subscribe(ctx, "room-a", func(payload []byte) {
		received <- payload
	}))
	require.NoError(t, p.Unsubscribe(ctx, "room-a"))

	require.NoError(t, p.Publish(ctx, "room-a", "1-a", []byte(`{"id":"1-a"}`)))

	select {
	case <-received:
		t.Fatal("received a payload after unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRedisPathUnreachableSubscribeFails(t *testing.T) {
	mr, p := setupRedisPath(t)
	mr.Close()

	err := p.Subscribe(context.Background(), "room-a", func([]byte) {})
	assert.Error(t, err)
}

func TestRedisPathHealthy(t *testing.T) {
	mr, p := setupRedisPath(t)
	ctx := context.Background()

	assert.True(t, p.Healthy(ctx))
	mr.Close()
	assert.False(t, p.Healthy(ctx))
}
