package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPath relays events through one redis endpoint. Live delivery uses
// PUBLISH/SUBSCRIBE; every publish also lands in a per-room hash keyed by
// event id so stations joining later can replay the room's history.
type RedisPath struct {
	client *redis.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]*redis.PubSub
}

// NewRedisPath connects to one redis relay with short timeouts.
func NewRedisPath(addr string, logger *zap.Logger) *RedisPath {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisPath{
		client: client,
		logger: logger.With(zap.String("relay", "redis:"+addr)),
		subs:   map[string]*redis.PubSub{},
	}
}

// Name identifies this path.
func (p *RedisPath) Name() string {
	return "redis:" + p.client.Options().Addr
}

// Healthy verifies connectivity.
func (p *RedisPath) Healthy(ctx context.Context) bool {
	return p.client.Ping(ctx).Err() == nil
}

func channelKey(room string) string { return "gatelog:room:" + room }
func backlogKey(room string) string { return "gatelog:room:" + room + ":events" }

// Subscribe starts a reader goroutine delivering room payloads to h. The
// goroutine exits when Unsubscribe closes the subscription.
func (p *RedisPath) Subscribe(ctx context.Context, room string, h Handler) error {
	sub := p.client.Subscribe(ctx, channelKey(room))
	// Force the SUBSCRIBE round trip so an unreachable relay fails here
	// instead of silently never delivering.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", room, err)
	}

	p.mu.Lock()
	if old, ok := p.subs[room]; ok {
		_ = old.Close()
	}
	p.subs[room] = sub
	p.mu.Unlock()

	go func() {
		for msg := range sub.Channel() {
			h([]byte(msg.Payload))
		}
	}()
	return nil
}

// Backlog replays everything published to room so far.
func (p *RedisPath) Backlog(ctx context.Context, room string) ([][]byte, error) {
	vals, err := p.client.HGetAll(ctx, backlogKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("backlog %s: %w", room, err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

// Publish stores the payload in the room hash and broadcasts it live.
func (p *RedisPath) Publish(ctx context.Context, room, id string, payload []byte) error {
	pipe := p.client.Pipeline()
	pipe.HSet(ctx, backlogKey(room), id, payload)
	pipe.Publish(ctx, channelKey(room), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", room, err)
	}
	return nil
}

// Unsubscribe closes the room subscription, ending its reader goroutine.
func (p *RedisPath) Unsubscribe(ctx context.Context, room string) error {
	p.mu.Lock()
	sub, ok := p.subs[room]
	delete(p.subs, room)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return sub.Close()
}

// Close releases the client and any open subscriptions.
func (p *RedisPath) Close() {
	p.mu.Lock()
	for room, sub := range p.subs {
		_ = sub.Close()
		delete(p.subs, room)
	}
	p.mu.Unlock()
	if err := p.client.Close(); err != nil {
		p.logger.Warn("close redis relay", zap.Error(err))
	}
}
