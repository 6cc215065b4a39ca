package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"gatelog/internal/event"
	"gatelog/internal/roster"
)

// Storage keys. Every value is whole-value overwritten, never patched.
const (
	keyRoster = "roster"
	keyEvents = "events"
	keyRoom   = "room"
)

// Cache is the process-local durable store. It holds the roster snapshot, the
// active room code, and — only while the station runs standalone — the
// attendance event snapshot.
type Cache struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the station database at path.
func Open(path string, logger *zap.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// Serialized scan loop plus occasional HTTP reads; one connection avoids
	// sqlite writer contention entirely.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS station_state (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Cache{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) put(ctx context.Context, key string, value []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO station_state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM station_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn("cache read failed, using empty default", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return value, true
}

// SaveRoster overwrites the roster snapshot.
func (c *Cache) SaveRoster(ctx context.Context, entries []roster.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}
	return c.put(ctx, keyRoster, data)
}

// LoadRoster returns the persisted roster, or nothing if absent or corrupt.
func (c *Cache) LoadRoster(ctx context.Context) []roster.Entry {
	data, ok := c.get(ctx, keyRoster)
	if !ok {
		return nil
	}
	var entries []roster.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("corrupt roster snapshot, using empty default", zap.Error(err))
		return nil
	}
	return entries
}

// SaveEvents overwrites the standalone event snapshot.
func (c *Cache) SaveEvents(ctx context.Context, events []event.Event) error {
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	return c.put(ctx, keyEvents, data)
}

// LoadEvents returns the persisted event snapshot, or nothing if absent or corrupt.
func (c *Cache) LoadEvents(ctx context.Context) []event.Event {
	data, ok := c.get(ctx, keyEvents)
	if !ok {
		return nil
	}
	var events []event.Event
	if err := json.Unmarshal(data, &events); err != nil {
		c.logger.Warn("corrupt event snapshot, using empty default", zap.Error(err))
		return nil
	}
	return events
}

// ClearEvents drops the standalone event snapshot. Called when the station
// joins a room: local history is intentionally not merged into the room.
func (c *Cache) ClearEvents(ctx context.Context) error {
	return c.put(ctx, keyEvents, []byte("[]"))
}

// SaveRoom overwrites the active room code.
func (c *Cache) SaveRoom(ctx context.Context, code string) error {
	return c.put(ctx, keyRoom, []byte(code))
}

// LoadRoom returns the persisted room code, empty when standalone.
func (c *Cache) LoadRoom(ctx context.Context) string {
	data, _ := c.get(ctx, keyRoom)
	return string(data)
}
