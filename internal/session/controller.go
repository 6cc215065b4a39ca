// Package session glues the station together: it routes scans through the
// classifier, decides where late events go, and keeps the display state
// (event list, hourly counts, last scan, clock) that external consumers read.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gatelog/internal/cache"
	"gatelog/internal/classify"
	"gatelog/internal/event"
	"gatelog/internal/metrics"
	"gatelog/internal/replication"
	"gatelog/internal/roster"
)

// Status summarizes the station mode for the UI and health endpoint.
type Status struct {
	Room           string `json:"room"`
	Replicating    bool   `json:"replicating"`
	ReachablePaths int    `json:"reachable_paths"`
}

// Controller orchestrates classifier, cache, and replication engine. Scans
// arrive serialized; replication changes arrive concurrently on the engine's
// change stream and are folded in by a single consumer goroutine.
type Controller struct {
	threshold string
	roster    *roster.Store
	cache     *cache.Cache
	engine    *replication.Engine
	logger    *zap.Logger
	metrics   *metrics.Set

	mu        sync.RWMutex
	view      []event.Event // mirror of the engine view, newest admission first
	hourly    map[string]int
	lastScan  *event.Event
	status    Status
	clock     string
	persistMu sync.Mutex
}

// New creates a controller. Call Start before use.
func New(threshold string, r *roster.Store, c *cache.Cache, e *replication.Engine, logger *zap.Logger, m *metrics.Set) *Controller {
	return &Controller{
		threshold: threshold,
		roster:    r,
		cache:     c,
		engine:    e,
		logger:    logger.Named("session"),
		metrics:   m,
		hourly:    map[string]int{},
	}
}

// Start restores durable state and launches the change consumer and display
// clock. The roster is always reloaded; the cached event snapshot only when
// the station is not configured to join a room.
func (c *Controller) Start(ctx context.Context, clockInterval time.Duration) {
	if entries := c.cache.LoadRoster(ctx); len(entries) > 0 {
		c.roster.Replace(entries)
	}

	go c.consumeChanges(ctx)
	go c.runClock(ctx, clockInterval)

	room := c.cache.LoadRoom(ctx)
	if room == "" {
		c.setStatus(Status{})
		c.engine.Load(c.cache.LoadEvents(ctx))
		return
	}
	// The room must be marked active before Join: backlog admissions come in
	// on the change stream during Join, and the consumer must not mistake
	// them for standalone state to persist.
	c.setStatus(Status{Room: room})
	reachable := c.engine.Join(room)
	c.setStatus(Status{Room: room, Replicating: reachable > 0, ReachablePaths: reachable})
	if reachable == 0 {
		c.logger.Info("no relay path reachable, continuing standalone", zap.String("room", room))
	}
}

// HandleScan classifies one decoded scan string. Late arrivals are applied to
// the station's own view immediately; replication, if active, happens behind
// that. The scan path never fails.
func (c *Controller) HandleScan(text string, now time.Time) event.Event {
	subjectID := parseScan(text)
	ev := classify.Arrival(subjectID, now, c.roster, c.threshold)
	c.metrics.Scans.WithLabelValues(string(ev.Classification)).Inc()

	c.mu.Lock()
	c.lastScan = &ev
	c.mu.Unlock()

	if ev.Classification == event.Late {
		c.engine.Append(ev)
	}
	return ev
}

// SetRoom switches the replication namespace. A non-empty code discards the
// local standalone view and joins the room; an empty code leaves the room and
// restores the cached standalone view.
func (c *Controller) SetRoom(ctx context.Context, code string) Status {
	code = strings.TrimSpace(code)
	if err := c.cache.SaveRoom(ctx, code); err != nil {
		c.logger.Warn("persist room code", zap.Error(err))
	}

	var st Status
	if code == "" {
		c.setStatus(Status{})
		c.engine.Leave()
		c.engine.Load(c.cache.LoadEvents(ctx))
	} else {
		if err := c.cache.ClearEvents(ctx); err != nil {
			c.logger.Warn("discard standalone snapshot", zap.Error(err))
		}
		// Same ordering as Start: the consumer checks the room to decide
		// whether to persist, so it must see the room before any backlog
		// admission emitted inside Join.
		c.setStatus(Status{Room: code})
		reachable := c.engine.Join(code)
		st = Status{Room: code, Replicating: reachable > 0, ReachablePaths: reachable}
		if reachable == 0 {
			c.logger.Info("no relay path reachable, continuing standalone", zap.String("room", code))
		}
	}
	c.setStatus(st)
	return st
}

// Clear empties the displayed log. This is local only: other replicas of the
// room keep their view of the shared set.
func (c *Controller) Clear(ctx context.Context) {
	c.engine.Clear()
	if c.Status().Room == "" {
		if err := c.cache.ClearEvents(ctx); err != nil {
			c.logger.Warn("clear cached events", zap.Error(err))
		}
	}
}

// ImportRoster wholesale-replaces the directory and persists the snapshot.
func (c *Controller) ImportRoster(ctx context.Context, entries []roster.Entry) int {
	c.roster.Replace(entries)
	if err := c.cache.SaveRoster(ctx, c.roster.Entries()); err != nil {
		c.logger.Warn("persist roster", zap.Error(err))
	}
	return c.roster.Len()
}

// Events returns the late-event log in display order.
func (c *Controller) Events() []event.Event {
	c.mu.RLock()
	out := make([]event.Event, len(c.view))
	copy(out, c.view)
	c.mu.RUnlock()
	event.SortForDisplay(out)
	return out
}

// HourlyCounts returns late arrivals bucketed by the hour component of
// ObservedAt, recomputed as changes arrive.
func (c *Controller) HourlyCounts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.hourly))
	for k, v := range c.hourly {
		out[k] = v
	}
	return out
}

// LastScan returns the most recent classification outcome, if any.
func (c *Controller) LastScan() *event.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastScan == nil {
		return nil
	}
	ev := *c.lastScan
	return &ev
}

// Status reports the current mode.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Clock returns the ticker-maintained display time.
func (c *Controller) Clock() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clock
}

func (c *Controller) setStatus(st Status) {
	c.mu.Lock()
	c.status = st
	c.mu.Unlock()
}

// consumeChanges folds the engine's change stream into the display mirror and
// aggregates, and persists the standalone snapshot as it evolves.
func (c *Controller) consumeChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-c.engine.Changes():
			c.mu.Lock()
			switch ch.Kind {
			case replication.ChangeAdmitted:
				c.view = append([]event.Event{ch.Event}, c.view...)
				c.hourly[hourBucket(ch.Event.ObservedAt)]++
			case replication.ChangeReset:
				c.view = nil
				c.hourly = map[string]int{}
			}
			snapshot := make([]event.Event, len(c.view))
			copy(snapshot, c.view)
			standalone := c.status.Room == ""
			c.mu.Unlock()

			if standalone {
				c.persist(ctx, snapshot)
			}
		}
	}
}

func (c *Controller) persist(ctx context.Context, snapshot []event.Event) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if err := c.cache.SaveEvents(ctx, snapshot); err != nil {
		c.logger.Warn("persist event snapshot", zap.Error(err))
	}
}

func (c *Controller) runClock(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			c.clock = now.Format("15:04:05")
			c.mu.Unlock()
		}
	}
}

// parseScan extracts a subject identifier from one decoded frame. Structured
// payloads carry {"studentId": ...} or {"id": ...}; anything else is treated
// as the identifier itself.
func parseScan(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") {
		var payload struct {
			StudentID string `json:"studentId"`
			ID        string `json:"id"`
		}
		if err := json.Unmarshal([]byte(text), &payload); err == nil {
			if payload.StudentID != "" {
				return payload.StudentID
			}
			if payload.ID != "" {
				return payload.ID
			}
		}
	}
	return text
}

// hourBucket maps "HH:MM" to its "HH" bucket.
func hourBucket(observedAt string) string {
	if i := strings.IndexByte(observedAt, ':'); i > 0 {
		return observedAt[:i]
	}
	return observedAt
}
