// Package replication maintains the convergent set of late-arrival events a
// station shares with its room. A single goroutine owns the authoritative set;
// local appends, inbound relay payloads, and room lifecycle changes all enter
// through one bounded command channel, so no mutation ever races another.
package replication

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gatelog/internal/event"
	"gatelog/internal/metrics"
	"gatelog/internal/relay"
)

// ChangeKind distinguishes change notifications.
type ChangeKind int

const (
	// ChangeAdmitted is emitted exactly once per newly-admitted event id.
	ChangeAdmitted ChangeKind = iota + 1
	// ChangeReset is emitted when the whole view is replaced (join, leave,
	// clear, snapshot load).
	ChangeReset
)

// Change is one entry on the engine's change-notification stream.
type Change struct {
	Kind  ChangeKind
	Event event.Event
}

type cmdKind int

const (
	cmdAppend cmdKind = iota + 1
	cmdMerge
	cmdJoin
	cmdLeave
	cmdClear
	cmdLoad
	cmdSnapshot
)

type command struct {
	kind    cmdKind
	ev      event.Event
	events  []event.Event
	payload []byte
	epoch   uint64
	room    string
	joined  chan int
	snap    chan []event.Event
	done    chan struct{}
}

// Engine is the replication core. Construct with New, start with Start, and
// drain Changes for as long as the engine runs.
type Engine struct {
	paths   []relay.Path
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Set

	cmds    chan command
	changes chan Change
}

// New creates an engine over the given relay paths. An empty path list is
// valid: the engine then only ever serves standalone mode.
func New(paths []relay.Path, timeout time.Duration, logger *zap.Logger, m *metrics.Set) *Engine {
	return &Engine{
		paths:   paths,
		timeout: timeout,
		logger:  logger.Named("replication"),
		metrics: m,
		cmds:    make(chan command, 256),
		changes: make(chan Change, 256),
	}
}

// Start launches the owning goroutine. It exits when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go e.run(ctx)
}

// Changes returns the change-notification stream. The consumer must keep
// draining it; the stream is how display state and aggregates stay current.
func (e *Engine) Changes() <-chan Change {
	return e.changes
}

// Append applies a locally-classified event to the station's own view
// immediately and fans it out to every reachable path in the background.
// Publication failure never rolls the local view back.
func (e *Engine) Append(ev event.Event) {
	e.cmds <- command{kind: cmdAppend, ev: ev}
}

// Join switches the engine to the given room: the current view is reset, all
// paths are subscribed, and available backlogs are replayed. It returns the
// number of reachable paths; zero means the station keeps operating standalone
// in degraded mode, which is a status, not an error.
func (e *Engine) Join(room string) int {
	reply := make(chan int, 1)
	e.cmds <- command{kind: cmdJoin, room: room, joined: reply}
	return <-reply
}

// Leave unsubscribes every path. No data is deleted, locally or remotely;
// events received under the room stay visible until the view is replaced.
func (e *Engine) Leave() {
	done := make(chan struct{})
	e.cmds <- command{kind: cmdLeave, done: done}
	<-done
}

// Clear empties the local view only. Other replicas are unaffected.
func (e *Engine) Clear() {
	done := make(chan struct{})
	e.cmds <- command{kind: cmdClear, done: done}
	<-done
}

// Load replaces the view with a restored snapshot, newest first. Used when the
// station returns to standalone mode and reloads its durable cache.
func (e *Engine) Load(events []event.Event) {
	done := make(chan struct{})
	e.cmds <- command{kind: cmdLoad, events: events, done: done}
	<-done
}

// Snapshot returns the current view in display order: descending observed
// time, ties kept in newest-first admission order.
func (e *Engine) Snapshot() []event.Event {
	reply := make(chan []event.Event, 1)
	e.cmds <- command{kind: cmdSnapshot, snap: reply}
	return <-reply
}

// engineState is owned exclusively by the run goroutine.
type engineState struct {
	set   map[string]event.Event
	order []string // event ids, newest admission first
	room  string
	epoch uint64
}

func (e *Engine) run(ctx context.Context) {
	st := &engineState{set: map[string]event.Event{}}
	for {
		select {
		case <-ctx.Done():
			e.unsubscribeAll(st)
			return
		case cmd := <-e.cmds:
			e.handle(ctx, st, cmd)
		}
	}
}

func (e *Engine) handle(ctx context.Context, st *engineState, cmd command) {
	switch cmd.kind {
	case cmdAppend:
		if e.admit(st, cmd.ev) && st.room != "" {
			payload, err := cmd.ev.Marshal()
			if err != nil {
				e.logger.Error("encode event for publish", zap.Error(err))
				return
			}
			go e.fanout(st.room, cmd.ev.ID, payload)
		}

	case cmdMerge:
		// A merge stamped with an older epoch belongs to a room this
		// station already left; admitting it would cross rooms.
		if cmd.epoch != st.epoch {
			return
		}
		ev, err := event.Unmarshal(cmd.payload)
		if err != nil {
			e.metrics.MalformedDropped.Inc()
			e.logger.Debug("dropping malformed relay payload", zap.Error(err))
			return
		}
		e.admit(st, ev)

	case cmdJoin:
		e.unsubscribeAll(st)
		st.epoch++
		st.room = cmd.room
		e.reset(st)
		reachable := 0
		if cmd.room != "" {
			reachable = e.subscribeAll(ctx, st, cmd.room)
		}
		e.metrics.ReachablePaths.Set(float64(reachable))
		cmd.joined <- reachable

	case cmdLeave:
		e.unsubscribeAll(st)
		st.epoch++
		st.room = ""
		e.metrics.ReachablePaths.Set(0)
		close(cmd.done)

	case cmdClear:
		e.reset(st)
		close(cmd.done)

	case cmdLoad:
		e.reset(st)
		// The snapshot is stored newest-first and admit prepends, so
		// replay in reverse to restore the original order. Going through
		// admit keeps change-stream consumers consistent without needing
		// a snapshot round trip.
		for i := len(cmd.events) - 1; i >= 0; i-- {
			e.admit(st, cmd.events[i])
		}
		close(cmd.done)

	case cmdSnapshot:
		out := make([]event.Event, 0, len(st.order))
		for _, id := range st.order {
			out = append(out, st.set[id])
		}
		event.SortForDisplay(out)
		cmd.snap <- out
	}
}

// admit adds one event to the maintained set. Applying the same id any number
// of times is a no-op after the first, which is what makes at-least-once,
// out-of-order delivery safe.
func (e *Engine) admit(st *engineState, ev event.Event) bool {
	if ev.ID == "" || ev.Classification != event.Late {
		return false
	}
	if _, dup := st.set[ev.ID]; dup {
		e.metrics.DuplicatesDropped.Inc()
		return false
	}
	st.set[ev.ID] = ev
	st.order = append([]string{ev.ID}, st.order...)
	e.metrics.MergesAdmitted.Inc()
	e.notify(Change{Kind: ChangeAdmitted, Event: ev})
	return true
}

func (e *Engine) reset(st *engineState) {
	st.set = map[string]event.Event{}
	st.order = nil
	e.notify(Change{Kind: ChangeReset})
}

func (e *Engine) notify(c Change) {
	e.changes <- c
}

// subscribeAll wires every path for the room under the current epoch and
// replays whatever backlog each reachable path holds.
func (e *Engine) subscribeAll(ctx context.Context, st *engineState, room string) int {
	epoch := st.epoch
	reachable := 0
	for _, p := range e.paths {
		handler := func(payload []byte) {
			e.cmds <- command{kind: cmdMerge, payload: payload, epoch: epoch}
		}
		if err := p.Subscribe(ctx, room, handler); err != nil {
			e.logger.Warn("relay path unreachable", zap.String("path", p.Name()), zap.Error(err))
			continue
		}
		reachable++
		backlog, err := p.Backlog(ctx, room)
		if err != nil {
			e.logger.Warn("relay backlog unavailable", zap.String("path", p.Name()), zap.Error(err))
			continue
		}
		for _, payload := range backlog {
			ev, err := event.Unmarshal(payload)
			if err != nil {
				e.metrics.MalformedDropped.Inc()
				continue
			}
			e.admit(st, ev)
		}
	}
	return reachable
}

func (e *Engine) unsubscribeAll(st *engineState) {
	if st.room == "" {
		return
	}
	for _, p := range e.paths {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		if err := p.Unsubscribe(ctx, st.room); err != nil {
			e.logger.Warn("relay unsubscribe failed", zap.String("path", p.Name()), zap.Error(err))
		}
		cancel()
	}
}

// fanout publishes one event to every path, best effort. Runs off the actor
// goroutine so a slow or dead relay never blocks the scan stream.
func (e *Engine) fanout(room, id string, payload []byte) {
	for _, p := range e.paths {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		if err := p.Publish(ctx, room, id, payload); err != nil {
			e.metrics.PublishFailures.WithLabelValues(p.Name()).Inc()
			e.logger.Warn("publish failed", zap.String("path", p.Name()), zap.Error(err))
		}
		cancel()
	}
}
