// Package relay carries replication messages between stations over redundant,
// independently-operated endpoints. Any path may be down at a given time;
// delivery is at-least-once and unordered, and the replication engine is
// responsible for making that safe.
package relay

import "context"

// Handler receives one raw event payload from a path.
type Handler func(payload []byte)

// Path is one relay endpoint. A station normally configures several paths and
// publishes to all of them; a message that survives on any one path is enough
// for convergence.
type Path interface {
	// Name identifies the path in logs and metrics.
	Name() string
	// Subscribe starts delivering payloads published to room from any station.
	Subscribe(ctx context.Context, room string, h Handler) error
	// Backlog returns payloads published to room before this station
	// subscribed, best effort. Paths without history return nothing.
	Backlog(ctx context.Context, room string) ([][]byte, error)
	// Publish sends one payload to room under its event id.
	Publish(ctx context.Context, room, id string, payload []byte) error
	// Unsubscribe stops delivery for room.
	Unsubscribe(ctx context.Context, room string) error
	// Close releases the underlying connection.
	Close()
}
