package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Classification tags an arrival as late or on time.
type Classification string

const (
	// Late means the scan happened at or after the configured threshold.
	Late Classification = "late"
	// OnTime means the scan happened before the threshold. OnTime events are
	// surfaced transiently and never stored or replicated.
	OnTime Classification = "on_time"
)

// Sentinel values used when a scanned identifier has no roster match.
const (
	UnknownName  = "Unregistered Student"
	UnknownGroup = "N/A"
)

// Event is one immutable attendance observation. ID is the sole merge key:
// two events with the same ID are the same logical event regardless of payload.
type Event struct {
	ID             string         `json:"id"`
	SubjectID      string         `json:"subject_id"`
	Name           string         `json:"name"`
	GroupLabel     string         `json:"group_label"`
	ObservedAt     string         `json:"observed_at"`
	ObservedDate   string         `json:"observed_date"`
	Classification Classification `json:"classification"`
	Verified       bool           `json:"verified"`
}

// NewID derives an event id from the creation instant and the scanned subject.
func NewID(now time.Time, subjectID string) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), subjectID)
}

// Marshal encodes the event for relay transport.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes a relay payload. Payloads that are not JSON or carry no id
// are rejected; the replication engine drops them.
func Unmarshal(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("malformed event payload: %w", err)
	}
	if e.ID == "" {
		return Event{}, fmt.Errorf("event payload missing id")
	}
	return e, nil
}

// SortForDisplay orders events by descending ObservedAt string. The sort is
// stable, so events sharing a minute keep their prior (newest-first insertion)
// order.
func SortForDisplay(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ObservedAt > events[j].ObservedAt
	})
}
