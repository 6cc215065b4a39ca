package classify

import (
	"time"

	"gatelog/internal/event"
	"gatelog/internal/roster"
)

// Arrival maps a scanned identifier and the current instant to an attendance
// event. It is deterministic, has no side effects, and never fails: an
// identifier without a roster match degrades to sentinel values.
//
// Lateness compares the formatted "HH:MM" clock against the threshold as plain
// strings. The reference behavior is string comparison of zero-padded 24-hour
// times, so numeric time arithmetic must not be substituted here.
func Arrival(subjectID string, now time.Time, r *roster.Store, lateThreshold string) event.Event {
	name, group := event.UnknownName, event.UnknownGroup
	verified := false
	if entry, ok := r.Lookup(subjectID); ok {
		name, group = entry.Name, entry.GroupLabel
		verified = true
	}

	observedAt := now.Format("15:04")
	classification := event.OnTime
	if observedAt >= lateThreshold {
		classification = event.Late
	}

	return event.Event{
		ID:             event.NewID(now, subjectID),
		SubjectID:      subjectID,
		Name:           name,
		GroupLabel:     group,
		ObservedAt:     observedAt,
		ObservedDate:   now.Format("2006-01-02"),
		Classification: classification,
		Verified:       verified,
	}
}
