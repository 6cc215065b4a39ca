package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDDerivation(t *testing.T) {
	now := time.UnixMilli(1757400000000)
	assert.Equal(t, "1757400000000-S001", NewID(now, "S001"))
}

func TestUnmarshalRoundTrip(t *testing.T) {
	ev := Event{
		ID:             "1-S001",
		SubjectID:      "S001",
		Name:           "Ada Lovelace",
		GroupLabel:     "10A",
		ObservedAt:     "08:41",
		ObservedDate:   "2026-03-09",
		Classification: Late,
		Verified:       true,
	}
	payload, err := ev.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(payload)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	assert.Error(t, err)
}

func TestUnmarshalRejectsMissingID(t *testing.T) {
	_, err := Unmarshal([]byte(`{"subject_id":"S001","observed_at":"08:41"}`))
	assert.Error(t, err)
}

func TestSortForDisplayDescendingWithStableTies(t *testing.T) {
	events := []Event{
		{ID: "c", ObservedAt: "08:45"},
		{ID: "b", ObservedAt: "09:10"},
		{ID: "a2", ObservedAt: "08:45"},
		{ID: "d", ObservedAt: "07:59"},
	}
	SortForDisplay(events)

	ids := []string{events[0].ID, events[1].ID, events[2].ID, events[3].ID}
	// 09:10 first, then the two 08:45 entries in their original relative
	// order, then 07:59.
	assert.Equal(t, []string{"b", "c", "a2", "d"}, ids)
}
