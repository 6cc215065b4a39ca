package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gatelog/internal/event"
	"gatelog/internal/roster"
)

func testRoster() *roster.Store {
	s := roster.NewStore()
	s.Replace([]roster.Entry{
		{SubjectID: "S001", Name: "Ada Lovelace", GroupLabel: "10A"},
	})
	return s
}

func at(hour, min, sec int) time.Time {
	return time.Date(2026, 3, 9, hour, min, sec, 0, time.UTC)
}

func TestArrivalThresholdBoundary(t *testing.T) {
	r := testRoster()
	cases := []struct {
		name string
		now  time.Time
		want event.Classification
	}{
		{"at threshold", at(8, 30, 0), event.Late},
		{"one minute before", at(8, 29, 0), event.OnTime},
		{"same minute late seconds", at(8, 30, 59), event.Late},
		{"well after", at(11, 0, 0), event.Late},
		{"early morning", at(7, 0, 0), event.OnTime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := Arrival("S001", tc.now, r, "08:30")
			assert.Equal(t, tc.want, ev.Classification)
		})
	}
}

func TestArrivalResolvesRoster(t *testing.T) {
	ev := Arrival("S001", at(9, 0, 0), testRoster(), "08:30")

	assert.True(t, ev.Verified)
	assert.Equal(t, "Ada Lovelace", ev.Name)
	assert.Equal(t, "10A", ev.GroupLabel)
	assert.Equal(t, "09:00", ev.ObservedAt)
	assert.Equal(t, "2026-03-09", ev.ObservedDate)
	assert.Equal(t, "S001", ev.SubjectID)
	assert.NotEmpty(t, ev.ID)
}

func TestArrivalUnknownSubjectFallsBack(t *testing.T) {
	ev := Arrival("ghost", at(9, 0, 0), testRoster(), "08:30")

	assert.False(t, ev.Verified)
	assert.Equal(t, event.UnknownName, ev.Name)
	assert.Equal(t, event.UnknownGroup, ev.GroupLabel)
	assert.Equal(t, event.Late, ev.Classification)
}

func TestArrivalIsDeterministic(t *testing.T) {
	now := at(8, 45, 12)
	first := Arrival("S001", now, testRoster(), "08:30")
	second := Arrival("S001", now, testRoster(), "08:30")
	assert.Equal(t, first, second)
}
