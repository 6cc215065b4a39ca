package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gatelog/internal/event"
	"gatelog/internal/roster"
)

func openTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "station.db")
	c, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, path
}

func TestRosterSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	c, path := openTestCache(t)

	entries := []roster.Entry{{SubjectID: "S001", Name: "Ada Lovelace", GroupLabel: "10A"}}
	require.NoError(t, c.SaveRoster(ctx, entries))
	require.NoError(t, c.Close())

	reopened, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, entries, reopened.LoadRoster(ctx))
}

func TestEventSnapshotOverwrite(t *testing.T) {
	ctx := context.Background()
	c, _ := openTestCache(t)

	first := []event.Event{{ID: "1-S001", SubjectID: "S001", Classification: event.Late}}
	second := []event.Event{
		{ID: "2-S002", SubjectID: "S002", Classification: event.Late},
		{ID: "3-S003", SubjectID: "S003", Classification: event.Late},
	}
	require.NoError(t, c.SaveEvents(ctx, first))
	require.NoError(t, c.SaveEvents(ctx, second))

	assert.Equal(t, second, c.LoadEvents(ctx))
}

func TestClearEventsLeavesRosterAlone(t *testing.T) {
	ctx := context.Background()
	c, _ := openTestCache(t)

	require.NoError(t, c.SaveRoster(ctx, []roster.Entry{{SubjectID: "S001", Name: "Ada Lovelace"}}))
	require.NoError(t, c.SaveEvents(ctx, []event.Event{{ID: "1-S001", Classification: event.Late}}))
	require.NoError(t, c.ClearEvents(ctx))

	assert.Empty(t, c.LoadEvents(ctx))
	assert.Len(t, c.LoadRoster(ctx), 1)
}

func TestRoomCodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := openTestCache(t)

	assert.Equal(t, "", c.LoadRoom(ctx))
	require.NoError(t, c.SaveRoom(ctx, "homeroom-b"))
	assert.Equal(t, "homeroom-b", c.LoadRoom(ctx))
	require.NoError(t, c.SaveRoom(ctx, ""))
	assert.Equal(t, "", c.LoadRoom(ctx))
}

func TestCorruptValuesDegradeToEmpty(t *testing.T) {
	ctx := context.Background()
	c, _ := openTestCache(t)

	require.NoError(t, c.put(ctx, keyRoster, []byte("{{not json")))
	require.NoError(t, c.put(ctx, keyEvents, []byte("{{not json")))

	assert.Nil(t, c.LoadRoster(ctx))
	assert.Nil(t, c.LoadEvents(ctx))
}

func TestMissingKeysDegradeToEmpty(t *testing.T) {
	ctx := context.Background()
	c, _ := openTestCache(t)

	assert.Nil(t, c.LoadRoster(ctx))
	assert.Nil(t, c.LoadEvents(ctx))
	assert.Equal(t, "", c.LoadRoom(ctx))
}
