package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gatelog/internal/event"
)

func sampleEvents() []event.Event {
	return []event.Event{{
		ID:             "1-S001",
		SubjectID:      "S001",
		Name:           "Ada Lovelace",
		GroupLabel:     "10A",
		ObservedAt:     "09:15",
		ObservedDate:   "2026-03-09",
		Classification: event.Late,
		Verified:       true,
	}}
}

func TestSummarizeHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/summarize", r.URL.Path)
		var body struct {
			Lines string `json:"lines"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Lines, "Ada Lovelace")
		assert.Contains(t, body.Lines, "09:15")

		json.NewEncoder(w).Encode(map[string]string{"summary": "One student arrived late."})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, zap.NewNop())
	assert.Equal(t, "One student arrived late.", c.Summarize(context.Background(), sampleEvents()))
}

func TestSummarizeServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, zap.NewNop())
	assert.Equal(t, Fallback, c.Summarize(context.Background(), sampleEvents()))
}

func TestSummarizeUnreachableServiceFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(srv.URL, 200*time.Millisecond, zap.NewNop())
	assert.Equal(t, Fallback, c.Summarize(context.Background(), sampleEvents()))
}

func TestSummarizeEmptyResponseFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, zap.NewNop())
	assert.Equal(t, Fallback, c.Summarize(context.Background(), sampleEvents()))
}

func TestSummarizeDisabled(t *testing.T) {
	c := New("", time.Second, zap.NewNop())
	assert.Equal(t, Fallback, c.Summarize(context.Background(), sampleEvents()))
}

func TestSummarizeNoEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("service must not be called for an empty log")
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, zap.NewNop())
	assert.Equal(t, "No late arrivals recorded.", c.Summarize(context.Background(), nil))
}
