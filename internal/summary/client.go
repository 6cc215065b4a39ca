// Package summary calls an external text-generation service to turn the
// late-event list into a short natural-language digest. The service is
// unreliable by contract; every failure degrades to a fixed neutral string
// and nothing here ever propagates an error into the scan path.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"gatelog/internal/event"
)

// Fallback is returned whenever the external service cannot be used.
const Fallback = "Attendance summary is currently unavailable."

// Client calls the summarization service.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// New creates a client for the given base URL. An empty URL disables the
// service; Summarize then always returns the fallback.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	var http *resty.Client
	if baseURL != "" {
		http = resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second)
	}
	return &Client{http: http, logger: logger.Named("summary")}
}

// Summarize produces a short digest of the current event list.
func (c *Client) Summarize(ctx context.Context, events []event.Event) string {
	if c.http == nil {
		return Fallback
	}
	if len(events) == 0 {
		return "No late arrivals recorded."
	}

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("%s (%s, %s) arrived at %s on %s",
			ev.Name, ev.SubjectID, ev.GroupLabel, ev.ObservedAt, ev.ObservedDate))
	}

	var out struct {
		Summary string `json:"summary"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"lines": strings.Join(lines, "\n")}).
		SetResult(&out).
		Post("/summarize")
	if err != nil {
		c.logger.Warn("summarization request failed", zap.Error(err))
		return Fallback
	}
	if resp.IsError() || out.Summary == "" {
		c.logger.Warn("summarization service error", zap.String("status", resp.Status()))
		return Fallback
	}
	return out.Summary
}
