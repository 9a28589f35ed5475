package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

const analyticsPrefix = "/api/v1alpha1/analytics"

// Session returns the stored summary of a collector session
func (c *Client) Session(ctx context.Context, sessionID string) (*v1alpha1.SessionSummary, error) {
	var s v1alpha1.SessionSummary
	if err := c.call(ctx, http.MethodGet, analyticsPrefix+"/sessions/"+url.PathEscape(sessionID), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// PageMetrics aggregates metrics for a page. since may be a duration such
// as 1h or an RFC3339 time; empty uses the server default.
func (c *Client) PageMetrics(ctx context.Context, pageURL, since string) (*v1alpha1.PageMetrics, error) {
	q := url.Values{"url": {pageURL}}
	if since != "" {
		q.Set("since", since)
	}

	var m v1alpha1.PageMetrics
	if err := c.call(ctx, http.MethodGet, analyticsPrefix+"/pages/metrics", q, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
