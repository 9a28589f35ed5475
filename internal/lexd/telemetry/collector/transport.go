package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

// Transport delivers one batch to the remote collector
type Transport interface {
	Send(ctx context.Context, batch *v1alpha1.AnalyticsBatch) error
}

// StatusError reports a non-2xx response from the collector endpoint
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collector endpoint returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPTransport POSTs batches as JSON. Any non-2xx status is a failure.
type HTTPTransport struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPTransport resolves endpoint against base, which may be empty when
// endpoint is already absolute
func NewHTTPTransport(base, endpoint string, client *http.Client) (*HTTPTransport, error) {
	target, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if !target.IsAbs() {
		b, err := url.Parse(base)
		if err != nil || !b.IsAbs() {
			return nil, fmt.Errorf("relative endpoint %q needs an absolute base URL", endpoint)
		}
		target = b.ResolveReference(target)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{Endpoint: target.String(), Client: client}, nil
}

// Send implements Transport
func (t *HTTPTransport) Send(ctx context.Context, batch *v1alpha1.AnalyticsBatch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := batchSessionID(batch); id != "" {
		req.Header.Set("X-Session-ID", id)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sending batch: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

func batchSessionID(b *v1alpha1.AnalyticsBatch) string {
	switch {
	case b.Session != nil:
		return b.Session.SessionID
	case len(b.Events) > 0:
		return b.Events[0].SessionID
	case len(b.Errors) > 0:
		return b.Errors[0].SessionID
	case len(b.Performance) > 0:
		return b.Performance[0].SessionID
	case len(b.Interactions) > 0:
		return b.Interactions[0].SessionID
	}
	return ""
}

// noopTransport is used when no endpoint can be resolved
type noopTransport struct{}

func (noopTransport) Send(context.Context, *v1alpha1.AnalyticsBatch) error {
	return fmt.Errorf("no transport configured")
}
