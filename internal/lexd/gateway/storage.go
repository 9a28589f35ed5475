package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// StoredResponse is a cached upstream response
type StoredResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body,omitempty"`
}

// OK reports whether the status is in the 2xx range
func (r *StoredResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Bucket is a named store of responses keyed by request
type Bucket interface {
	Name() string
	Put(ctx context.Context, key string, resp *StoredResponse) error
	Match(ctx context.Context, key string) (*StoredResponse, bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Storage holds every bucket of the gateway
type Storage interface {
	// Open returns the named bucket, creating it if needed
	Open(ctx context.Context, name string) (Bucket, error)
	// Keys lists bucket names in creation order
	Keys(ctx context.Context) ([]string, error)
	// Delete removes a bucket and reports whether it existed
	Delete(ctx context.Context, name string) (bool, error)
	// Match searches every bucket, oldest first
	Match(ctx context.Context, key string) (*StoredResponse, bool, error)
}

// RequestKey returns the cache key for a request URL. Method is not part of
// the key. A URL that does not parse as absolute is used as-is.
func RequestKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
