package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Source tells where a response came from
type Source string

const (
	SourceNetwork     Source = "network"
	SourceCache       Source = "cache"
	SourceOffline     Source = "offline"
	SourcePassthrough Source = "passthrough"
)

var errInvalidURL = errors.New("request url is not absolute")

// Request is an intercepted request. URL is kept raw so that a malformed
// URL can still be looked up in the cache.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Result is the answer to an intercepted request
type Result struct {
	Response *StoredResponse
	Strategy Strategy
	Source   Source
	// Err is the upstream failure for pass-through requests
	Err error
}

// Fetch answers req with the strategy its URL classifies into. Only
// pass-through requests can fail; every other strategy falls back to the
// cache or an offline response.
func (w *Worker) Fetch(ctx context.Context, req Request) Result {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	key := RequestKey(req.URL)

	u, err := url.Parse(req.URL)
	if err != nil || !u.IsAbs() {
		u = nil
	}
	strategy := StrategyDefault
	if u != nil {
		strategy = w.cfg.Classify(u)
	}

	var res Result
	switch strategy {
	case StrategyPassthrough:
		res = w.passthrough(ctx, req, u)
	case StrategyPWA:
		res = w.pwaHandler(ctx, req, u)
	case StrategyCritical:
		res = w.critical(ctx, req, u, key)
	case StrategyPartnerAPI:
		res = w.partnerAPI(ctx, req, u, key)
	case StrategyStatic:
		res = w.static(ctx, req, u, key)
	default:
		res = w.networkFirst(ctx, req, u, key)
	}
	res.Strategy = strategy

	w.recorder.RecordGatewayRequest(string(strategy), string(res.Source))
	return res
}

func (w *Worker) passthrough(ctx context.Context, req Request, u *url.URL) Result {
	resp, err := w.network(ctx, req, u)
	if err != nil {
		return Result{Source: SourcePassthrough, Err: err}
	}
	return Result{Response: resp, Source: SourcePassthrough}
}

func (w *Worker) pwaHandler(ctx context.Context, req Request, u *url.URL) Result {
	resp, err := w.network(ctx, req, u)
	if err == nil {
		return Result{Response: resp, Source: SourceNetwork}
	}
	w.logger.Debug("pwa handler offline", "error", err, "url", req.URL)
	return Result{Response: offlineHandlerPage(w.cfg.AppName, u.Path), Source: SourceOffline}
}

func (w *Worker) critical(ctx context.Context, req Request, u *url.URL, key string) Result {
	resp, err := w.network(ctx, req, u)
	if err == nil {
		if req.Method == http.MethodGet && resp.OK() {
			w.put(ctx, w.cfg.DynamicBucket(), key, resp)
		}
		return Result{Response: resp, Source: SourceNetwork}
	}

	w.logger.Debug("network failed for critical route", "error", err, "url", req.URL)
	if cached := w.match(ctx, key); cached != nil {
		return Result{Response: cached, Source: SourceCache}
	}
	return Result{Response: offlineAppPage(w.cfg.AppName), Source: SourceOffline}
}

func (w *Worker) partnerAPI(ctx context.Context, req Request, u *url.URL, key string) Result {
	resp, err := w.network(ctx, req, u)
	if err == nil {
		if req.Method == http.MethodGet && resp.OK() {
			w.put(ctx, w.cfg.DynamicBucket(), key, resp)
		}
		return Result{Response: resp, Source: SourceNetwork}
	}

	w.logger.Debug("network failed for partner api", "error", err, "url", req.URL, "method", req.Method)
	if req.Method == http.MethodGet {
		if cached := w.match(ctx, key); cached != nil {
			return Result{Response: cached, Source: SourceCache}
		}
	}
	return Result{Response: offlineJSON(), Source: SourceOffline}
}

func (w *Worker) static(ctx context.Context, req Request, u *url.URL, key string) Result {
	if cached := w.match(ctx, key); cached != nil {
		return Result{Response: cached, Source: SourceCache}
	}

	resp, err := w.network(ctx, req, u)
	if err != nil {
		w.logger.Debug("static asset unavailable", "error", err, "url", req.URL)
		return Result{Response: offlineText(offlineResourceMessage), Source: SourceOffline}
	}
	if req.Method == http.MethodGet && resp.OK() {
		w.put(ctx, w.cfg.StaticBucket(), key, resp)
	}
	return Result{Response: resp, Source: SourceNetwork}
}

func (w *Worker) networkFirst(ctx context.Context, req Request, u *url.URL, key string) Result {
	resp, err := w.network(ctx, req, u)
	if err == nil {
		return Result{Response: resp, Source: SourceNetwork}
	}

	w.logger.Debug("network failed", "error", err, "url", req.URL)
	if req.Method == http.MethodGet {
		if cached := w.match(ctx, key); cached != nil {
			return Result{Response: cached, Source: SourceCache}
		}
	}
	if u != nil && u.Path == "/" {
		return Result{Response: offlineRootPage(w.cfg.AppName), Source: SourceOffline}
	}
	return Result{Response: offlineText(offlineGenericMessage), Source: SourceOffline}
}

// network sends req upstream. Only transport failures are errors; any HTTP
// status is a response.
func (w *Worker) network(ctx context.Context, req Request, u *url.URL) (*StoredResponse, error) {
	if u == nil {
		return nil, errInvalidURL
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	out, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			out.Header.Add(k, v)
		}
	}

	resp, err := w.client.Do(out)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	return &StoredResponse{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   data,
	}, nil
}

func (w *Worker) put(ctx context.Context, bucket, key string, resp *StoredResponse) {
	b, err := w.storage.Open(ctx, bucket)
	if err == nil {
		err = b.Put(ctx, key, resp)
	}
	if err != nil {
		w.logger.Warn("failed to cache response", "error", err, "bucket", bucket, "key", key)
	}
}

func (w *Worker) match(ctx context.Context, key string) *StoredResponse {
	resp, ok, err := w.storage.Match(ctx, key)
	if err != nil {
		w.logger.Warn("cache lookup failed", "error", err, "key", key)
		return nil
	}
	if !ok {
		return nil
	}
	return resp
}
