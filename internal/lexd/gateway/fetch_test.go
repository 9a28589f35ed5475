package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(rawURL string) Request {
	return Request{Method: http.MethodGet, URL: rawURL}
}

func TestCriticalRoute(t *testing.T) {
	f := newFixture(t, "v1")
	ctx := context.Background()

	res := f.worker.Fetch(ctx, get(origin+"/dashboard"))
	assert.Equal(t, StrategyCritical, res.Strategy)
	assert.Equal(t, SourceNetwork, res.Source)
	assert.Equal(t, "upstream /dashboard", string(res.Response.Body))

	b, err := f.storage.Open(ctx, "lexdesk-dynamic-v1")
	require.NoError(t, err)
	_, ok, err := b.Match(ctx, origin+"/dashboard")
	require.NoError(t, err)
	assert.True(t, ok, "GET 200 cached in dynamic bucket")

	f.upstream.setOffline(true)

	res = f.worker.Fetch(ctx, get(origin+"/dashboard"))
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, "upstream /dashboard", string(res.Response.Body))

	res = f.worker.Fetch(ctx, get(origin+"/calendar"))
	assert.Equal(t, SourceOffline, res.Source)
	assert.Equal(t, http.StatusOK, res.Response.Status)
	assert.Equal(t, "text/html; charset=utf-8", res.Response.Header.Get("Content-Type"))
	assert.Contains(t, string(res.Response.Body), "LexDesk CRM")
}

func TestCriticalRouteDoesNotCacheErrors(t *testing.T) {
	f := newFixture(t, "v1")
	f.upstream.status["/proposals"] = http.StatusInternalServerError
	ctx := context.Background()

	res := f.worker.Fetch(ctx, get(origin+"/proposals"))
	assert.Equal(t, http.StatusInternalServerError, res.Response.Status)

	_, ok, err := f.storage.Match(ctx, origin+"/proposals")
	require.NoError(t, err)
	assert.False(t, ok)

	res = f.worker.Fetch(ctx, Request{Method: http.MethodPost, URL: origin + "/contacts", Body: []byte(`{}`)})
	assert.Equal(t, SourceNetwork, res.Source)
	_, ok, err = f.storage.Match(ctx, origin+"/contacts")
	require.NoError(t, err)
	assert.False(t, ok, "mutations are never cached")
}

func TestPartnerAPI(t *testing.T) {
	f := newFixture(t, "v1")
	ctx := context.Background()
	endpoint := "https://api.partner.example/rest/v1/contacts"

	res := f.worker.Fetch(ctx, get(endpoint))
	require.Equal(t, SourceNetwork, res.Source)

	f.upstream.setOffline(true)

	res = f.worker.Fetch(ctx, get(endpoint))
	assert.Equal(t, StrategyPartnerAPI, res.Strategy)
	assert.Equal(t, SourceCache, res.Source)

	res = f.worker.Fetch(ctx, Request{Method: http.MethodPost, URL: endpoint, Body: []byte(`{"name":"Ana"}`)})
	assert.Equal(t, SourceOffline, res.Source, "mutation never falls back to cache")
	assert.Equal(t, http.StatusServiceUnavailable, res.Response.Status)
	assert.Equal(t, "application/json", res.Response.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(res.Response.Body, &body))
	assert.Equal(t, "offline", body["error"])
	assert.NotEmpty(t, body["message"])

	res = f.worker.Fetch(ctx, get("https://api.partner.example/rest/v1/cases"))
	assert.Equal(t, http.StatusServiceUnavailable, res.Response.Status)
}

func TestStaticCacheFirst(t *testing.T) {
	f := newFixture(t, "v1")
	ctx := context.Background()
	asset := origin + "/assets/app.css"

	b, err := f.storage.Open(ctx, "lexdesk-static-v1")
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, asset, &StoredResponse{Status: http.StatusOK, Body: []byte("body{}")}))

	res := f.worker.Fetch(ctx, get(asset))
	assert.Equal(t, StrategyStatic, res.Strategy)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, "body{}", string(res.Response.Body))
	assert.Equal(t, 0, f.upstream.callCount(), "cache hit makes no network call")

	res = f.worker.Fetch(ctx, get(origin+"/assets/logo.png"))
	assert.Equal(t, SourceNetwork, res.Source)
	_, ok, err := b.Match(ctx, origin+"/assets/logo.png")
	require.NoError(t, err)
	assert.True(t, ok, "miss is stored in the static bucket")

	f.upstream.setOffline(true)
	res = f.worker.Fetch(ctx, get(origin+"/assets/chart.js"))
	assert.Equal(t, SourceOffline, res.Source)
	assert.Equal(t, http.StatusServiceUnavailable, res.Response.Status)
	assert.Equal(t, "Offline - resource not available", string(res.Response.Body))
}

func TestDefaultStrategy(t *testing.T) {
	f := newFixture(t, "v1")
	ctx := context.Background()

	res := f.worker.Fetch(ctx, get(origin+"/settings"))
	assert.Equal(t, SourceNetwork, res.Source)
	_, ok, err := f.storage.Match(ctx, origin+"/settings")
	require.NoError(t, err)
	assert.False(t, ok, "default strategy does not cache")

	b, err := f.storage.Open(ctx, "lexdesk-static-v1")
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, origin+"/manifest.json", &StoredResponse{Status: http.StatusOK, Body: []byte("{}")}))

	f.upstream.setOffline(true)

	res = f.worker.Fetch(ctx, get(origin+"/manifest.json"))
	assert.Equal(t, SourceCache, res.Source)

	res = f.worker.Fetch(ctx, Request{Method: http.MethodDelete, URL: origin + "/manifest.json"})
	assert.Equal(t, SourceOffline, res.Source)

	res = f.worker.Fetch(ctx, get(origin+"/"))
	assert.Equal(t, http.StatusOK, res.Response.Status)
	assert.True(t, strings.HasPrefix(res.Response.Header.Get("Content-Type"), "text/html"))

	res = f.worker.Fetch(ctx, get(origin+"/settings"))
	assert.Equal(t, http.StatusServiceUnavailable, res.Response.Status)
	assert.Equal(t, "Offline", string(res.Response.Body))
}

func TestMalformedURLUsesRawKey(t *testing.T) {
	f := newFixture(t, "v1")
	ctx := context.Background()
	raw := "https://crm.example.com/%zz"

	b, err := f.storage.Open(ctx, "lexdesk-dynamic-v1")
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, raw, &StoredResponse{Status: http.StatusOK, Body: []byte("cached")}))

	res := f.worker.Fetch(ctx, get(raw))
	assert.Equal(t, StrategyDefault, res.Strategy)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, "cached", string(res.Response.Body))
	assert.Equal(t, 0, f.upstream.callCount())

	res = f.worker.Fetch(ctx, get("https://crm.example.com/%zy"))
	assert.Equal(t, SourceOffline, res.Source)
	assert.Equal(t, http.StatusServiceUnavailable, res.Response.Status)
}

func TestPassthrough(t *testing.T) {
	f := newFixture(t, "v1")
	ctx := context.Background()

	res := f.worker.Fetch(ctx, get("https://fonts.googleapis.example/css"))
	assert.Equal(t, StrategyPassthrough, res.Strategy)
	assert.Equal(t, SourcePassthrough, res.Source)
	require.NoError(t, res.Err)

	f.upstream.setOffline(true)
	res = f.worker.Fetch(ctx, get("https://fonts.googleapis.example/css"))
	assert.ErrorIs(t, res.Err, errRefused)
	assert.Nil(t, res.Response)
}

func TestUploadsAssetIsCacheFirst(t *testing.T) {
	f := newFixture(t, "v1")
	f.upstream.setOffline(true)
	ctx := context.Background()
	avatar := origin + "/uploads/avatar.png"

	b, err := f.storage.Open(ctx, "lexdesk-static-v1")
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, avatar, &StoredResponse{Status: http.StatusOK, Body: []byte("png")}))

	res := f.worker.Fetch(ctx, get(avatar))
	assert.Equal(t, StrategyStatic, res.Strategy)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, "png", string(res.Response.Body))
	assert.Equal(t, 0, f.upstream.callCount())
}

func TestPWAHandlersOffline(t *testing.T) {
	f := newFixture(t, "v1")
	f.upstream.setOffline(true)
	ctx := context.Background()

	share := f.worker.Fetch(ctx, Request{Method: http.MethodPost, URL: origin + "/share"})
	upload := f.worker.Fetch(ctx, Request{Method: http.MethodPost, URL: origin + "/upload"})

	assert.Equal(t, StrategyPWA, share.Strategy)
	assert.Equal(t, SourceOffline, share.Source)
	assert.Equal(t, http.StatusOK, share.Response.Status)
	assert.NotEqual(t, string(share.Response.Body), string(upload.Response.Body))
}

func TestFetchRecordsMetrics(t *testing.T) {
	f := newFixture(t, "v1")
	ctx := context.Background()

	f.worker.Fetch(ctx, get(origin+"/dashboard"))
	f.upstream.setOffline(true)
	f.worker.Fetch(ctx, get(origin+"/dashboard"))

	assert.Equal(t, []string{"critical/network", "critical/cache"}, f.recorder.calls)
}
