package gateway

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// addAll opens the bucket, fetches every URL in parallel and stores the
// responses only when all of them succeeded
func (w *Worker) addAll(ctx context.Context, bucket string, rawURLs []string) error {
	b, err := w.storage.Open(ctx, bucket)
	if err != nil {
		return fmt.Errorf("open bucket %s: %w", bucket, err)
	}
	if len(rawURLs) == 0 {
		return nil
	}

	keys := make([]string, len(rawURLs))
	responses := make([]*StoredResponse, len(rawURLs))

	g, gctx := errgroup.WithContext(ctx)
	for i, raw := range rawURLs {
		i, raw := i, raw
		g.Go(func() error {
			u, err := w.cfg.Origin.Parse(raw)
			if err != nil {
				return fmt.Errorf("parse %q: %w", raw, err)
			}
			resp, err := w.network(gctx, Request{Method: http.MethodGet, URL: u.String()}, u)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", u, err)
			}
			if !resp.OK() {
				return fmt.Errorf("fetch %s: status %d", u, resp.Status)
			}
			keys[i] = RequestKey(u.String())
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range keys {
		if err := b.Put(ctx, keys[i], responses[i]); err != nil {
			return fmt.Errorf("store %s: %w", keys[i], err)
		}
	}
	return nil
}
