package georef

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"

	"argos/internal/homography"
)

// Estimator produces a photo's homography against its orthomap.
type Estimator interface {
	Estimate(ctx context.Context, photo homography.Photo, ortho homography.Orthomap) (homography.Homography, error)
}

// Request identifies one photo to reference. Known, when set, is a
// previously estimated homography and skips estimation.
type Request struct {
	Key   string
	Photo homography.Photo
	Ortho homography.Orthomap
	Known *homography.Homography
}

// Builder creates referencers on demand and keeps recently used ones in a
// bounded cache. Concurrent requests for the same key share one build.
type Builder struct {
	// Timeout bounds each build. Builds ignore the cancellation of the
	// requesting context; a cancelled caller stops waiting while the build
	// continues for the others. Zero means no limit.
	Timeout time.Duration

	est      Estimator
	cache    *ccache.Cache[*Referencer]
	inflight singleflight.Group
	ttl      time.Duration
}

// NewBuilder returns a builder caching up to maxEntries referencers for ttl.
func NewBuilder(est Estimator, maxEntries int64, ttl time.Duration) *Builder {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Builder{
		est:   est,
		cache: ccache.New(ccache.Configure[*Referencer]().MaxSize(maxEntries)),
		ttl:   ttl,
	}
}

// Get returns the referencer for req, estimating its homography if needed.
func (b *Builder) Get(ctx context.Context, req Request) (*Referencer, error) {
	if item := b.cache.Get(req.Key); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	ch := b.inflight.DoChan(req.Key, func() (interface{}, error) {
		bctx := context.WithoutCancel(ctx)
		if b.Timeout > 0 {
			var cancel context.CancelFunc
			bctx, cancel = context.WithTimeout(bctx, b.Timeout)
			defer cancel()
		}
		h, err := b.homography(bctx, req)
		if err != nil {
			return nil, err
		}
		ref, err := New(h, req.Photo.Bounds().Size(), req.Ortho.GeoTransform())
		if err != nil {
			return nil, err
		}
		b.cache.Set(req.Key, ref, b.ttl)
		return ref, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Referencer), nil
	}
}

func (b *Builder) homography(ctx context.Context, req Request) (homography.Homography, error) {
	if req.Known != nil {
		return *req.Known, nil
	}
	return b.est.Estimate(ctx, req.Photo, req.Ortho)
}

// Forget drops a cached referencer, e.g. after its homography was replaced.
func (b *Builder) Forget(key string) {
	b.cache.Delete(key)
}

// Close stops the cache's background worker.
func (b *Builder) Close() {
	b.cache.Stop()
}
