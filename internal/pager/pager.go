// Package pager incrementally loads the high-volume requests collection in
// fixed-size pages.
package pager

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Mhmod1992/workshop-engine/internal/hydrate"
	"github.com/Mhmod1992/workshop-engine/internal/model"
	"github.com/Mhmod1992/workshop-engine/internal/remote"
	"github.com/Mhmod1992/workshop-engine/internal/store"
)

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 50

// Pager tracks the pagination cursor for the requests collection. The cursor
// advances monotonically and is reset only by a full reload.
type Pager struct {
	data     remote.DataAPI
	cache    *store.Store
	hyd      *hydrate.Hydrator
	pageSize int
	log      zerolog.Logger

	mu        sync.Mutex
	offset    int
	exhausted bool
	inFlight  bool
}

// New constructs a Pager.
func New(data remote.DataAPI, cache *store.Store, hyd *hydrate.Hydrator, pageSize int, log zerolog.Logger) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{data: data, cache: cache, hyd: hyd, pageSize: pageSize, log: log}
}

// LoadMore fetches the next page and appends it to the cache tail. It is a
// no-op while a load is in flight or once the collection is exhausted, so
// overlapping calls collapse into the single ongoing request.
func (p *Pager) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.inFlight || p.exhausted {
		p.mu.Unlock()
		return nil
	}
	p.inFlight = true
	offset := p.offset
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	rows, err := p.data.Select(ctx, model.TableRequests, remote.Query{
		OrderBy:    "created_at",
		Descending: true,
		Limit:      p.pageSize,
		Offset:     offset,
	})
	if err != nil {
		return err
	}
	reqs, err := remote.DecodeRows[model.Request](model.TableRequests, rows)
	if err != nil {
		return err
	}

	// Back-fill before append so consumers never see a request whose
	// client or car is missing from the cache.
	if err := p.hyd.HydrateRequests(ctx, reqs); err != nil {
		return err
	}

	added := p.cache.AppendRequests(reqs)

	p.mu.Lock()
	p.offset += len(reqs)
	if len(reqs) < p.pageSize {
		p.exhausted = true
	}
	p.mu.Unlock()

	pagesLoaded.Inc()
	p.log.Debug().Int("fetched", len(reqs)).Int("added", added).Int("offset", offset).Msg("pager: page loaded")
	return nil
}

// Exhausted reports whether the last page came back short.
func (p *Pager) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}

// Reset rewinds the cursor for a full reload.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = 0
	p.exhausted = false
}
