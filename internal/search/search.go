// Package search fans a free-text query out across the related entity types
// and folds the hits into a single request result set.
package search

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/Mhmod1992/workshop-engine/internal/hydrate"
	"github.com/Mhmod1992/workshop-engine/internal/model"
	"github.com/Mhmod1992/workshop-engine/internal/remote"
	"github.com/Mhmod1992/workshop-engine/internal/store"
)

// ResultLimit caps the final result set.
const ResultLimit = 100

// Aggregator executes cross-entity searches and publishes the outcome into
// the cache's search slot. The primary paginated collection is never touched.
type Aggregator struct {
	data  remote.DataAPI
	cache *store.Store
	hyd   *hydrate.Hydrator
	log   zerolog.Logger
}

// New constructs an Aggregator.
func New(data remote.DataAPI, cache *store.Store, hyd *hydrate.Hydrator, log zerolog.Logger) *Aggregator {
	return &Aggregator{data: data, cache: cache, hyd: hyd, log: log}
}

// SearchByFreeText resolves query into the search slot. A purely numeric
// query is treated as an exact request id lookup; anything else fans out as
// substring probes over plates, VINs, make and model names, client names and
// phones, then selects the requests whose car or client matched.
func (a *Aggregator) SearchByFreeText(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		a.cache.ClearSearch()
		return nil
	}
	searchesTotal.Inc()

	if isNumeric(query) {
		return a.searchByID(ctx, query)
	}

	carIDs, clientIDs, err := a.fanOut(ctx, query)
	if err != nil {
		return err
	}
	if len(carIDs) == 0 && len(clientIDs) == 0 {
		// Nothing matched upstream, so the request query cannot match
		// either. Publish the empty set without a network round trip.
		shortCircuits.Inc()
		a.cache.SetSearchResults(nil)
		return nil
	}

	q := remote.Query{
		OrderBy:    "created_at",
		Descending: true,
		Limit:      ResultLimit,
	}
	if len(carIDs) > 0 {
		q.OrFilters = append(q.OrFilters, remote.In("car_id", carIDs))
	}
	if len(clientIDs) > 0 {
		q.OrFilters = append(q.OrFilters, remote.In("client_id", clientIDs))
	}
	rows, err := a.data.Select(ctx, model.TableRequests, q)
	if err != nil {
		return err
	}
	reqs, err := remote.DecodeRows[model.Request](model.TableRequests, rows)
	if err != nil {
		return err
	}
	if err := a.hyd.HydrateRequests(ctx, reqs); err != nil {
		return err
	}
	a.cache.SetSearchResults(reqs)
	a.log.Debug().Str("query", query).Int("results", len(reqs)).Msg("search: published")
	return nil
}

func (a *Aggregator) searchByID(ctx context.Context, id string) error {
	rows, err := a.data.Select(ctx, model.TableRequests, remote.Query{
		Filters: []remote.Filter{remote.Eq("id", id)},
	})
	if err != nil {
		return err
	}
	reqs, err := remote.DecodeRows[model.Request](model.TableRequests, rows)
	if err != nil {
		return err
	}
	if err := a.hyd.HydrateRequests(ctx, reqs); err != nil {
		return err
	}
	a.cache.SetSearchResults(reqs)
	return nil
}

// fanOut runs the per-entity substring probes concurrently and returns the
// union of matching car ids and client ids.
func (a *Aggregator) fanOut(ctx context.Context, query string) (carIDs, clientIDs []string, err error) {
	stripped := stripSpaces(query)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		cars     = map[string]struct{}{}
		clients  = map[string]struct{}{}
		makes    = map[string]struct{}{}
		models   = map[string]struct{}{}
	)
	fail := func(e error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = e
		}
		mu.Unlock()
	}
	probe := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e := fn(); e != nil {
				fail(e)
			}
		}()
	}

	probe(func() error {
		ids, e := a.selectIDs(ctx, model.TableCars, remote.ILike("plate_number", query))
		collect(&mu, cars, ids)
		return e
	})
	if stripped != query {
		probe(func() error {
			ids, e := a.selectIDs(ctx, model.TableCars, remote.ILike("plate_number", stripped))
			collect(&mu, cars, ids)
			return e
		})
	}
	probe(func() error {
		ids, e := a.selectIDs(ctx, model.TableCars, remote.ILike("vin", query))
		collect(&mu, cars, ids)
		return e
	})
	probe(func() error {
		ids, e := a.selectIDs(ctx, model.TableCarMakes, remote.ILike("name", query))
		collect(&mu, makes, ids)
		return e
	})
	probe(func() error {
		ids, e := a.selectIDs(ctx, model.TableCarModels, remote.ILike("name", query))
		collect(&mu, models, ids)
		return e
	})
	probe(func() error {
		ids, e := a.selectIDs(ctx, model.TableClients, remote.ILike("name", query))
		collect(&mu, clients, ids)
		return e
	})
	probe(func() error {
		ids, e := a.selectIDs(ctx, model.TableClients, remote.ILike("phone", query))
		collect(&mu, clients, ids)
		return e
	})
	wg.Wait()
	if firstErr != nil {
		return nil, nil, firstErr
	}

	// Make and model hits widen the car id set through one extra hop.
	if len(makes) > 0 || len(models) > 0 {
		q := remote.Query{}
		if len(makes) > 0 {
			q.OrFilters = append(q.OrFilters, remote.In("make_id", setKeys(makes)))
		}
		if len(models) > 0 {
			q.OrFilters = append(q.OrFilters, remote.In("model_id", setKeys(models)))
		}
		ids, e := a.selectIDsQuery(ctx, model.TableCars, q)
		if e != nil {
			return nil, nil, e
		}
		collect(&mu, cars, ids)
	}

	return setKeys(cars), setKeys(clients), nil
}

func (a *Aggregator) selectIDs(ctx context.Context, table string, f remote.Filter) ([]string, error) {
	return a.selectIDsQuery(ctx, table, remote.Query{Filters: []remote.Filter{f}})
}

func (a *Aggregator) selectIDsQuery(ctx context.Context, table string, q remote.Query) ([]string, error) {
	rows, err := a.data.Select(ctx, table, q)
	if err != nil {
		return nil, err
	}
	type row struct {
		ID string `json:"id"`
	}
	decoded, err := remote.DecodeRows[row](table, rows)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(decoded))
	for _, r := range decoded {
		if r.ID != "" {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func collect(mu *sync.Mutex, set map[string]struct{}, ids []string) {
	mu.Lock()
	for _, id := range ids {
		set[id] = struct{}{}
	}
	mu.Unlock()
}

func setKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
