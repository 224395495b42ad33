// Package hydrate resolves the dependent entities a batch of requests
// references (clients, cars, makes, models) into the cache before the batch
// is exposed, so consumers never observe a partially-hydrated record.
package hydrate

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Mhmod1992/workshop-engine/internal/model"
	"github.com/Mhmod1992/workshop-engine/internal/remote"
	"github.com/Mhmod1992/workshop-engine/internal/store"
)

// Hydrator back-fills dependent entities via targeted id-set queries.
type Hydrator struct {
	data  remote.DataAPI
	cache *store.Store
	log   zerolog.Logger
}

// New constructs a Hydrator.
func New(data remote.DataAPI, cache *store.Store, log zerolog.Logger) *Hydrator {
	return &Hydrator{data: data, cache: cache, log: log}
}

// HydrateRequests loads every client, car, make and model the given requests
// reference and that the cache does not already hold.
func (h *Hydrator) HydrateRequests(ctx context.Context, reqs []model.Request) error {
	clientIDs := make(map[string]struct{})
	carIDs := make(map[string]struct{})
	for _, r := range reqs {
		if r.ClientID != "" {
			if _, ok := h.cache.GetClient(r.ClientID); !ok {
				clientIDs[r.ClientID] = struct{}{}
			}
		}
		if r.CarID != "" {
			if _, ok := h.cache.GetCar(r.CarID); !ok {
				carIDs[r.CarID] = struct{}{}
			}
		}
	}

	if err := h.fillClients(ctx, keys(clientIDs)); err != nil {
		return err
	}
	cars, err := h.fillCars(ctx, keys(carIDs))
	if err != nil {
		return err
	}

	// Second hop: makes and models referenced by the cars just loaded.
	makeIDs := make(map[string]struct{})
	modelIDs := make(map[string]struct{})
	for _, c := range cars {
		if c.MakeID != "" {
			if _, ok := h.cache.GetCarMake(c.MakeID); !ok {
				makeIDs[c.MakeID] = struct{}{}
			}
		}
		if c.ModelID != "" {
			if _, ok := h.cache.GetCarModel(c.ModelID); !ok {
				modelIDs[c.ModelID] = struct{}{}
			}
		}
	}
	if err := h.fillCarMakes(ctx, keys(makeIDs)); err != nil {
		return err
	}
	return h.fillCarModels(ctx, keys(modelIDs))
}

func (h *Hydrator) fillClients(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := h.data.Select(ctx, model.TableClients, remote.Query{Filters: []remote.Filter{remote.In("id", ids)}})
	if err != nil {
		return err
	}
	items, err := remote.DecodeRows[model.Client](model.TableClients, rows)
	if err != nil {
		return err
	}
	h.cache.UpsertClients(items)
	return nil
}

func (h *Hydrator) fillCars(ctx context.Context, ids []string) ([]model.Car, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := h.data.Select(ctx, model.TableCars, remote.Query{Filters: []remote.Filter{remote.In("id", ids)}})
	if err != nil {
		return nil, err
	}
	items, err := remote.DecodeRows[model.Car](model.TableCars, rows)
	if err != nil {
		return nil, err
	}
	h.cache.UpsertCars(items)
	return items, nil
}

func (h *Hydrator) fillCarMakes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := h.data.Select(ctx, model.TableCarMakes, remote.Query{Filters: []remote.Filter{remote.In("id", ids)}})
	if err != nil {
		return err
	}
	items, err := remote.DecodeRows[model.CarMake](model.TableCarMakes, rows)
	if err != nil {
		return err
	}
	h.cache.UpsertCarMakes(items)
	return nil
}

func (h *Hydrator) fillCarModels(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := h.data.Select(ctx, model.TableCarModels, remote.Query{Filters: []remote.Filter{remote.In("id", ids)}})
	if err != nil {
		return err
	}
	items, err := remote.DecodeRows[model.CarModel](model.TableCarModels, rows)
	if err != nil {
		return err
	}
	h.cache.UpsertCarModels(items)
	return nil
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
