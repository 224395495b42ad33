package search

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhmod1992/workshop-engine/internal/hydrate"
	"github.com/Mhmod1992/workshop-engine/internal/model"
	"github.com/Mhmod1992/workshop-engine/internal/remote"
	"github.com/Mhmod1992/workshop-engine/internal/remote/remotetest"
	"github.com/Mhmod1992/workshop-engine/internal/store"
)

func newAggregator(data *remotetest.FakeData) (*Aggregator, *store.Store) {
	cache := store.New()
	hyd := hydrate.New(data, cache, zerolog.Nop())
	return New(data, cache, hyd, zerolog.Nop()), cache
}

func TestNumericQueryIsExactIDLookup(t *testing.T) {
	data := &remotetest.FakeData{
		SelectFunc: func(table string, q remote.Query) ([]json.RawMessage, error) {
			if table == model.TableRequests {
				require.Len(t, q.Filters, 1)
				assert.Equal(t, "id", q.Filters[0].Column)
				assert.Equal(t, remote.OpEq, q.Filters[0].Op)
				assert.Equal(t, "12345", q.Filters[0].Value)
				return remotetest.Rows(model.Request{ID: "12345"}), nil
			}
			return nil, nil
		},
	}
	a, cache := newAggregator(data)

	require.NoError(t, a.SearchByFreeText(context.Background(), "12345"))

	got := cache.SearchResults()
	require.Len(t, got, 1)
	assert.Equal(t, "12345", got[0].ID)
	assert.Equal(t, 1, data.SelectCount(model.TableRequests))
	assert.Equal(t, 0, data.SelectCount(model.TableCars), "numeric lookup must not fan out")
}

func TestEmptyFanOutShortCircuits(t *testing.T) {
	data := &remotetest.FakeData{} // every probe returns zero rows
	a, cache := newAggregator(data)

	require.NoError(t, a.SearchByFreeText(context.Background(), "no such thing"))

	assert.Empty(t, cache.SearchResults())
	assert.Equal(t, 0, data.SelectCount(model.TableRequests),
		"zero upstream hits must skip the final request query")
}

func TestFanOutUnionsCarAndClientHits(t *testing.T) {
	data := &remotetest.FakeData{
		SelectFunc: func(table string, q remote.Query) ([]json.RawMessage, error) {
			switch table {
			case model.TableCars:
				if len(q.Filters) == 1 && q.Filters[0].Column == "plate_number" {
					return remotetest.Rows(model.Car{ID: "car1"}), nil
				}
				return nil, nil
			case model.TableClients:
				if len(q.Filters) == 1 && q.Filters[0].Column == "name" {
					return remotetest.Rows(model.Client{ID: "cl1", Name: "Ali"}), nil
				}
				return nil, nil
			case model.TableRequests:
				require.NotEmpty(t, q.OrFilters, "final query must be an OR over relationship ids")
				assert.Equal(t, ResultLimit, q.Limit)
				assert.True(t, q.Descending)
				return remotetest.Rows(model.Request{ID: "r1", CarID: "car1"}), nil
			}
			return nil, nil
		},
	}
	a, cache := newAggregator(data)

	require.NoError(t, a.SearchByFreeText(context.Background(), "ali"))

	got := cache.SearchResults()
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}

func TestWhitespaceStrippedPlateVariantProbed(t *testing.T) {
	sawStripped := false
	data := &remotetest.FakeData{
		SelectFunc: func(table string, q remote.Query) ([]json.RawMessage, error) {
			if table == model.TableCars && len(q.Filters) == 1 &&
				q.Filters[0].Column == "plate_number" && q.Filters[0].Value == "*AB1234*" {
				sawStripped = true
			}
			return nil, nil
		},
	}
	a, _ := newAggregator(data)

	require.NoError(t, a.SearchByFreeText(context.Background(), "AB 1234"))
	assert.True(t, sawStripped, "plate probe must also try the whitespace-stripped form")
}

func TestMakeHitsWidenThroughCars(t *testing.T) {
	data := &remotetest.FakeData{
		SelectFunc: func(table string, q remote.Query) ([]json.RawMessage, error) {
			switch table {
			case model.TableCarMakes:
				return remotetest.Rows(model.CarMake{ID: "mk1", Name: "Toyota"}), nil
			case model.TableCars:
				if len(q.OrFilters) > 0 { // the widening hop
					return remotetest.Rows(model.Car{ID: "car9", MakeID: "mk1"}), nil
				}
				return nil, nil
			case model.TableRequests:
				require.Len(t, q.OrFilters, 1)
				assert.Equal(t, "car_id", q.OrFilters[0].Column)
				return remotetest.Rows(model.Request{ID: "r9", CarID: "car9"}), nil
			}
			return nil, nil
		},
	}
	a, cache := newAggregator(data)

	require.NoError(t, a.SearchByFreeText(context.Background(), "toyota"))

	got := cache.SearchResults()
	require.Len(t, got, 1)
	assert.Equal(t, "r9", got[0].ID)
}

func TestSearchNeverTouchesPrimaryCollection(t *testing.T) {
	data := &remotetest.FakeData{
		SelectFunc: func(table string, q remote.Query) ([]json.RawMessage, error) {
			switch table {
			case model.TableClients:
				return remotetest.Rows(model.Client{ID: "cl1"}), nil
			case model.TableRequests:
				return remotetest.Rows(model.Request{ID: "found", ClientID: "cl1"}), nil
			}
			return nil, nil
		},
	}
	a, cache := newAggregator(data)
	cache.ResetRequests([]model.Request{{ID: "primary"}})

	require.NoError(t, a.SearchByFreeText(context.Background(), "ali"))

	require.Len(t, cache.Requests(), 1)
	assert.Equal(t, "primary", cache.Requests()[0].ID)

	a.cache.ClearSearch()
	assert.Empty(t, cache.SearchResults())
	assert.Len(t, cache.Requests(), 1, "clearing search must not disturb pagination state")
}

func TestBlankQueryClearsSearch(t *testing.T) {
	data := &remotetest.FakeData{}
	a, cache := newAggregator(data)
	cache.SetSearchResults([]model.Request{{ID: "stale"}})

	require.NoError(t, a.SearchByFreeText(context.Background(), "   "))
	assert.Empty(t, cache.SearchResults())
	assert.Empty(t, data.Selects)
}
