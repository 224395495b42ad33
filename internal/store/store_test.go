package store

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhmod1992/workshop-engine/internal/model"
)

func insertEvent(t *testing.T, table, id string, row any) model.ChangeEvent {
	t.Helper()
	payload, err := json.Marshal(row)
	require.NoError(t, err)
	return model.ChangeEvent{Table: table, Type: model.EventInsert, ID: id, Payload: payload}
}

func updateEvent(t *testing.T, table, id string, patch any) model.ChangeEvent {
	t.Helper()
	payload, err := json.Marshal(patch)
	require.NoError(t, err)
	return model.ChangeEvent{Table: table, Type: model.EventUpdate, ID: id, Payload: payload}
}

func reqRow(id string, createdAt time.Time) model.Request {
	return model.Request{
		ID:            id,
		ClientID:      "cl-1",
		CarID:         "car-1",
		Status:        model.StatusPending,
		Price:         150,
		PaymentMethod: model.PayCash,
		CreatedAt:     createdAt,
	}
}

func TestApplyInsertIdempotent(t *testing.T) {
	s := New()
	ev := insertEvent(t, model.TableRequests, "r1", reqRow("r1", time.Now()))

	created, err := s.ApplyEvent(ev)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.ApplyEvent(ev)
	require.NoError(t, err)
	assert.False(t, created, "second apply must not create a new row")
	assert.Len(t, s.Requests(), 1)
}

func TestNoDuplicateIDs(t *testing.T) {
	s := New()
	base := time.Now()

	// Insert racing a paginated fetch: same row arrives via AppendRequests
	// and via the feed, in both orders.
	s.AppendRequests([]model.Request{reqRow("r1", base)})
	_, err := s.ApplyEvent(insertEvent(t, model.TableRequests, "r1", reqRow("r1", base)))
	require.NoError(t, err)

	_, err = s.ApplyEvent(insertEvent(t, model.TableRequests, "r2", reqRow("r2", base)))
	require.NoError(t, err)
	s.AppendRequests([]model.Request{reqRow("r2", base)})

	reqs := s.Requests()
	seen := map[string]bool{}
	for _, r := range reqs {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
	assert.Len(t, reqs, 2)
}

func TestInsertOrderingDescendingByCreation(t *testing.T) {
	s := New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t1, t2, t3 := base, base.Add(time.Hour), base.Add(2*time.Hour)

	// Apply in a scrambled order; result must still be t3, t2, t1.
	for _, tc := range []struct {
		id string
		ts time.Time
	}{{"b", t2}, {"a", t1}, {"c", t3}} {
		_, err := s.ApplyEvent(insertEvent(t, model.TableRequests, tc.id, reqRow(tc.id, tc.ts)))
		require.NoError(t, err)
	}

	reqs := s.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{reqs[0].ID, reqs[1].ID, reqs[2].ID})
}

func TestPartialUpdatePreservesAbsentFields(t *testing.T) {
	s := New()
	row := reqRow("r1", time.Now())
	row.Notes = "original notes"
	_, err := s.ApplyEvent(insertEvent(t, model.TableRequests, "r1", row))
	require.NoError(t, err)

	// Narrow-column change event: only status flips.
	_, err = s.ApplyEvent(updateEvent(t, model.TableRequests, "r1", map[string]any{"status": model.StatusCompleted}))
	require.NoError(t, err)

	got, ok := s.GetRequest("r1")
	require.True(t, ok)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "original notes", got.Notes)
	assert.Equal(t, 150.0, got.Price)
}

func TestUpdateBeforeInsertIsTolerated(t *testing.T) {
	s := New()
	_, err := s.ApplyEvent(updateEvent(t, model.TableRequests, "r9", map[string]any{
		"status": model.StatusCompleted, "price": 200,
	}))
	require.NoError(t, err)

	got, ok := s.GetRequest("r9")
	require.True(t, ok)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestDeletePropagatesToSideViews(t *testing.T) {
	s := New()
	row := reqRow("r1", time.Now())
	_, err := s.ApplyEvent(insertEvent(t, model.TableRequests, "r1", row))
	require.NoError(t, err)
	s.SetSearchResults([]model.Request{row})
	s.SetHighlighted([]model.Request{row})

	_, err = s.ApplyEvent(model.ChangeEvent{Table: model.TableRequests, Type: model.EventDelete, ID: "r1"})
	require.NoError(t, err)

	assert.Empty(t, s.Requests())
	assert.Empty(t, s.SearchResults(), "delete must clear the search slot in the same operation")
	assert.Empty(t, s.Highlighted())
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := New()
	_, err := s.ApplyEvent(insertEvent(t, model.TableClients, "c1", model.Client{ID: "c1", Name: "Ali"}))
	require.NoError(t, err)

	del := model.ChangeEvent{Table: model.TableClients, Type: model.EventDelete, ID: "c1"}
	_, err = s.ApplyEvent(del)
	require.NoError(t, err)
	_, err = s.ApplyEvent(del)
	require.NoError(t, err)
	assert.Empty(t, s.Clients())
}

func TestClearSearchKeepsPrimaryCollection(t *testing.T) {
	s := New()
	_, err := s.ApplyEvent(insertEvent(t, model.TableRequests, "r1", reqRow("r1", time.Now())))
	require.NoError(t, err)
	s.SetSearchResults([]model.Request{reqRow("r1", time.Now())})

	s.ClearSearch()
	assert.Empty(t, s.SearchResults())
	assert.Len(t, s.Requests(), 1)
}

func TestMalformedEventRejected(t *testing.T) {
	s := New()
	_, err := s.ApplyEvent(model.ChangeEvent{Table: model.TableRequests, Type: model.EventInsert})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = s.ApplyEvent(model.ChangeEvent{Table: "unknown_table", Type: model.EventDelete, ID: "x"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestUpdatesPreserveExistingOrder(t *testing.T) {
	s := New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("r%d", i)
		_, err := s.ApplyEvent(insertEvent(t, model.TableRequests, id, reqRow(id, base.Add(time.Duration(i)*time.Hour))))
		require.NoError(t, err)
	}
	before := s.Requests()

	_, err := s.ApplyEvent(updateEvent(t, model.TableRequests, "r0", map[string]any{"notes": "touched"}))
	require.NoError(t, err)

	after := s.Requests()
	require.Len(t, after, 3)
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
}

func TestAppendRequestsSkipsKnownRows(t *testing.T) {
	s := New()
	base := time.Now()
	s.AppendRequests([]model.Request{reqRow("r1", base), reqRow("r2", base)})
	added := s.AppendRequests([]model.Request{reqRow("r2", base), reqRow("r3", base)})
	assert.Equal(t, 1, added)
	assert.Len(t, s.Requests(), 3)
}
