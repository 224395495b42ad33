package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Mhmod1992/workshop-engine/internal/model"
)

// Mutations never guess: the cache is only updated with the row the service
// echoes back, merged through the same path as change-feed events. A failed
// write therefore leaves the cache untouched.

// CreateRequest inserts a new inspection request and merges the confirmed row.
func (e *Engine) CreateRequest(ctx context.Context, req model.Request) (*model.Request, error) {
	sess, ok := e.lm.Session()
	if !ok {
		return nil, model.ErrNoSession
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = model.StatusPending
	}
	echo, err := e.data.Insert(ctx, model.TableRequests, req)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	mutationsTotal.WithLabelValues("create").Inc()
	return e.mergeEcho(model.EventInsert, req.ID, echo, sess.UserID)
}

// UpdateRequest applies a partial patch and merges the confirmed row. Fields
// absent from patch keep their cached values.
func (e *Engine) UpdateRequest(ctx context.Context, id string, patch map[string]any) (*model.Request, error) {
	sess, ok := e.lm.Session()
	if !ok {
		return nil, model.ErrNoSession
	}
	echo, err := e.data.Update(ctx, model.TableRequests, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update request %s: %w", id, err)
	}
	mutationsTotal.WithLabelValues("update").Inc()
	return e.mergeEcho(model.EventUpdate, id, echo, sess.UserID)
}

// DeleteRequest removes a request remotely and from every cached view.
func (e *Engine) DeleteRequest(ctx context.Context, id string) error {
	if _, ok := e.lm.Session(); !ok {
		return model.ErrNoSession
	}
	if err := e.data.Delete(ctx, model.TableRequests, id); err != nil {
		return fmt.Errorf("delete request %s: %w", id, err)
	}
	mutationsTotal.WithLabelValues("delete").Inc()
	_, err := e.cache.ApplyEvent(model.ChangeEvent{
		Table: model.TableRequests,
		Type:  model.EventDelete,
		ID:    id,
	})
	return err
}

func (e *Engine) mergeEcho(typ model.EventType, id string, echo json.RawMessage, actor string) (*model.Request, error) {
	if len(echo) == 0 {
		return nil, fmt.Errorf("%w: service returned no row for request %s", model.ErrValidation, id)
	}
	if _, err := e.cache.ApplyEvent(model.ChangeEvent{
		Table:   model.TableRequests,
		Type:    typ,
		ID:      id,
		Payload: echo,
		Actor:   actor,
	}); err != nil {
		return nil, err
	}
	req, ok := e.cache.GetRequest(id)
	if !ok {
		return nil, model.ErrNotFound
	}
	return &req, nil
}
