package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// TokenSource returns the current access token, or "" when unauthenticated.
// The REST client reads it per request so a refreshed session takes effect
// immediately.
type TokenSource func() string

// RESTClient implements DataAPI against the remote service's query contract.
type RESTClient struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewRESTClient builds the client. apiKey is the service's public API key;
// token supplies the per-session bearer token.
func NewRESTClient(baseURL, apiKey string, token TokenSource, timeout time.Duration, log zerolog.Logger) *RESTClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("apikey", apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	c.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if tok := token(); tok != "" {
			r.SetHeader("Authorization", "Bearer "+tok)
		}
		return nil
	})

	return &RESTClient{http: c, log: log}
}

// Select returns raw rows matching q.
func (c *RESTClient) Select(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	op := "select " + table
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q.Encode()).
		Get("/rest/v1/" + table)
	if err != nil {
		return nil, NewNetworkError(op, err)
	}
	if resp.StatusCode() != 200 {
		return nil, NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("%s: decode rows: %w", op, err)
	}
	return rows, nil
}

// Insert creates a row and returns the server's representation of it.
func (c *RESTClient) Insert(ctx context.Context, table string, row any) (json.RawMessage, error) {
	op := "insert " + table
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(row).
		Post("/rest/v1/" + table)
	if err != nil {
		return nil, NewNetworkError(op, err)
	}
	if resp.StatusCode() != 201 && resp.StatusCode() != 200 {
		return nil, NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	return firstRow(op, resp.Body())
}

// Update patches a row by id and returns the confirmed representation.
func (c *RESTClient) Update(ctx context.Context, table, id string, patch any) (json.RawMessage, error) {
	op := "update " + table
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetBody(patch).
		Patch("/rest/v1/" + table)
	if err != nil {
		return nil, NewNetworkError(op, err)
	}
	if resp.StatusCode() != 200 {
		return nil, NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	return firstRow(op, resp.Body())
}

// Delete removes a row by id.
func (c *RESTClient) Delete(ctx context.Context, table, id string) error {
	op := "delete " + table
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+id).
		Delete("/rest/v1/" + table)
	if err != nil {
		return NewNetworkError(op, err)
	}
	if resp.StatusCode() != 204 && resp.StatusCode() != 200 {
		return NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	return nil
}

// firstRow unwraps the single-element array the service returns for writes.
func firstRow(op string, body []byte) (json.RawMessage, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty representation", op)
	}
	return rows[0], nil
}
