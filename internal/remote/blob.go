package remote

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// BlobClient implements BlobAPI against the remote service's storage
// endpoints. Used for request attachments (photos, scanned documents).
type BlobClient struct {
	http    *resty.Client
	baseURL string
	log     zerolog.Logger
}

// NewBlobClient builds the blob client.
func NewBlobClient(baseURL, apiKey string, token TokenSource, timeout time.Duration, log zerolog.Logger) *BlobClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("apikey", apiKey).
		SetTimeout(timeout)
	c.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if tok := token(); tok != "" {
			r.SetHeader("Authorization", "Bearer "+tok)
		}
		return nil
	})
	return &BlobClient{http: c, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

// Upload stores an object, overwriting any existing object at path.
func (c *BlobClient) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	op := "upload blob"
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetBody(data).
		Post("/storage/v1/object/" + bucket + "/" + path)
	if err != nil {
		return NewNetworkError(op, err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	return nil
}

// PublicURL returns the public object URL. No network call is made.
func (c *BlobClient) PublicURL(bucket, path string) string {
	return c.baseURL + "/storage/v1/object/public/" + bucket + "/" + path
}

// Remove deletes an object.
func (c *BlobClient) Remove(ctx context.Context, bucket, path string) error {
	op := "remove blob"
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/storage/v1/object/" + bucket + "/" + path)
	if err != nil {
		return NewNetworkError(op, err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 204 {
		return NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	return nil
}
