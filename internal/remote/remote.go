// Package remote defines the boundary to the remote data service: row-level
// CRUD and queries, authentication, the per-table change feed, and blob
// storage. The engine depends only on these interfaces; the REST and
// websocket implementations treat the service's wire contract as a black box.
package remote

import (
	"context"
	"encoding/json"

	"github.com/Mhmod1992/workshop-engine/internal/model"
)

// DataAPI is the row-level query and CRUD surface.
type DataAPI interface {
	// Select returns raw rows for the table matching q. Rows are decoded at
	// the call site so malformed records are rejected at the boundary.
	Select(ctx context.Context, table string, q Query) ([]json.RawMessage, error)
	// Insert creates a row and returns the server's confirmed representation.
	Insert(ctx context.Context, table string, row any) (json.RawMessage, error)
	// Update patches a row by id and returns the confirmed representation.
	Update(ctx context.Context, table, id string, patch any) (json.RawMessage, error)
	// Delete removes a row by id.
	Delete(ctx context.Context, table, id string) error
}

// AuthAPI is the authentication surface of the remote service.
type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetSession(ctx context.Context, accessToken string) (*model.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error)
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}

// ConnState is the connection status a single change-feed subscription
// reports. The lifecycle manager folds per-table states into one public
// status.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Subscription is one table's change-event stream. Events and States are
// closed when the subscription is closed.
type Subscription interface {
	Events() <-chan model.ChangeEvent
	States() <-chan ConnState
	Close() error
}

// ChangeFeed opens per-table subscriptions. A failed subscription handle is
// never reused; retry means Close followed by a fresh Subscribe.
type ChangeFeed interface {
	Subscribe(ctx context.Context, table string) (Subscription, error)
}

// BlobAPI is the attachment storage surface.
type BlobAPI interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
	PublicURL(bucket, path string) string
	Remove(ctx context.Context, bucket, path string) error
}
