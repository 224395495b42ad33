// Package engine keeps an in-memory entity cache coherent with the remote
// workshop service under realtime push updates, intermittent connectivity and
// session expiry, while serving paginated loads, cross-entity search and
// financial analytics.
package engine

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mhmod1992/workshop-engine/internal/config"
	"github.com/Mhmod1992/workshop-engine/internal/finance"
	"github.com/Mhmod1992/workshop-engine/internal/hydrate"
	"github.com/Mhmod1992/workshop-engine/internal/ingest"
	"github.com/Mhmod1992/workshop-engine/internal/lifecycle"
	"github.com/Mhmod1992/workshop-engine/internal/localstate"
	"github.com/Mhmod1992/workshop-engine/internal/model"
	"github.com/Mhmod1992/workshop-engine/internal/pager"
	"github.com/Mhmod1992/workshop-engine/internal/platform/logger"
	"github.com/Mhmod1992/workshop-engine/internal/remote"
	"github.com/Mhmod1992/workshop-engine/internal/search"
	"github.com/Mhmod1992/workshop-engine/internal/store"
)

// Hooks re-exports the lifecycle callbacks for embedders.
type Hooks = lifecycle.Hooks

// ConnState re-exports the folded connection status.
type ConnState = remote.ConnState

// Connection states.
const (
	StateConnecting   = remote.StateConnecting
	StateConnected    = remote.StateConnected
	StateDisconnected = remote.StateDisconnected
)

// incomingExpiry is how long an incoming-request signal stays readable.
const incomingExpiry = 10 * time.Second

// Engine is the application-facing facade. One Engine instance serves one
// client process for its lifetime.
type Engine struct {
	cfg   *config.Config
	log   zerolog.Logger
	clock func() time.Time
	hooks Hooks

	data remote.DataAPI
	auth remote.AuthAPI
	feed remote.ChangeFeed
	blob remote.BlobAPI

	cache *store.Store
	disp  *ingest.Dispatcher
	pg    *pager.Pager
	agg   *search.Aggregator
	fin   *finance.Engine
	local *localstate.Store
	lm    *lifecycle.Manager

	mu         sync.Mutex
	incoming   *model.Request
	incomingAt time.Time

	closedOnce uint32
}

// New wires the engine from configuration. Additional knobs are provided via
// functional options; production callers typically only need WithHooks.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:   cfg,
		log:   logger.New(os.Stdout, "workshop-engine", cfg.DebugLogging),
		clock: time.Now,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.data == nil {
		e.data = remote.NewRESTClient(cfg.ServiceURL, cfg.APIKey, e.currentToken, 30*time.Second, e.log)
	}
	if e.auth == nil {
		e.auth = remote.NewAuthClient(cfg.ServiceURL, cfg.APIKey, 30*time.Second, e.log)
	}
	if e.feed == nil {
		e.feed = remote.NewWSFeed(remote.FeedConfig{
			URL:    cfg.FeedURL,
			APIKey: cfg.APIKey,
			Token:  e.currentToken,
		}, e.log)
	}
	if e.blob == nil {
		e.blob = remote.NewBlobClient(cfg.ServiceURL, cfg.APIKey, e.currentToken, 30*time.Second, e.log)
	}

	local, err := localstate.Open(cfg.StatePath, e.log)
	if err != nil {
		return nil, err
	}
	e.local = local

	e.cache = store.New()
	e.disp = ingest.NewDispatcher(model.WatchedTables(), e.applyEvent, ingest.Config{}, e.log)
	hyd := hydrate.New(e.data, e.cache, e.log)
	e.pg = pager.New(e.data, e.cache, hyd, cfg.PageSize, e.log)
	e.agg = search.New(e.data, e.cache, hyd, e.log)
	e.fin = finance.New(e.data, e.cache, e.clock, e.log)
	e.lm = lifecycle.New(lifecycle.Deps{
		Auth:  e.auth,
		Data:  e.data,
		Feed:  e.feed,
		Disp:  e.disp,
		Cache: e.cache,
		Pager: e.pg,
		Local: e.local,
		Hooks: e.hooks,
		Clock: e.clock,
	}, lifecycle.Config{
		StartupTimeout:    cfg.StartupTimeout,
		InactivityTimeout: cfg.InactivityTimeout,
	}, e.log)
	return e, nil
}

// currentToken exposes the live session token to the transport layers.
func (e *Engine) currentToken() string {
	if e.lm == nil {
		return ""
	}
	sess, ok := e.lm.Session()
	if !ok {
		return ""
	}
	return sess.AccessToken
}

// applyEvent is the dispatcher's merge handler. Inserts made by another actor
// raise the incoming-request signal.
func (e *Engine) applyEvent(ev model.ChangeEvent) error {
	created, err := e.cache.ApplyEvent(ev)
	if err != nil {
		return err
	}
	if created && ev.Table == model.TableRequests && ev.Type == model.EventInsert {
		e.noteIncoming(ev)
	}
	return nil
}

func (e *Engine) noteIncoming(ev model.ChangeEvent) {
	sess, ok := e.lm.Session()
	if ok && ev.Actor != "" && ev.Actor == sess.UserID {
		return // our own write echoed back
	}
	req, found := e.cache.GetRequest(ev.ID)
	if !found {
		return
	}
	e.mu.Lock()
	e.incoming = &req
	e.incomingAt = e.clock()
	e.mu.Unlock()
	incomingSignals.Inc()
	if e.hooks.IncomingRequest != nil {
		e.hooks.IncomingRequest(req)
	}
}

// IncomingRequest returns the most recent request inserted by another actor,
// if it arrived within the last ten seconds.
func (e *Engine) IncomingRequest() (model.Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.incoming == nil || e.clock().Sub(e.incomingAt) > incomingExpiry {
		return model.Request{}, false
	}
	return *e.incoming, true
}

// Start drives bounded initialization with the given access token. An empty
// token starts the engine unauthenticated; use SignIn afterwards.
func (e *Engine) Start(ctx context.Context, accessToken string) error {
	return e.lm.Start(ctx, accessToken)
}

// SignIn authenticates and brings the engine to ready.
func (e *Engine) SignIn(ctx context.Context, email, password string) error {
	return e.lm.SignIn(ctx, email, password)
}

// Close stops the subscriptions and the ingestion pipeline. Idempotent.
func (e *Engine) Close() error {
	if !atomic.CompareAndSwapUint32(&e.closedOnce, 0, 1) {
		return nil
	}
	err := e.lm.Close()
	e.disp.Stop()
	return err
}

// ---- snapshot readers ----

func (e *Engine) Requests() []model.Request           { return e.cache.Requests() }
func (e *Engine) SearchResults() []model.Request      { return e.cache.SearchResults() }
func (e *Engine) Clients() []model.Client             { return e.cache.Clients() }
func (e *Engine) Cars() []model.Car                   { return e.cache.Cars() }
func (e *Engine) CarMakes() []model.CarMake           { return e.cache.CarMakes() }
func (e *Engine) CarModels() []model.CarModel         { return e.cache.CarModels() }
func (e *Engine) Brokers() []model.Broker             { return e.cache.Brokers() }
func (e *Engine) Employees() []model.Employee         { return e.cache.Employees() }
func (e *Engine) Notifications() []model.Notification { return e.cache.Notifications() }
func (e *Engine) Messages() []model.Message           { return e.cache.Messages() }
func (e *Engine) Reservations() []model.Reservation   { return e.cache.Reservations() }
func (e *Engine) Highlighted() []model.Request        { return e.cache.Highlighted() }

// SetHighlighted publishes a pinned side view of requests (deletes from the
// change feed propagate into it like the search slot).
func (e *Engine) SetHighlighted(reqs []model.Request) { e.cache.SetHighlighted(reqs) }

// Phase returns the lifecycle phase.
func (e *Engine) Phase() lifecycle.Phase { return e.lm.Phase() }

// ConnectionState returns the folded per-stream connection status.
func (e *Engine) ConnectionState() ConnState { return e.lm.ConnectionState() }

// Session returns the current session, if any.
func (e *Engine) Session() (model.Session, bool) { return e.lm.Session() }

// Profile returns the authenticated user's profile, if any.
func (e *Engine) Profile() (model.Profile, bool) { return e.lm.Profile() }

// AppConfig returns the global configuration fetched at startup.
func (e *Engine) AppConfig() model.AppConfig { return e.lm.AppConfig() }

// ---- imperative operations ----

// LoadMore fetches the next request page; see pager.Pager.LoadMore.
func (e *Engine) LoadMore(ctx context.Context) error { return e.pg.LoadMore(ctx) }

// SearchByFreeText resolves a query into the search slot.
func (e *Engine) SearchByFreeText(ctx context.Context, query string) error {
	return e.agg.SearchByFreeText(ctx, query)
}

// ClearSearch empties the search slot without touching pagination state.
func (e *Engine) ClearSearch() { e.cache.ClearSearch() }

// RetryConnection performs a full unsubscribe/resubscribe cycle.
func (e *Engine) RetryConnection(ctx context.Context) { e.lm.RetryConnection(ctx) }

// RefreshSessionAndReload is the session-error recovery path.
func (e *Engine) RefreshSessionAndReload(ctx context.Context) error {
	return e.lm.RefreshSessionAndReload(ctx)
}

// ComputeFinancials builds a financial snapshot for the range.
func (e *Engine) ComputeFinancials(ctx context.Context, start, end time.Time, completedOnly bool) (*finance.Snapshot, error) {
	return e.fin.Compute(ctx, start, end, completedOnly)
}

// RevenueTrend fits the trailing revenue history and forecasts a week ahead.
func (e *Engine) RevenueTrend(ctx context.Context) (*finance.Forecast, error) {
	return e.fin.Trend(ctx)
}

// NotifyOnline reports that network connectivity returned.
func (e *Engine) NotifyOnline(ctx context.Context) { e.lm.NotifyOnline(ctx) }

// NotifyOffline reports lost network connectivity.
func (e *Engine) NotifyOffline() { e.lm.NotifyOffline() }

// NotifyForeground reports that the app returned to the foreground.
func (e *Engine) NotifyForeground(ctx context.Context) { e.lm.NotifyForeground(ctx) }

// TouchActivity records user activity for the inactivity watchdog.
func (e *Engine) TouchActivity() { e.lm.TouchActivity() }

// UploadAttachment stores a file in the service's blob storage and returns
// its public URL.
func (e *Engine) UploadAttachment(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	if err := e.blob.Upload(ctx, bucket, path, data, contentType); err != nil {
		return "", err
	}
	return e.blob.PublicURL(bucket, path), nil
}

// RemoveAttachment deletes a stored file.
func (e *Engine) RemoveAttachment(ctx context.Context, bucket, path string) error {
	return e.blob.Remove(ctx, bucket, path)
}
