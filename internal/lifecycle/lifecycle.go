// Package lifecycle owns the session and connection state machine: bounded
// startup, per-table change-feed subscriptions, reconnect cycles, token
// refresh with hard-reset fallback, day-rollover logout and the inactivity
// watchdog.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mhmod1992/workshop-engine/internal/ingest"
	"github.com/Mhmod1992/workshop-engine/internal/localstate"
	"github.com/Mhmod1992/workshop-engine/internal/model"
	"github.com/Mhmod1992/workshop-engine/internal/pager"
	"github.com/Mhmod1992/workshop-engine/internal/remote"
	"github.com/Mhmod1992/workshop-engine/internal/store"
)

// Phase is the coarse engine state.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
	PhaseSessionError
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseSessionError:
		return "session-error"
	case PhaseUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

const dayFormat = "2006-01-02"

// Service-side tables consulted during startup; neither is part of the
// watched change-feed set.
const (
	tableProfiles  = "profiles"
	tableAppConfig = "app_config"
)

// Hooks are the imperative callbacks the engine raises toward its embedder.
// Nil fields are ignored.
type Hooks struct {
	// Reload asks the embedder to restart the client with a marker, e.g.
	// "reset=<unix-nano>" after a hard reset.
	Reload func(marker string)
	// ResetNavigation collapses navigation back to the root view.
	ResetNavigation func()
	// IncomingRequest announces a request inserted by another actor.
	IncomingRequest func(model.Request)
}

func (h Hooks) reload(marker string) {
	if h.Reload != nil {
		h.Reload(marker)
	}
}

func (h Hooks) resetNavigation() {
	if h.ResetNavigation != nil {
		h.ResetNavigation()
	}
}

// Config tunes the Manager's timers.
type Config struct {
	// StartupTimeout bounds the initial config + session + profile fetch.
	StartupTimeout time.Duration
	// InactivityTimeout is idle time after which navigation is collapsed.
	InactivityTimeout time.Duration
	// PollInterval drives the day-rollover and inactivity checks.
	PollInterval time.Duration
}

// DefaultConfig returns the production timer settings.
func DefaultConfig() Config {
	return Config{
		StartupTimeout:    7 * time.Second,
		InactivityTimeout: 10 * time.Minute,
		PollInterval:      time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = d.StartupTimeout
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = d.InactivityTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

// Manager drives the lifecycle state machine. One Manager serves one engine
// instance for its whole lifetime; sessions come and go underneath it.
type Manager struct {
	auth  remote.AuthAPI
	data  remote.DataAPI
	feed  remote.ChangeFeed
	disp  *ingest.Dispatcher
	cache *store.Store
	pg    *pager.Pager
	local *localstate.Store
	hooks Hooks
	cfg   Config
	clock func() time.Time
	log   zerolog.Logger

	mu         sync.Mutex
	phase      Phase
	session    *model.Session
	profile    *model.Profile
	appCfg     model.AppConfig
	offline    bool
	gen        int
	streams    map[string]remote.ConnState
	subs       []remote.Subscription
	sessCtx    context.Context
	sessStop   context.CancelFunc
	lastActive time.Time
	navReset   bool

	pumps sync.WaitGroup
}

// Deps bundles the Manager's collaborators.
type Deps struct {
	Auth  remote.AuthAPI
	Data  remote.DataAPI
	Feed  remote.ChangeFeed
	Disp  *ingest.Dispatcher
	Cache *store.Store
	Pager *pager.Pager
	Local *localstate.Store
	Hooks Hooks
	Clock func() time.Time // test injection; nil means time.Now
}

// New constructs a Manager.
func New(deps Deps, cfg Config, log zerolog.Logger) *Manager {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		auth:    deps.Auth,
		data:    deps.Data,
		feed:    deps.Feed,
		disp:    deps.Disp,
		cache:   deps.Cache,
		pg:      deps.Pager,
		local:   deps.Local,
		hooks:   deps.Hooks,
		cfg:     cfg.withDefaults(),
		clock:   clock,
		log:     log,
		streams: map[string]remote.ConnState{},
	}
}

// Start performs bounded initialization: fetch the global configuration, then
// resolve accessToken into a session and profile. An empty token or a session
// whose user has no profile row ends unauthenticated; any fetch error or
// timeout ends in session-error instead of hanging.
func (m *Manager) Start(ctx context.Context, accessToken string) error {
	m.setPhase(PhaseLoading)

	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.StartupTimeout)
	defer cancel()

	appCfg, err := m.fetchAppConfig(fetchCtx)
	if err != nil {
		m.setPhase(PhaseSessionError)
		return fmt.Errorf("startup config fetch: %w", err)
	}
	m.mu.Lock()
	m.appCfg = appCfg
	m.mu.Unlock()

	if accessToken == "" {
		m.setPhase(PhaseUnauthenticated)
		return nil
	}
	sess, err := m.auth.GetSession(fetchCtx, accessToken)
	if err != nil {
		m.setPhase(PhaseSessionError)
		return fmt.Errorf("startup session fetch: %w", err)
	}
	return m.establish(ctx, fetchCtx, sess)
}

// SignIn authenticates and brings the engine to ready.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	m.setPhase(PhaseLoading)
	sess, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		m.setPhase(PhaseSessionError)
		return err
	}
	if err := m.local.SetLoginDate(m.clock().Format(dayFormat)); err != nil {
		m.log.Warn().Err(err).Msg("lifecycle: persist login date")
	}
	return m.establish(ctx, ctx, sess)
}

// establish validates the profile, loads bulk state and opens subscriptions.
// fetchCtx bounds the validation fetches; ctx outlives them and parents the
// session-scoped context.
func (m *Manager) establish(ctx, fetchCtx context.Context, sess *model.Session) error {
	prof, ok, err := m.fetchProfile(fetchCtx, sess.UserID)
	if err != nil {
		m.setPhase(PhaseSessionError)
		return fmt.Errorf("profile lookup: %w", err)
	}
	if !ok {
		// Authenticated but unprovisioned: treat as no session at all.
		if err := m.auth.SignOut(fetchCtx, sess.AccessToken); err != nil {
			m.log.Warn().Err(err).Msg("lifecycle: sign-out of profileless session")
		}
		m.setPhase(PhaseUnauthenticated)
		m.log.Info().Str("user_id", sess.UserID).Msg("lifecycle: session has no profile, forced logout")
		return nil
	}

	m.mu.Lock()
	m.session = sess
	m.profile = prof
	m.lastActive = m.clock()
	m.navReset = false
	m.mu.Unlock()

	if err := m.bulkLoad(ctx); err != nil {
		m.setPhase(PhaseSessionError)
		return fmt.Errorf("initial load: %w", err)
	}
	m.openSession(ctx)
	m.setPhase(PhaseReady)
	m.log.Info().Str("user_id", sess.UserID).Msg("lifecycle: ready")
	return nil
}

// openSession creates the session-scoped context, subscribes to every
// watched table and starts the poll loop.
func (m *Manager) openSession(ctx context.Context) {
	sessCtx, stop := context.WithCancel(ctx)
	m.mu.Lock()
	m.sessCtx = sessCtx
	m.sessStop = stop
	m.mu.Unlock()

	m.subscribeAll(sessCtx)

	m.pumps.Add(1)
	go func() {
		defer m.pumps.Done()
		t := time.NewTicker(m.cfg.PollInterval)
		defer t.Stop()
		for {
			select {
			case <-sessCtx.Done():
				return
			case <-t.C:
				m.pollTick(sessCtx)
			}
		}
	}()
}

func (m *Manager) subscribeAll(ctx context.Context) {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.streams = map[string]remote.ConnState{}
	m.mu.Unlock()

	for _, table := range model.WatchedTables() {
		sub, err := m.feed.Subscribe(ctx, table)
		if err != nil {
			m.log.Error().Err(err).Str("table", table).Msg("lifecycle: subscribe failed")
			m.setStreamState(gen, table, remote.StateDisconnected)
			continue
		}
		m.mu.Lock()
		m.subs = append(m.subs, sub)
		m.streams[table] = remote.StateConnecting
		m.mu.Unlock()

		m.pumps.Add(2)
		go m.pumpEvents(ctx, table, sub)
		go m.pumpStates(gen, table, sub)
	}
}

func (m *Manager) pumpEvents(ctx context.Context, table string, sub remote.Subscription) {
	defer m.pumps.Done()
	for ev := range sub.Events() {
		if err := m.disp.Submit(ctx, ev); err != nil {
			m.log.Warn().Err(err).Str("table", table).Msg("lifecycle: event submit failed")
		}
	}
}

func (m *Manager) pumpStates(gen int, table string, sub remote.Subscription) {
	defer m.pumps.Done()
	for st := range sub.States() {
		m.setStreamState(gen, table, st)
	}
}

func (m *Manager) setStreamState(gen int, table string, st remote.ConnState) {
	m.mu.Lock()
	if gen == m.gen {
		m.streams[table] = st
	}
	m.mu.Unlock()
}

// closeStreams tears every subscription down and waits for nothing; pump
// goroutines drain on their own once the channels close.
func (m *Manager) closeStreams() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.gen++
	m.streams = map[string]remote.ConnState{}
	m.mu.Unlock()
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			m.log.Warn().Err(err).Msg("lifecycle: subscription close")
		}
	}
}

// bulkLoad refetches every supporting collection, then rewinds the pager and
// loads the first request page.
func (m *Manager) bulkLoad(ctx context.Context) error {
	if err := loadAll(ctx, m.data, model.TableClients, m.cache.ResetClients); err != nil {
		return err
	}
	if err := loadAll(ctx, m.data, model.TableCars, m.cache.ResetCars); err != nil {
		return err
	}
	if err := loadAll(ctx, m.data, model.TableCarMakes, m.cache.ResetCarMakes); err != nil {
		return err
	}
	if err := loadAll(ctx, m.data, model.TableCarModels, m.cache.ResetCarModels); err != nil {
		return err
	}
	if err := loadAll(ctx, m.data, model.TableBrokers, m.cache.ResetBrokers); err != nil {
		return err
	}
	if err := loadAll(ctx, m.data, model.TableEmployees, m.cache.ResetEmployees); err != nil {
		return err
	}
	m.pg.Reset()
	return m.pg.LoadMore(ctx)
}

func loadAll[T any](ctx context.Context, data remote.DataAPI, table string, sink func([]T)) error {
	rows, err := data.Select(ctx, table, remote.Query{})
	if err != nil {
		return err
	}
	items, err := remote.DecodeRows[T](table, rows)
	if err != nil {
		return err
	}
	sink(items)
	return nil
}

func (m *Manager) fetchAppConfig(ctx context.Context) (model.AppConfig, error) {
	rows, err := m.data.Select(ctx, tableAppConfig, remote.Query{Limit: 1})
	if err != nil {
		return model.AppConfig{}, err
	}
	cfgs, err := remote.DecodeRows[model.AppConfig](tableAppConfig, rows)
	if err != nil {
		return model.AppConfig{}, err
	}
	if len(cfgs) == 0 {
		return model.AppConfig{}, nil
	}
	return cfgs[0], nil
}

func (m *Manager) fetchProfile(ctx context.Context, userID string) (*model.Profile, bool, error) {
	rows, err := m.data.Select(ctx, tableProfiles, remote.Query{
		Filters: []remote.Filter{remote.Eq("user_id", userID)},
		Limit:   1,
	})
	if err != nil {
		return nil, false, err
	}
	profs, err := remote.DecodeRows[model.Profile](tableProfiles, rows)
	if err != nil {
		return nil, false, err
	}
	if len(profs) == 0 {
		return nil, false, nil
	}
	return &profs[0], true, nil
}

// RetryConnection performs a full unsubscribe-then-resubscribe cycle. Failed
// subscription handles are never reused in place.
func (m *Manager) RetryConnection(ctx context.Context) {
	m.mu.Lock()
	sessCtx := m.sessCtx
	hasSession := m.session != nil
	m.mu.Unlock()
	if !hasSession || sessCtx == nil {
		return
	}
	reconnectCycles.Inc()
	m.closeStreams()
	m.subscribeAll(sessCtx)
}

// NotifyOffline marks the connection lost until the next online signal.
func (m *Manager) NotifyOffline() {
	m.mu.Lock()
	m.offline = true
	m.mu.Unlock()
}

// NotifyOnline clears the offline override and retries the connection.
func (m *Manager) NotifyOnline(ctx context.Context) {
	m.mu.Lock()
	m.offline = false
	m.mu.Unlock()
	m.RetryConnection(ctx)
}

// NotifyForeground re-validates the session after the app returns to the
// foreground. Identity drift between the local and server-reported user
// forces a full reload; drifted state is never merged.
func (m *Manager) NotifyForeground(ctx context.Context) {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()
	if sess == nil {
		return
	}
	remoteSess, err := m.auth.GetSession(ctx, sess.AccessToken)
	if err != nil {
		if remote.IsAuthError(err) {
			m.setPhase(PhaseSessionError)
		} else {
			m.log.Warn().Err(err).Msg("lifecycle: foreground session check failed")
		}
		return
	}
	if remoteSess.UserID != sess.UserID {
		identityDrifts.Inc()
		m.log.Warn().
			Str("local_user", sess.UserID).
			Str("remote_user", remoteSess.UserID).
			Msg("lifecycle: identity drift, forcing reload")
		m.hooks.reload("identity-drift")
		return
	}
	m.RetryConnection(ctx)
}

// RefreshSessionAndReload is the session-error recovery path: a silent token
// refresh followed by resubscription and a bulk refetch. When the refresh
// fails it falls through to the irreversible hard reset.
func (m *Manager) RefreshSessionAndReload(ctx context.Context) error {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()
	if sess == nil || sess.RefreshToken == "" {
		m.hardReset(ctx)
		return nil
	}
	fresh, err := m.auth.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		m.log.Warn().Err(err).Msg("lifecycle: silent refresh failed, hard reset")
		m.hardReset(ctx)
		return nil
	}
	m.mu.Lock()
	m.session = fresh
	sessCtx := m.sessCtx
	m.mu.Unlock()

	m.closeStreams()
	if err := m.bulkLoad(ctx); err != nil {
		m.setPhase(PhaseSessionError)
		return fmt.Errorf("reload after refresh: %w", err)
	}
	if sessCtx == nil {
		m.openSession(ctx)
	} else {
		m.subscribeAll(sessCtx)
	}
	m.setPhase(PhaseReady)
	return nil
}

// hardReset is the last line of defense against corrupt client state:
// best-effort sign-out, wipe local persisted state, drop the cache and force
// a reload with a cache-busting marker. Individual failures are logged but
// never block the reload.
func (m *Manager) hardReset(ctx context.Context) {
	hardResets.Inc()
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.profile = nil
	stop := m.sessStop
	m.sessCtx = nil
	m.sessStop = nil
	m.mu.Unlock()

	if sess != nil {
		if err := m.auth.SignOut(ctx, sess.AccessToken); err != nil {
			m.log.Warn().Err(err).Msg("lifecycle: hard reset sign-out failed")
		}
	}
	if err := m.local.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("lifecycle: hard reset state clear failed")
	}
	if stop != nil {
		stop()
	}
	m.closeStreams()
	m.cache.Reset()
	m.setPhase(PhaseUnauthenticated)
	m.hooks.reload(fmt.Sprintf("reset=%d", m.clock().UnixNano()))
}

// pollTick runs the wall-clock checks: calendar-day rollover logout and the
// inactivity navigation collapse. Exposed to tests through direct calls.
func (m *Manager) pollTick(ctx context.Context) {
	now := m.clock()

	if day := m.local.LoginDate(); day != "" && day != now.Format(dayFormat) {
		m.log.Info().Str("login_date", day).Msg("lifecycle: day rollover, forcing logout")
		m.forceLogout(ctx)
		return
	}

	m.mu.Lock()
	idle := now.Sub(m.lastActive)
	shouldCollapse := !m.navReset && idle >= m.cfg.InactivityTimeout
	if shouldCollapse {
		m.navReset = true
	}
	m.mu.Unlock()
	if shouldCollapse {
		m.hooks.resetNavigation()
	}
}

// forceLogout ends the session regardless of token validity. The user stays
// on the device, so local state other than the login date is kept.
func (m *Manager) forceLogout(ctx context.Context) {
	forcedLogouts.Inc()
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.profile = nil
	stop := m.sessStop
	m.sessCtx = nil
	m.sessStop = nil
	m.mu.Unlock()

	if sess != nil {
		if err := m.auth.SignOut(ctx, sess.AccessToken); err != nil {
			m.log.Warn().Err(err).Msg("lifecycle: forced logout sign-out failed")
		}
	}
	if err := m.local.SetLoginDate(""); err != nil {
		m.log.Warn().Err(err).Msg("lifecycle: clear login date")
	}
	if stop != nil {
		stop()
	}
	m.closeStreams()
	m.cache.Reset()
	m.setPhase(PhaseUnauthenticated)
	m.hooks.reload("logout")
}

// TouchActivity records user activity, rearming the inactivity watchdog.
func (m *Manager) TouchActivity() {
	now := m.clock()
	m.mu.Lock()
	m.lastActive = now
	m.navReset = false
	m.mu.Unlock()
	if err := m.local.TouchActivity(now); err != nil {
		m.log.Warn().Err(err).Msg("lifecycle: persist activity")
	}
}

// Close tears the session down without signing out.
func (m *Manager) Close() error {
	m.mu.Lock()
	stop := m.sessStop
	m.sessCtx = nil
	m.sessStop = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
	m.closeStreams()
	m.pumps.Wait()
	return nil
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Session returns the current session, if any.
func (m *Manager) Session() (model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return model.Session{}, false
	}
	return *m.session, true
}

// Profile returns the authenticated user's profile, if any.
func (m *Manager) Profile() (model.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return model.Profile{}, false
	}
	return *m.profile, true
}

// AppConfig returns the global configuration fetched at startup.
func (m *Manager) AppConfig() model.AppConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appCfg
}

// ConnectionState folds the per-table stream states worst-case-wins: any
// disconnected stream marks the whole engine disconnected.
func (m *Manager) ConnectionState() remote.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline || len(m.streams) == 0 {
		return remote.StateDisconnected
	}
	worst := remote.StateConnected
	for _, st := range m.streams {
		switch st {
		case remote.StateDisconnected:
			return remote.StateDisconnected
		case remote.StateConnecting:
			worst = remote.StateConnecting
		}
	}
	return worst
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
	phaseGauge.Set(float64(p))
}
