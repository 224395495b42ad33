package remote

import (
	"context"
	"net/url"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Mhmod1992/workshop-engine/internal/model"
)

// FeedConfig configures the websocket change feed.
type FeedConfig struct {
	// URL is the websocket endpoint, e.g. wss://host/realtime/v1.
	URL string
	// APIKey is the service's public API key.
	APIKey string
	// Token supplies the session bearer token used when (re)dialing.
	Token TokenSource
	// DialTimeout bounds one connection attempt.
	DialTimeout time.Duration
	// MaxBackoff caps the redial backoff interval.
	MaxBackoff time.Duration
}

func (c *FeedConfig) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// WSFeed implements ChangeFeed over a websocket transport. Each subscription
// owns its own connection and redials with jittered exponential backoff; the
// backoff resets after every successful connect.
type WSFeed struct {
	cfg FeedConfig
	log zerolog.Logger
}

// NewWSFeed builds the feed client.
func NewWSFeed(cfg FeedConfig, log zerolog.Logger) *WSFeed {
	cfg.applyDefaults()
	return &WSFeed{cfg: cfg, log: log}
}

// Subscribe opens the stream for one table. The returned subscription starts
// in the connecting state and keeps itself alive until Close or ctx
// cancellation.
func (f *WSFeed) Subscribe(ctx context.Context, table string) (Subscription, error) {
	runCtx, cancel := context.WithCancel(ctx)
	sub := &wsSubscription{
		events: make(chan model.ChangeEvent, 64),
		states: make(chan ConnState, 8),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go f.run(runCtx, table, sub)
	return sub, nil
}

func (f *WSFeed) run(ctx context.Context, table string, sub *wsSubscription) {
	defer close(sub.done)
	defer close(sub.events)
	defer close(sub.states)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 250 * time.Millisecond
	exp.MaxInterval = f.cfg.MaxBackoff
	exp.MaxElapsedTime = 0 // retry forever; the lifecycle decides when to stop

	for {
		sub.pushState(StateConnecting)

		conn, err := f.dial(ctx, table)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sub.pushState(StateDisconnected)
			feedReconnects.WithLabelValues(table).Inc()
			f.log.Warn().Err(err).Str("table", table).Msg("remote: change feed dial failed")
			select {
			case <-time.After(exp.NextBackOff()):
				continue
			case <-ctx.Done():
				return
			}
		}

		exp.Reset()
		sub.pushState(StateConnected)
		f.log.Debug().Str("table", table).Msg("remote: change feed connected")

		// ReadJSON is not context-aware: closing the conn is the only way
		// to unblock the read loop when the subscription is torn down, so
		// a watcher closes it as soon as ctx is cancelled.
		readDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-readDone:
			}
		}()

		readErr := f.readLoop(ctx, table, conn, sub)
		close(readDone)
		if readErr != nil && ctx.Err() == nil {
			sub.pushState(StateDisconnected)
			feedReconnects.WithLabelValues(table).Inc()
			f.log.Warn().Err(readErr).Str("table", table).Msg("remote: change feed dropped")
		}
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
	}
}

func (f *WSFeed) dial(ctx context.Context, table string) (*websocket.Conn, error) {
	u, err := url.Parse(f.cfg.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("table", table)
	q.Set("apikey", f.cfg.APIKey)
	if f.cfg.Token != nil {
		if tok := f.cfg.Token(); tok != "" {
			q.Set("token", tok)
		}
	}
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, f.cfg.DialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(dialCtx, u.String(), nil)
	return conn, err
}

func (f *WSFeed) readLoop(ctx context.Context, table string, conn *websocket.Conn, sub *wsSubscription) error {
	for {
		var ev model.ChangeEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		if ev.Table == "" {
			ev.Table = table
		}
		select {
		case sub.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type wsSubscription struct {
	events chan model.ChangeEvent
	states chan ConnState
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

func (s *wsSubscription) Events() <-chan model.ChangeEvent { return s.events }
func (s *wsSubscription) States() <-chan ConnState         { return s.states }

// Close tears the subscription down. The handle must not be reused; retry is
// a fresh Subscribe.
func (s *wsSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

// pushState delivers the latest state without ever blocking the feed
// goroutine. When the buffer is full the oldest state is discarded; status is
// level-based, so only the most recent value matters.
func (s *wsSubscription) pushState(st ConnState) {
	for {
		select {
		case s.states <- st:
			return
		default:
			select {
			case <-s.states:
			default:
			}
		}
	}
}
