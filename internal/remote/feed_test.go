package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhmod1992/workshop-engine/internal/model"
)

func waitState(t *testing.T, sub Subscription, want ConnState) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case st, ok := <-sub.States():
			require.True(t, ok, "states channel closed while waiting for %s", want)
			if st == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func TestFeedDeliversEvents(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "requests", r.URL.Query().Get("table"))
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_ = conn.WriteJSON(model.ChangeEvent{
			Table: "requests", Type: model.EventInsert, ID: "r1",
			Payload: []byte(`{"id":"r1"}`),
		})
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	feed := NewWSFeed(FeedConfig{
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey: "anon",
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := feed.Subscribe(ctx, "requests")
	require.NoError(t, err)
	defer sub.Close()

	waitState(t, sub, StateConnected)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, "r1", ev.ID)
		assert.Equal(t, model.EventInsert, ev.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestFeedRedialsAfterDrop(t *testing.T) {
	var dials int32
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&dials, 1)
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		if n == 1 {
			// Drop the first connection immediately to force a redial.
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	feed := NewWSFeed(FeedConfig{
		URL:        "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey:     "anon",
		MaxBackoff: 100 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := feed.Subscribe(ctx, "requests")
	require.NoError(t, err)
	defer sub.Close()

	waitState(t, sub, StateConnected)
	waitState(t, sub, StateDisconnected)
	waitState(t, sub, StateConnected)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&dials), int32(2))
}

func TestCloseUnblocksIdleConnection(t *testing.T) {
	// A healthy feed can sit idle for a long time with nothing to push.
	// Close must still return promptly: the read loop is blocked inside
	// ReadJSON and only a conn close can wake it.
	done := make(chan struct{})
	defer close(done)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Keep the connection open without sending or reading anything.
		<-done
	}))
	defer srv.Close()

	feed := NewWSFeed(FeedConfig{
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey: "anon",
	}, zerolog.Nop())

	sub, err := feed.Subscribe(context.Background(), "requests")
	require.NoError(t, err)

	waitState(t, sub, StateConnected)

	closed := make(chan struct{})
	go func() {
		_ = sub.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close hung on an idle connection")
	}

	// Teardown must also close the event stream so pump loops can drain.
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	feed := NewWSFeed(FeedConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}, zerolog.Nop())
	sub, err := feed.Subscribe(context.Background(), "requests")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	// Events channel must be closed after Close.
	_, ok := <-sub.Events()
	assert.False(t, ok)
}
