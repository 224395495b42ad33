// Package remotetest provides in-memory fakes of the remote boundary for
// unit tests of the engine's components.
package remotetest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Mhmod1992/workshop-engine/internal/model"
	"github.com/Mhmod1992/workshop-engine/internal/remote"
)

// SelectCall records one Select invocation.
type SelectCall struct {
	Table string
	Query remote.Query
}

// FakeData implements remote.DataAPI with a scriptable Select handler.
type FakeData struct {
	mu sync.Mutex

	// SelectFunc handles every Select call. Nil means "return no rows".
	SelectFunc func(table string, q remote.Query) ([]json.RawMessage, error)
	// InsertFunc handles Insert; nil echoes the row back marshalled.
	InsertFunc func(table string, row any) (json.RawMessage, error)
	// UpdateFunc handles Update; nil echoes the patch back marshalled.
	UpdateFunc func(table, id string, patch any) (json.RawMessage, error)
	// DeleteErr is returned from every Delete.
	DeleteErr error

	Selects []SelectCall
	Deletes []string
}

func (f *FakeData) Select(_ context.Context, table string, q remote.Query) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.Selects = append(f.Selects, SelectCall{Table: table, Query: q})
	fn := f.SelectFunc
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(table, q)
}

func (f *FakeData) Insert(_ context.Context, table string, row any) (json.RawMessage, error) {
	f.mu.Lock()
	fn := f.InsertFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(table, row)
	}
	return json.Marshal(row)
}

func (f *FakeData) Update(_ context.Context, table, id string, patch any) (json.RawMessage, error) {
	f.mu.Lock()
	fn := f.UpdateFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(table, id, patch)
	}
	return json.Marshal(patch)
}

func (f *FakeData) Delete(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	f.Deletes = append(f.Deletes, id)
	f.mu.Unlock()
	return f.DeleteErr
}

// SelectCount reports how many Select calls hit the given table.
func (f *FakeData) SelectCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Selects {
		if c.Table == table {
			n++
		}
	}
	return n
}

// Rows marshals typed entities into raw service rows.
func Rows[T any](items ...T) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		raw, err := json.Marshal(it)
		if err != nil {
			panic(err)
		}
		out = append(out, raw)
	}
	return out
}

// FakeAuth implements remote.AuthAPI with scriptable results.
type FakeAuth struct {
	mu sync.Mutex

	SignInFunc  func(email, password string) (*model.Session, error)
	SessionFunc func(accessToken string) (*model.Session, error)
	RefreshFunc func(refreshToken string) (*model.Session, error)
	SignOutErr  error

	SignOuts  int
	Refreshes int
}

func (f *FakeAuth) SignIn(_ context.Context, email, password string) (*model.Session, error) {
	if f.SignInFunc == nil {
		return &model.Session{UserID: "user-1", Email: email, AccessToken: "tok", RefreshToken: "refresh-tok"}, nil
	}
	return f.SignInFunc(email, password)
}

func (f *FakeAuth) SignOut(_ context.Context, _ string) error {
	f.mu.Lock()
	f.SignOuts++
	f.mu.Unlock()
	return f.SignOutErr
}

func (f *FakeAuth) GetSession(_ context.Context, accessToken string) (*model.Session, error) {
	if f.SessionFunc == nil {
		return &model.Session{UserID: "user-1", AccessToken: accessToken, RefreshToken: "refresh-tok"}, nil
	}
	return f.SessionFunc(accessToken)
}

func (f *FakeAuth) RefreshSession(_ context.Context, refreshToken string) (*model.Session, error) {
	f.mu.Lock()
	f.Refreshes++
	f.mu.Unlock()
	if f.RefreshFunc == nil {
		return &model.Session{UserID: "user-1", AccessToken: "tok-refreshed", RefreshToken: refreshToken}, nil
	}
	return f.RefreshFunc(refreshToken)
}

func (f *FakeAuth) UpdatePassword(_ context.Context, _, _ string) error { return nil }

// SignOutCount reports how many SignOut calls were made.
func (f *FakeAuth) SignOutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SignOuts
}

// RefreshCount reports how many RefreshSession calls were made.
func (f *FakeAuth) RefreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Refreshes
}

// FakeSubscription is a hand-driven change-feed subscription.
type FakeSubscription struct {
	Table     string
	EventCh   chan model.ChangeEvent
	StateCh   chan remote.ConnState
	closeOnce sync.Once
	Closed    chan struct{}
}

func (s *FakeSubscription) Events() <-chan model.ChangeEvent { return s.EventCh }
func (s *FakeSubscription) States() <-chan remote.ConnState  { return s.StateCh }

func (s *FakeSubscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.Closed)
		close(s.EventCh)
		close(s.StateCh)
	})
	return nil
}

// Push delivers an event to the subscriber.
func (s *FakeSubscription) Push(ev model.ChangeEvent) { s.EventCh <- ev }

// SetState reports a connection state transition.
func (s *FakeSubscription) SetState(st remote.ConnState) { s.StateCh <- st }

// FakeFeed implements remote.ChangeFeed, handing out FakeSubscriptions.
type FakeFeed struct {
	mu   sync.Mutex
	Subs []*FakeSubscription
}

func (f *FakeFeed) Subscribe(_ context.Context, table string) (remote.Subscription, error) {
	sub := &FakeSubscription{
		Table:   table,
		EventCh: make(chan model.ChangeEvent, 16),
		StateCh: make(chan remote.ConnState, 16),
		Closed:  make(chan struct{}),
	}
	f.mu.Lock()
	f.Subs = append(f.Subs, sub)
	f.mu.Unlock()
	return sub, nil
}

// Sub returns the most recent subscription for table, or nil.
func (f *FakeFeed) Sub(table string) *FakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Subs) - 1; i >= 0; i-- {
		if f.Subs[i].Table == table {
			return f.Subs[i]
		}
	}
	return nil
}

// SubCount reports how many subscriptions were opened in total.
func (f *FakeFeed) SubCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Subs)
}
