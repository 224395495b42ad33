// Package store holds the in-memory entity cache that the rest of the
// application reads. All mutations flow through the ingestion pipeline or
// confirmed mutation echoes; readers get snapshot copies.
package store

import (
	"fmt"
	"sync"

	"github.com/Mhmod1992/workshop-engine/internal/model"
)

// table is the merge surface one entity collection exposes to ApplyEvent.
type table interface {
	applyInsert(ev model.ChangeEvent) (bool, error)
	applyUpdate(ev model.ChangeEvent) error
	applyDelete(id string) bool
}

// typedTable adapts a collection to the untyped change-event merge rules.
type typedTable[T any] struct {
	col   *collection[T]
	setID func(*T, string)
}

// applyInsert decodes the full row. An insert whose id already exists is
// treated as an update so a push notification racing a paginated fetch or a
// local optimistic insert never duplicates a row.
func (t *typedTable[T]) applyInsert(ev model.ChangeEvent) (bool, error) {
	item, existed := t.col.get(ev.ID)
	if err := ev.DecodeInto(&item); err != nil {
		return false, err
	}
	t.setID(&item, ev.ID)
	if existed {
		t.col.replace(item)
		return false, nil
	}
	t.col.upsert(item)
	return true, nil
}

// applyUpdate decodes the (possibly partial) payload onto a copy of the
// cached row, preserving fields absent from the payload. An update for an
// unknown id is applied as an insert; the feed gives no cross-event ordering
// guarantee, so the update may simply have won the race.
func (t *typedTable[T]) applyUpdate(ev model.ChangeEvent) error {
	item, existed := t.col.get(ev.ID)
	if err := ev.DecodeInto(&item); err != nil {
		return err
	}
	t.setID(&item, ev.ID)
	if existed {
		t.col.replace(item)
		return nil
	}
	t.col.upsert(item)
	return nil
}

func (t *typedTable[T]) applyDelete(id string) bool { return t.col.remove(id) }

// Store is the entity cache. One instance is shared by the whole engine.
type Store struct {
	mu sync.RWMutex

	requests      *collection[model.Request]
	clients       *collection[model.Client]
	cars          *collection[model.Car]
	carMakes      *collection[model.CarMake]
	carModels     *collection[model.CarModel]
	brokers       *collection[model.Broker]
	employees     *collection[model.Employee]
	expenses      *collection[model.Expense]
	revenues      *collection[model.Revenue]
	notifications *collection[model.Notification]
	messages      *collection[model.Message]
	reservations  *collection[model.Reservation]

	// Side collections for request search; cleared independently of the
	// primary paginated collection.
	searchResults *collection[model.Request]
	highlighted   *collection[model.Request]

	tables map[string]table
}

// New constructs an empty Store with every watched collection registered.
func New() *Store {
	byCreatedDesc := func(a, b model.Request) bool { return a.CreatedAt.After(b.CreatedAt) }

	s := &Store{
		requests:      newCollection(func(r model.Request) string { return r.ID }, byCreatedDesc),
		clients:       newCollection(func(c model.Client) string { return c.ID }, nil),
		cars:          newCollection(func(c model.Car) string { return c.ID }, nil),
		carMakes:      newCollection(func(m model.CarMake) string { return m.ID }, nil),
		carModels:     newCollection(func(m model.CarModel) string { return m.ID }, nil),
		brokers:       newCollection(func(b model.Broker) string { return b.ID }, nil),
		employees:     newCollection(func(e model.Employee) string { return e.ID }, nil),
		expenses:      newCollection(func(e model.Expense) string { return e.ID }, nil),
		revenues:      newCollection(func(r model.Revenue) string { return r.ID }, nil),
		notifications: newCollection(func(n model.Notification) string { return n.ID }, nil),
		messages:      newCollection(func(m model.Message) string { return m.ID }, nil),
		reservations:  newCollection(func(r model.Reservation) string { return r.ID }, nil),
		searchResults: newCollection(func(r model.Request) string { return r.ID }, nil),
		highlighted:   newCollection(func(r model.Request) string { return r.ID }, nil),
	}

	s.tables = map[string]table{
		model.TableRequests:      &typedTable[model.Request]{s.requests, func(r *model.Request, id string) { r.ID = id }},
		model.TableClients:       &typedTable[model.Client]{s.clients, func(c *model.Client, id string) { c.ID = id }},
		model.TableCars:          &typedTable[model.Car]{s.cars, func(c *model.Car, id string) { c.ID = id }},
		model.TableCarMakes:      &typedTable[model.CarMake]{s.carMakes, func(m *model.CarMake, id string) { m.ID = id }},
		model.TableCarModels:     &typedTable[model.CarModel]{s.carModels, func(m *model.CarModel, id string) { m.ID = id }},
		model.TableBrokers:       &typedTable[model.Broker]{s.brokers, func(b *model.Broker, id string) { b.ID = id }},
		model.TableEmployees:     &typedTable[model.Employee]{s.employees, func(e *model.Employee, id string) { e.ID = id }},
		model.TableExpenses:      &typedTable[model.Expense]{s.expenses, func(e *model.Expense, id string) { e.ID = id }},
		model.TableRevenues:      &typedTable[model.Revenue]{s.revenues, func(r *model.Revenue, id string) { r.ID = id }},
		model.TableNotifications: &typedTable[model.Notification]{s.notifications, func(n *model.Notification, id string) { n.ID = id }},
		model.TableMessages:      &typedTable[model.Message]{s.messages, func(m *model.Message, id string) { m.ID = id }},
		model.TableReservations:  &typedTable[model.Reservation]{s.reservations, func(r *model.Reservation, id string) { r.ID = id }},
	}
	return s
}

// ApplyEvent merges one validated change event into the cache. It reports
// whether the event created a new row (used for the incoming-entity signal).
// Applying the same insert or update twice yields the same cache state.
func (s *Store) ApplyEvent(ev model.ChangeEvent) (created bool, err error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[ev.Table]
	if !ok {
		return false, fmt.Errorf("%w: unknown table %q", model.ErrValidation, ev.Table)
	}

	switch ev.Type {
	case model.EventInsert:
		return t.applyInsert(ev)
	case model.EventUpdate:
		return false, t.applyUpdate(ev)
	case model.EventDelete:
		t.applyDelete(ev.ID)
		// A deleted request must also leave any active side view so
		// secondary surfaces never hold dangling references.
		if ev.Table == model.TableRequests {
			s.searchResults.remove(ev.ID)
			s.highlighted.remove(ev.ID)
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown event type %q", model.ErrValidation, ev.Type)
	}
}

// ---- bulk load and pagination support ----

// ResetRequests replaces the primary requests collection (full reload).
func (s *Store) ResetRequests(reqs []model.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests.reset(reqs)
}

// AppendRequests appends a fetched page to the cache tail, skipping rows the
// feed already delivered. Returns the number of rows actually added.
func (s *Store) AppendRequests(reqs []model.Request) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests.appendTail(reqs)
}

// UpsertClients merges back-filled clients without disturbing order.
func (s *Store) UpsertClients(items []model.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.clients.upsert(it)
	}
}

// UpsertCars merges back-filled cars.
func (s *Store) UpsertCars(items []model.Car) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.cars.upsert(it)
	}
}

// UpsertCarMakes merges back-filled makes.
func (s *Store) UpsertCarMakes(items []model.CarMake) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.carMakes.upsert(it)
	}
}

// UpsertCarModels merges back-filled models.
func (s *Store) UpsertCarModels(items []model.CarModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.carModels.upsert(it)
	}
}

// ResetClients replaces the clients collection (bulk startup load).
func (s *Store) ResetClients(items []model.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients.reset(items)
}

// ResetCars replaces the cars collection.
func (s *Store) ResetCars(items []model.Car) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cars.reset(items)
}

// ResetCarMakes replaces the makes collection.
func (s *Store) ResetCarMakes(items []model.CarMake) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carMakes.reset(items)
}

// ResetCarModels replaces the models collection.
func (s *Store) ResetCarModels(items []model.CarModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carModels.reset(items)
}

// ResetBrokers replaces the brokers collection.
func (s *Store) ResetBrokers(items []model.Broker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brokers.reset(items)
}

// ResetEmployees replaces the employees collection.
func (s *Store) ResetEmployees(items []model.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees.reset(items)
}

// ---- search side collection ----

// SetSearchResults fills the clearable search slot. Pagination state of the
// primary collection is untouched.
func (s *Store) SetSearchResults(reqs []model.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchResults.reset(reqs)
}

// ClearSearch empties the search slot.
func (s *Store) ClearSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchResults.reset(nil)
}

// SetHighlighted fills the highlighted side slot.
func (s *Store) SetHighlighted(reqs []model.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlighted.reset(reqs)
}

// ---- snapshot readers ----

// Requests returns the primary collection ordered by creation time
// descending.
func (s *Store) Requests() []model.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests.snapshot()
}

// RequestCount reports the primary collection size without copying.
func (s *Store) RequestCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests.len()
}

// SearchResults returns the current search slot.
func (s *Store) SearchResults() []model.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchResults.snapshot()
}

// Highlighted returns the highlighted side slot.
func (s *Store) Highlighted() []model.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highlighted.snapshot()
}

// Clients returns all cached clients.
func (s *Store) Clients() []model.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clients.snapshot()
}

// Cars returns all cached cars.
func (s *Store) Cars() []model.Car {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cars.snapshot()
}

// CarMakes returns all cached makes.
func (s *Store) CarMakes() []model.CarMake {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carMakes.snapshot()
}

// CarModels returns all cached models.
func (s *Store) CarModels() []model.CarModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carModels.snapshot()
}

// Brokers returns all cached brokers.
func (s *Store) Brokers() []model.Broker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.brokers.snapshot()
}

// Employees returns all cached employees.
func (s *Store) Employees() []model.Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.employees.snapshot()
}

// Expenses returns all cached expenses.
func (s *Store) Expenses() []model.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expenses.snapshot()
}

// Revenues returns all cached revenues.
func (s *Store) Revenues() []model.Revenue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revenues.snapshot()
}

// Notifications returns all cached notifications.
func (s *Store) Notifications() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifications.snapshot()
}

// Messages returns all cached messages.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages.snapshot()
}

// Reservations returns all cached reservations.
func (s *Store) Reservations() []model.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reservations.snapshot()
}

// GetRequest looks up one request by id.
func (s *Store) GetRequest(id string) (model.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests.get(id)
}

// GetClient looks up one client by id.
func (s *Store) GetClient(id string) (model.Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clients.get(id)
}

// GetCar looks up one car by id.
func (s *Store) GetCar(id string) (model.Car, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cars.get(id)
}

// GetCarMake looks up one make by id.
func (s *Store) GetCarMake(id string) (model.CarMake, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carMakes.get(id)
}

// GetCarModel looks up one model by id.
func (s *Store) GetCarModel(id string) (model.CarModel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carModels.get(id)
}

// GetBroker looks up one broker by id.
func (s *Store) GetBroker(id string) (model.Broker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.brokers.get(id)
}

// Reset empties every collection. Used on logout and hard reset.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests.reset(nil)
	s.clients.reset(nil)
	s.cars.reset(nil)
	s.carMakes.reset(nil)
	s.carModels.reset(nil)
	s.brokers.reset(nil)
	s.employees.reset(nil)
	s.expenses.reset(nil)
	s.revenues.reset(nil)
	s.notifications.reset(nil)
	s.messages.reset(nil)
	s.reservations.reset(nil)
	s.searchResults.reset(nil)
	s.highlighted.reset(nil)
}
