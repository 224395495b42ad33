package model

import (
	"encoding/json"
	"fmt"
)

// Tables watched by the engine. The change feed delivers one stream per table.
const (
	TableRequests      = "requests"
	TableClients       = "clients"
	TableCars          = "cars"
	TableCarMakes      = "car_makes"
	TableCarModels     = "car_models"
	TableBrokers       = "brokers"
	TableEmployees     = "employees"
	TableExpenses      = "expenses"
	TableRevenues      = "revenues"
	TableNotifications = "notifications"
	TableMessages      = "messages"
	TableReservations  = "reservations"
)

// WatchedTables lists every table the engine subscribes to, in subscription
// order.
func WatchedTables() []string {
	return []string{
		TableRequests, TableClients, TableCars, TableCarMakes,
		TableCarModels, TableBrokers, TableEmployees, TableExpenses,
		TableRevenues, TableNotifications, TableMessages, TableReservations,
	}
}

// EventType tags a change event as insert, update or delete.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ChangeEvent is a single row-level change delivered by the change feed or
// echoed back from a confirmed local mutation. Payload is the full or partial
// row for inserts and updates; it is empty for deletes.
type ChangeEvent struct {
	Table   string          `json:"table"`
	Type    EventType       `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Actor   string          `json:"actor,omitempty"`
}

// Validate rejects events the merge rules cannot apply safely. A malformed
// event must be dropped by the pipeline, never propagated.
func (ev ChangeEvent) Validate() error {
	if ev.Table == "" {
		return fmt.Errorf("%w: change event missing table", ErrValidation)
	}
	switch ev.Type {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return fmt.Errorf("%w: change event has unknown type %q", ErrValidation, ev.Type)
	}
	if ev.ID == "" {
		return fmt.Errorf("%w: change event missing id", ErrValidation)
	}
	if ev.Type != EventDelete && len(ev.Payload) == 0 {
		return fmt.Errorf("%w: %s event missing payload", ErrValidation, ev.Type)
	}
	return nil
}

// DecodeInto parses the event payload onto dst. For updates dst should
// already hold the cached entity so that fields absent from a partial payload
// are preserved.
func (ev ChangeEvent) DecodeInto(dst any) error {
	if len(ev.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrValidation)
	}
	if err := json.Unmarshal(ev.Payload, dst); err != nil {
		return fmt.Errorf("%w: payload for table %s: %v", ErrValidation, ev.Table, err)
	}
	return nil
}
