package engine

import "github.com/Mhmod1992/workshop-engine/internal/model"

// Public type aliases so embedders can import only the engine package.
type (
	// Domain entities
	Request      = model.Request
	Client       = model.Client
	Car          = model.Car
	CarMake      = model.CarMake
	CarModel     = model.CarModel
	Broker       = model.Broker
	Employee     = model.Employee
	Expense      = model.Expense
	Revenue      = model.Revenue
	Notification = model.Notification
	Message      = model.Message
	Reservation  = model.Reservation

	// Session and realtime types
	Session     = model.Session
	Profile     = model.Profile
	AppConfig   = model.AppConfig
	ChangeEvent = model.ChangeEvent
)

// Errors re-exported in errors.go
