package model

import "time"

// Payment methods accepted on a request.
const (
	PayCash     = "cash"
	PayCard     = "card"
	PayTransfer = "transfer"
	PayUnpaid   = "unpaid"
	PaySplit    = "split"
)

// Request statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// Expense categories excluded from operational expense totals.
const (
	ExpenseDeduction = "employee_deduction"
	ExpenseAdvance   = "advance"
)

// Request is an inspection request, the primary high-volume entity.
type Request struct {
	ID               string    `json:"id"`
	ClientID         string    `json:"client_id"`
	CarID            string    `json:"car_id"`
	BrokerID         string    `json:"broker_id,omitempty"`
	Status           string    `json:"status"`
	Price            float64   `json:"price"`
	PaymentMethod    string    `json:"payment_method"`
	SplitCash        float64   `json:"split_cash,omitempty"`
	SplitCard        float64   `json:"split_card,omitempty"`
	BrokerCommission float64   `json:"broker_commission,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Client is a workshop customer.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Car is a vehicle owned by a client.
type Car struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	PlateNumber string    `json:"plate_number"`
	VIN         string    `json:"vin,omitempty"`
	MakeID      string    `json:"make_id,omitempty"`
	ModelID     string    `json:"model_id,omitempty"`
	Year        int       `json:"year,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CarMake is a vehicle manufacturer.
type CarMake struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CarModel is a vehicle model belonging to a make.
type CarModel struct {
	ID        string    `json:"id"`
	MakeID    string    `json:"make_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Broker refers requests to the workshop for a commission.
type Broker struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CommissionRate float64   `json:"commission_rate,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Employee is a workshop staff member.
type Employee struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role,omitempty"`
	Salary    float64   `json:"salary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expense is a cash outflow. Categories employee_deduction and advance are
// surfaced separately and excluded from operational expense totals.
type Expense struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Amount     float64   `json:"amount"`
	EmployeeID string    `json:"employee_id,omitempty"`
	Date       time.Time `json:"date"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Revenue is income outside of inspection requests.
type Revenue struct {
	ID            string    `json:"id"`
	Amount        float64   `json:"amount"`
	Source        string    `json:"source,omitempty"`
	PaymentMethod string    `json:"payment_method"`
	Date          time.Time `json:"date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Notification is an in-app notification row.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is an internal chat message between employees.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reservation is a scheduled future inspection slot.
type Reservation struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	CarID       string    `json:"car_id,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Profile is the application-level record backing an authenticated user.
// A session whose user has no profile row is treated as invalid.
type Profile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	RoleName  string    `json:"role_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session mirrors the remote service's authenticated session locally.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// AppConfig is the global configuration row fetched during startup.
type AppConfig struct {
	WorkshopName string  `json:"workshop_name,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	DefaultPrice float64 `json:"default_price,omitempty"`
}
