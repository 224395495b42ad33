// Package finance derives payment summaries, a daily ledger and a short-term
// revenue forecast from the workshop's request, expense and revenue records.
package finance

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mhmod1992/workshop-engine/internal/model"
	"github.com/Mhmod1992/workshop-engine/internal/remote"
	"github.com/Mhmod1992/workshop-engine/internal/store"
)

// Trend is the coarse direction label of the revenue forecast.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// slopeFlatThreshold is the absolute regression slope under which the trend
// is reported flat.
const slopeFlatThreshold = 0.5

// historyDays and forecastDays size the trend window.
const (
	historyDays  = 30
	forecastDays = 7
)

// Snapshot is the result of one financial computation over a date range.
type Snapshot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	CashTotal     float64 `json:"cash_total"`
	CardTotal     float64 `json:"card_total"`
	TransferTotal float64 `json:"transfer_total"`
	UnpaidTotal   float64 `json:"unpaid_total"`
	// Collected is cash + card + transfer actually received.
	Collected float64 `json:"collected"`

	OperationalExpenses float64 `json:"operational_expenses"`
	// Deductions and Advances are surfaced separately; neither counts as an
	// operational expense. Advances still reduce cash on hand.
	Deductions float64 `json:"deductions"`
	Advances   float64 `json:"advances"`

	BrokerCommissions float64 `json:"broker_commissions"`
	NetProfit         float64 `json:"net_profit"`
	CashOnHand        float64 `json:"cash_on_hand"`

	RequestCount int `json:"request_count"`

	Daily       []DayLedger        `json:"daily"`
	Commissions []CommissionReport `json:"commissions"`
}

// DayLedger is one row of the descending-by-date daily breakdown.
type DayLedger struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	Cash     float64 `json:"cash"`
	Card     float64 `json:"card"`
	Transfer float64 `json:"transfer"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
	Requests int     `json:"requests"`
}

// CommissionReport aggregates one broker's earned commission.
type CommissionReport struct {
	BrokerID   string  `json:"broker_id"`
	BrokerName string  `json:"broker_name,omitempty"`
	Requests   int     `json:"requests"`
	Commission float64 `json:"commission"`
}

// DayRevenue is one point of the trend history.
type DayRevenue struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

// Forecast is the regression output over the trailing revenue history.
type Forecast struct {
	History []DayRevenue `json:"history"` // ascending by date
	Slope   float64      `json:"slope"`
	Next    []float64    `json:"next"` // one value per forecast day
	Trend   Trend        `json:"trend"`
}

// Engine computes financial snapshots and forecasts. Ranges may exceed the
// cache's retention, so records are always pulled from the remote service;
// only broker names are resolved from the cache.
type Engine struct {
	data  remote.DataAPI
	cache *store.Store
	clock func() time.Time
	log   zerolog.Logger
}

// New constructs an Engine. A nil clock means time.Now.
func New(data remote.DataAPI, cache *store.Store, clock func() time.Time, log zerolog.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{data: data, cache: cache, clock: clock, log: log}
}

// Compute builds a Snapshot for [start, end]. With completedOnly set, only
// completed requests contribute.
func (e *Engine) Compute(ctx context.Context, start, end time.Time, completedOnly bool) (*Snapshot, error) {
	reqs, err := e.fetchRequests(ctx, start, end, completedOnly)
	if err != nil {
		return nil, err
	}
	expenses, err := fetchRange[model.Expense](ctx, e.data, model.TableExpenses, "date", start, end)
	if err != nil {
		return nil, err
	}
	revenues, err := fetchRange[model.Revenue](ctx, e.data, model.TableRevenues, "date", start, end)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Start: start, End: end, RequestCount: len(reqs)}
	days := map[string]*DayLedger{}
	commissions := map[string]*CommissionReport{}

	for _, r := range reqs {
		cash, card, transfer, unpaid := paymentParts(r)
		snap.CashTotal += cash
		snap.CardTotal += card
		snap.TransferTotal += transfer
		snap.UnpaidTotal += unpaid

		d := day(days, r.CreatedAt)
		d.Cash += cash
		d.Card += card
		d.Transfer += transfer
		d.Requests++

		if r.BrokerID != "" && r.BrokerCommission > 0 {
			snap.BrokerCommissions += r.BrokerCommission
			c, ok := commissions[r.BrokerID]
			if !ok {
				c = &CommissionReport{BrokerID: r.BrokerID}
				if b, found := e.cache.GetBroker(r.BrokerID); found {
					c.BrokerName = b.Name
				}
				commissions[r.BrokerID] = c
			}
			c.Requests++
			c.Commission += r.BrokerCommission
		}
	}

	for _, rv := range revenues {
		switch rv.PaymentMethod {
		case model.PayCard:
			snap.CardTotal += rv.Amount
			day(days, rv.Date).Card += rv.Amount
		case model.PayTransfer:
			snap.TransferTotal += rv.Amount
			day(days, rv.Date).Transfer += rv.Amount
		default:
			snap.CashTotal += rv.Amount
			day(days, rv.Date).Cash += rv.Amount
		}
	}

	for _, ex := range expenses {
		switch ex.Category {
		case model.ExpenseDeduction:
			snap.Deductions += ex.Amount
		case model.ExpenseAdvance:
			snap.Advances += ex.Amount
		default:
			snap.OperationalExpenses += ex.Amount
			day(days, ex.Date).Expenses += ex.Amount
		}
	}

	snap.Collected = snap.CashTotal + snap.CardTotal + snap.TransferTotal
	snap.NetProfit = snap.Collected - snap.OperationalExpenses - snap.BrokerCommissions
	snap.CashOnHand = snap.CashTotal - snap.OperationalExpenses - snap.Advances

	for _, d := range days {
		d.Net = d.Cash + d.Card + d.Transfer - d.Expenses
		snap.Daily = append(snap.Daily, *d)
	}
	sort.Slice(snap.Daily, func(i, j int) bool { return snap.Daily[i].Date > snap.Daily[j].Date })

	for _, c := range commissions {
		snap.Commissions = append(snap.Commissions, *c)
	}
	sort.Slice(snap.Commissions, func(i, j int) bool {
		return snap.Commissions[i].Commission > snap.Commissions[j].Commission
	})

	e.log.Debug().
		Int("requests", len(reqs)).
		Float64("collected", snap.Collected).
		Float64("net_profit", snap.NetProfit).
		Msg("finance: snapshot computed")
	return snap, nil
}

// Trend fetches the trailing 30-day completed-request revenue and fits a
// least-squares line (x = day index, y = revenue) to forecast the next 7
// days. A degenerate all-equal-x denominator is substituted with 1.
func (e *Engine) Trend(ctx context.Context) (*Forecast, error) {
	now := e.clock()
	end := now
	start := now.AddDate(0, 0, -(historyDays - 1)).Truncate(24 * time.Hour)

	reqs, err := e.fetchRequests(ctx, start, end, true)
	if err != nil {
		return nil, err
	}

	perDay := make([]float64, historyDays)
	for _, r := range reqs {
		idx := int(r.CreatedAt.Sub(start).Hours() / 24)
		if idx < 0 || idx >= historyDays {
			continue
		}
		cash, card, transfer, _ := paymentParts(r)
		perDay[idx] += cash + card + transfer
	}

	history := make([]DayRevenue, historyDays)
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range perDay {
		x := float64(i)
		history[i] = DayRevenue{Date: start.AddDate(0, 0, i).Format(dayFormat), Revenue: y}
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	n := float64(historyDays)
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		denom = 1
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	next := make([]float64, forecastDays)
	for i := range next {
		v := intercept + slope*float64(historyDays+i)
		if v < 0 {
			v = 0
		}
		next[i] = v
	}

	trend := TrendFlat
	switch {
	case slope > slopeFlatThreshold:
		trend = TrendUp
	case slope < -slopeFlatThreshold:
		trend = TrendDown
	}

	return &Forecast{History: history, Slope: slope, Next: next, Trend: trend}, nil
}

const dayFormat = "2006-01-02"

func (e *Engine) fetchRequests(ctx context.Context, start, end time.Time, completedOnly bool) ([]model.Request, error) {
	q := remote.Query{
		Filters: []remote.Filter{
			{Column: "created_at", Op: remote.OpGte, Value: start.Format(time.RFC3339)},
			{Column: "created_at", Op: remote.OpLte, Value: end.Format(time.RFC3339)},
		},
		OrderBy:    "created_at",
		Descending: true,
	}
	if completedOnly {
		q.Filters = append(q.Filters, remote.Eq("status", model.StatusCompleted))
	}
	rows, err := e.data.Select(ctx, model.TableRequests, q)
	if err != nil {
		return nil, err
	}
	return remote.DecodeRows[model.Request](model.TableRequests, rows)
}

func fetchRange[T any](ctx context.Context, data remote.DataAPI, table, column string, start, end time.Time) ([]T, error) {
	rows, err := data.Select(ctx, table, remote.Query{
		Filters: []remote.Filter{
			{Column: column, Op: remote.OpGte, Value: start.Format(time.RFC3339)},
			{Column: column, Op: remote.OpLte, Value: end.Format(time.RFC3339)},
		},
	})
	if err != nil {
		return nil, err
	}
	return remote.DecodeRows[T](table, rows)
}

// paymentParts splits one request's price across the payment buckets. Split
// payments contribute their explicit portions; a shortfall against the price
// is the only part that counts as unpaid, so a split row is never counted in
// both a collected bucket and the unpaid bucket.
func paymentParts(r model.Request) (cash, card, transfer, unpaid float64) {
	switch r.PaymentMethod {
	case model.PayCash:
		cash = r.Price
	case model.PayCard:
		card = r.Price
	case model.PayTransfer:
		transfer = r.Price
	case model.PaySplit:
		cash = r.SplitCash
		card = r.SplitCard
		if rem := r.Price - r.SplitCash - r.SplitCard; rem > 0 {
			unpaid = rem
		}
	default:
		unpaid = r.Price
	}
	return cash, card, transfer, unpaid
}

func day(days map[string]*DayLedger, t time.Time) *DayLedger {
	key := t.Format(dayFormat)
	d, ok := days[key]
	if !ok {
		d = &DayLedger{Date: key}
		days[key] = d
	}
	return d
}
