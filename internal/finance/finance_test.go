package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhmod1992/workshop-engine/internal/model"
	"github.com/Mhmod1992/workshop-engine/internal/remote"
	"github.com/Mhmod1992/workshop-engine/internal/remote/remotetest"
	"github.com/Mhmod1992/workshop-engine/internal/store"
)

var anchor = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func serveFinance(reqs []model.Request, expenses []model.Expense, revenues []model.Revenue) *remotetest.FakeData {
	return &remotetest.FakeData{
		SelectFunc: func(table string, q remote.Query) ([]json.RawMessage, error) {
			switch table {
			case model.TableRequests:
				return remotetest.Rows(reqs...), nil
			case model.TableExpenses:
				return remotetest.Rows(expenses...), nil
			case model.TableRevenues:
				return remotetest.Rows(revenues...), nil
			}
			return nil, nil
		},
	}
}

func newEngine(data *remotetest.FakeData) *Engine {
	return New(data, store.New(), func() time.Time { return anchor }, zerolog.Nop())
}

func TestSplitPaymentCountedProportionally(t *testing.T) {
	data := serveFinance([]model.Request{{
		ID:            "r1",
		Status:        model.StatusCompleted,
		Price:         200,
		PaymentMethod: model.PaySplit,
		SplitCash:     120,
		SplitCard:     80,
		CreatedAt:     anchor,
	}}, nil, nil)
	e := newEngine(data)

	snap, err := e.Compute(context.Background(), anchor.AddDate(0, 0, -7), anchor, true)
	require.NoError(t, err)

	assert.InDelta(t, 120, snap.CashTotal, 1e-9)
	assert.InDelta(t, 80, snap.CardTotal, 1e-9)
	assert.Zero(t, snap.UnpaidTotal, "a fully-covered split must not count as unpaid")
	assert.InDelta(t, 200, snap.Collected, 1e-9)
}

func TestSplitShortfallIsUnpaidOnce(t *testing.T) {
	data := serveFinance([]model.Request{{
		ID:            "r1",
		Status:        model.StatusCompleted,
		Price:         300,
		PaymentMethod: model.PaySplit,
		SplitCash:     100,
		SplitCard:     100,
		CreatedAt:     anchor,
	}}, nil, nil)
	e := newEngine(data)

	snap, err := e.Compute(context.Background(), anchor.AddDate(0, 0, -7), anchor, true)
	require.NoError(t, err)

	assert.InDelta(t, 100, snap.UnpaidTotal, 1e-9)
	assert.InDelta(t, 200, snap.Collected, 1e-9)
}

func TestNonOperationalExpensesKeptOutOfProfit(t *testing.T) {
	data := serveFinance(
		[]model.Request{{ID: "r1", Status: model.StatusCompleted, Price: 1000, PaymentMethod: model.PayCash, CreatedAt: anchor}},
		[]model.Expense{
			{ID: "e1", Category: "rent", Amount: 200, Date: anchor},
			{ID: "e2", Category: model.ExpenseDeduction, Amount: 50, Date: anchor},
			{ID: "e3", Category: model.ExpenseAdvance, Amount: 150, Date: anchor},
		},
		nil,
	)
	e := newEngine(data)

	snap, err := e.Compute(context.Background(), anchor.AddDate(0, 0, -7), anchor, true)
	require.NoError(t, err)

	assert.InDelta(t, 200, snap.OperationalExpenses, 1e-9)
	assert.InDelta(t, 50, snap.Deductions, 1e-9)
	assert.InDelta(t, 150, snap.Advances, 1e-9)
	assert.InDelta(t, 800, snap.NetProfit, 1e-9, "deductions and advances must not reduce profit")
	assert.InDelta(t, 650, snap.CashOnHand, 1e-9, "advances do reduce cash on hand")
}

func TestBrokerCommissionsSummedPerBroker(t *testing.T) {
	data := serveFinance([]model.Request{
		{ID: "r1", Status: model.StatusCompleted, Price: 500, PaymentMethod: model.PayCash, BrokerID: "b1", BrokerCommission: 50, CreatedAt: anchor},
		{ID: "r2", Status: model.StatusCompleted, Price: 400, PaymentMethod: model.PayCard, BrokerID: "b1", BrokerCommission: 40, CreatedAt: anchor},
		{ID: "r3", Status: model.StatusCompleted, Price: 300, PaymentMethod: model.PayCash, CreatedAt: anchor},
	}, nil, nil)
	e := newEngine(data)

	snap, err := e.Compute(context.Background(), anchor.AddDate(0, 0, -7), anchor, true)
	require.NoError(t, err)

	assert.InDelta(t, 90, snap.BrokerCommissions, 1e-9)
	require.Len(t, snap.Commissions, 1)
	assert.Equal(t, "b1", snap.Commissions[0].BrokerID)
	assert.Equal(t, 2, snap.Commissions[0].Requests)
	assert.InDelta(t, 1200-90, snap.NetProfit, 1e-9)
}

func TestDailyLedgerDescending(t *testing.T) {
	data := serveFinance([]model.Request{
		{ID: "r1", Status: model.StatusCompleted, Price: 100, PaymentMethod: model.PayCash, CreatedAt: anchor.AddDate(0, 0, -2)},
		{ID: "r2", Status: model.StatusCompleted, Price: 200, PaymentMethod: model.PayCash, CreatedAt: anchor.AddDate(0, 0, -1)},
		{ID: "r3", Status: model.StatusCompleted, Price: 300, PaymentMethod: model.PayCash, CreatedAt: anchor},
	}, nil, nil)
	e := newEngine(data)

	snap, err := e.Compute(context.Background(), anchor.AddDate(0, 0, -7), anchor, true)
	require.NoError(t, err)

	require.Len(t, snap.Daily, 3)
	assert.Equal(t, "2026-08-15", snap.Daily[0].Date)
	assert.Equal(t, "2026-08-14", snap.Daily[1].Date)
	assert.Equal(t, "2026-08-13", snap.Daily[2].Date)
	assert.InDelta(t, 300, snap.Daily[0].Cash, 1e-9)
}

func TestFlatHistoryForecastsFlat(t *testing.T) {
	start := anchor.AddDate(0, 0, -(historyDays - 1)).Truncate(24 * time.Hour)
	reqs := make([]model.Request, 0, historyDays)
	for i := 0; i < historyDays; i++ {
		reqs = append(reqs, model.Request{
			ID:            fmt.Sprintf("r%d", i),
			Status:        model.StatusCompleted,
			Price:         1000,
			PaymentMethod: model.PayCash,
			CreatedAt:     start.AddDate(0, 0, i).Add(6 * time.Hour),
		})
	}
	e := newEngine(serveFinance(reqs, nil, nil))

	fc, err := e.Trend(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TrendFlat, fc.Trend)
	assert.InDelta(t, 0, fc.Slope, 1e-6)
	require.Len(t, fc.Next, forecastDays)
	for _, v := range fc.Next {
		assert.InDelta(t, 1000, v, 1e-6)
	}
}

func TestRisingHistoryForecastsUp(t *testing.T) {
	start := anchor.AddDate(0, 0, -(historyDays - 1)).Truncate(24 * time.Hour)
	reqs := make([]model.Request, 0, historyDays)
	for i := 0; i < historyDays; i++ {
		reqs = append(reqs, model.Request{
			ID:            fmt.Sprintf("r%d", i),
			Status:        model.StatusCompleted,
			Price:         float64(100 * (i + 1)),
			PaymentMethod: model.PayCash,
			CreatedAt:     start.AddDate(0, 0, i).Add(6 * time.Hour),
		})
	}
	e := newEngine(serveFinance(reqs, nil, nil))

	fc, err := e.Trend(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TrendUp, fc.Trend)
	assert.Greater(t, fc.Slope, slopeFlatThreshold)
	assert.Greater(t, fc.Next[0], fc.History[historyDays-1].Revenue*0.9,
		"forecast should continue the rising line")
}

func TestEmptyHistoryForecastsFlatZero(t *testing.T) {
	e := newEngine(serveFinance(nil, nil, nil))

	fc, err := e.Trend(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TrendFlat, fc.Trend)
	for _, v := range fc.Next {
		assert.Zero(t, v)
	}
}
