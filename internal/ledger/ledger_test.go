package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/printhub/internal/model"
)

var base = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func order(id string, status model.OrderStatus, day int) model.Order {
	return model.Order{
		ID:        id,
		OrderID:   "JOHN001_" + id,
		Status:    status,
		CreatedAt: base.AddDate(0, 0, day),
	}
}

func adjustment(id, amount string, day int) model.ManualAdjustment {
	return model.ManualAdjustment{
		ID:        id,
		Amount:    dec(amount),
		Remarks:   "adj " + id,
		CreatedAt: base.AddDate(0, 0, day),
	}
}

func paid(id, amount string, day int) model.RedeemRequest {
	processed := base.AddDate(0, 0, day)
	return model.RedeemRequest{
		ID:          id,
		Amount:      dec(amount),
		AmountPaid:  dec(amount),
		Status:      model.RedeemStatusPaid,
		RequestedAt: base.AddDate(0, 0, day-1),
		ProcessedAt: &processed,
	}
}

func TestOrderEarningsFormula(t *testing.T) {
	e := NewEngine(DefaultRates())

	for d := 0; d <= 12; d++ {
		for u := 0; u <= 12; u++ {
			want := decimal.NewFromInt(int64(d*300 - u*100))
			got := e.OrderEarnings(d, u)
			require.Truef(t, want.Equal(got), "OrderEarnings(%d, %d) = %s, want %s", d, u, got, want)
		}
	}
}

func TestOrderEarningsUsesConfiguredRates(t *testing.T) {
	e := NewEngine(Rates{EarningPerOrder: dec("250.50"), PenaltyPerUnaccepted: dec("75")})

	got := e.OrderEarnings(2, 3)
	assert.True(t, dec("276").Equal(got), "got %s", got)
}

func TestAdjustmentEarningsIncludesNegatives(t *testing.T) {
	adjs := []model.ManualAdjustment{
		adjustment("a1", "50", 0),
		adjustment("a2", "-20", 1),
		adjustment("a3", "0.75", 2),
		adjustment("a4", "-100.25", 3),
	}

	got := AdjustmentEarnings(adjs)
	assert.True(t, dec("-69.5").Equal(got), "got %s", got)
	assert.True(t, AdjustmentEarnings(nil).IsZero())
}

func TestComputeMixedHistory(t *testing.T) {
	e := NewEngine(DefaultRates())

	orders := []model.Order{
		order("o1", model.OrderStatusDelivered, 0),
		order("o2", model.OrderStatusDelivered, 1),
		order("o3", model.OrderStatusDelivered, 2),
		order("o4", model.OrderStatusUnaccepted, 3),
		order("o5", model.OrderStatusPrinting, 4),
		order("o6", model.OrderStatusRejected, 5),
	}
	adjs := []model.ManualAdjustment{adjustment("a1", "50", 6), adjustment("a2", "-20", 7)}
	redeems := []model.RedeemRequest{
		paid("r1", "200", 8),
		{ID: "r2", Amount: dec("500"), Status: model.RedeemStatusRejected, RequestedAt: base},
		{ID: "r3", Amount: dec("40"), Status: model.RedeemStatusPending, RequestedAt: base},
	}

	r := e.Compute(orders, adjs, redeems)

	assert.Equal(t, Stats{Total: 6, Progress: 1, Delivered: 3, Unaccepted: 1, Rejected: 1}, r.Stats)
	assert.True(t, dec("800").Equal(r.OrderEarnings), "order earnings %s", r.OrderEarnings)
	assert.True(t, dec("30").Equal(r.AdjustmentEarnings))
	assert.True(t, dec("830").Equal(r.GrossEarnings))
	assert.True(t, dec("200").Equal(r.TotalRedeemed))
	assert.True(t, dec("630").Equal(r.RedeemableEarnings))
	assert.True(t, dec("40").Equal(r.PendingRedeem))
	assert.True(t, dec("590").Equal(r.Available()))
	assert.True(t, dec("900").Equal(r.TotalEarnings))
	assert.True(t, dec("100").Equal(r.TotalPenalties))

	// 3 delivered + 1 unaccepted + 2 adjustments + 1 payout
	require.Len(t, r.Entries, 7)
	assert.Equal(t, EntryPayout, r.Entries[0].Kind)
	assert.True(t, dec("-200").Equal(r.Entries[0].Amount))
	assert.Equal(t, EntryDeduction, r.Entries[1].Kind)
	assert.Equal(t, EntryEarning, r.Entries[len(r.Entries)-1].Kind)
}

func TestComputeNegativeBalanceIsNotClamped(t *testing.T) {
	e := NewEngine(DefaultRates())

	r := e.Compute(
		[]model.Order{order("o1", model.OrderStatusUnaccepted, 0)},
		[]model.ManualAdjustment{adjustment("a1", "-50", 1)},
		nil,
	)

	assert.True(t, dec("-150").Equal(r.RedeemableEarnings), "got %s", r.RedeemableEarnings)
}

func TestComputeStatusReversalRemovesEarning(t *testing.T) {
	e := NewEngine(DefaultRates())
	o := order("o1", model.OrderStatusDelivered, 0)

	before := e.Compute([]model.Order{o}, nil, nil)
	require.True(t, dec("300").Equal(before.RedeemableEarnings))

	o.Status = model.OrderStatusRejected
	after := e.Compute([]model.Order{o}, nil, nil)

	assert.True(t, after.OrderEarnings.IsZero())
	assert.True(t, after.RedeemableEarnings.IsZero())
	assert.Empty(t, after.Entries)
	assert.Equal(t, 1, after.Rejected)
}

func TestComputeIsIdempotent(t *testing.T) {
	e := NewEngine(DefaultRates())
	orders := []model.Order{
		order("o1", model.OrderStatusDelivered, 2),
		order("o2", model.OrderStatusDelivered, 2),
		order("o3", model.OrderStatusUnaccepted, 1),
	}
	adjs := []model.ManualAdjustment{adjustment("a1", "10", 2)}
	redeems := []model.RedeemRequest{paid("r1", "100", 3)}

	first := e.Compute(orders, adjs, redeems)
	second := e.Compute(orders, adjs, redeems)

	assert.Equal(t, first, second)
}

func TestEntriesTiesKeepConstructionOrder(t *testing.T) {
	e := NewEngine(DefaultRates())
	orders := []model.Order{
		order("o1", model.OrderStatusDelivered, 0),
		order("o2", model.OrderStatusUnaccepted, 0),
	}
	adjs := []model.ManualAdjustment{adjustment("a1", "5", 0)}

	r := e.Compute(orders, adjs, nil)

	require.Len(t, r.Entries, 3)
	assert.Equal(t, "o1", r.Entries[0].SourceID)
	assert.Equal(t, "o2", r.Entries[1].SourceID)
	assert.Equal(t, "a1", r.Entries[2].SourceID)
}

func TestPayoutFallsBackToRequestedAt(t *testing.T) {
	e := NewEngine(DefaultRates())
	requested := base.AddDate(0, 0, 4)
	redeems := []model.RedeemRequest{{
		ID:          "r1",
		Amount:      dec("75"),
		AmountPaid:  dec("75"),
		Status:      model.RedeemStatusPaid,
		RequestedAt: requested,
	}}

	r := e.Compute(nil, nil, redeems)

	require.Len(t, r.Entries, 1)
	assert.Equal(t, requested, r.Entries[0].Date)
	assert.Equal(t, "Payout - 75.00", r.Entries[0].Description)
}

func TestEntriesWithoutDateSortLast(t *testing.T) {
	e := NewEngine(DefaultRates())
	undated := model.ManualAdjustment{ID: "a0", Amount: dec("1"), Remarks: "legacy"}

	r := e.Compute([]model.Order{order("o1", model.OrderStatusDelivered, 0)}, []model.ManualAdjustment{undated}, nil)

	require.Len(t, r.Entries, 2)
	assert.Equal(t, "o1", r.Entries[0].SourceID)
	assert.Equal(t, "a0", r.Entries[1].SourceID)
}

func TestStatusEffect(t *testing.T) {
	e := NewEngine(DefaultRates())

	assert.True(t, dec("300").Equal(e.StatusEffect(model.OrderStatusDelivered)))
	assert.True(t, dec("-100").Equal(e.StatusEffect(model.OrderStatusUnaccepted)))
	for _, s := range []model.OrderStatus{model.OrderStatusPending, model.OrderStatusPrinting, model.OrderStatusShipped, model.OrderStatusRejected} {
		assert.True(t, e.StatusEffect(s).IsZero(), "status %s", s)
	}
}
