package workflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/ledger"
	"github.com/mmeshcher/printhub/internal/model"
)

var now = time.Date(2025, time.April, 2, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func completeBank() model.BankDetails {
	return model.BankDetails{AccountName: "John", AccountNumber: "1234567890", IFSC: "HDFC0001234"}
}

// snapshotWithBalance строит срез, у которого redeemable = 100.
func snapshotWithBalance(bank model.BankDetails) *model.Snapshot {
	return &model.Snapshot{
		Photographer: model.Photographer{ID: "p1", Code: "JOHN001", BankDetails: bank},
		Orders: []model.Order{
			{ID: "o1", Status: model.OrderStatusDelivered, CreatedAt: now},
		},
		Adjustments: []model.ManualAdjustment{
			{ID: "a1", Amount: dec("-200"), Remarks: "damaged print", CreatedAt: now},
		},
	}
}

func newFlows(strict bool) (*OrderFlow, *RedeemFlow) {
	engine := ledger.NewEngine(ledger.DefaultRates())
	return NewOrderFlow(engine, strict), NewRedeemFlow(engine)
}

func TestSubmitChecksBalanceAndBankDetails(t *testing.T) {
	_, flow := newFlows(false)

	_, err := flow.Submit(snapshotWithBalance(completeBank()), dec("150"), now)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	noIFSC := completeBank()
	noIFSC.IFSC = ""
	_, err = flow.Submit(snapshotWithBalance(noIFSC), dec("100"), now)
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "bankDetails", ve.Field)

	req, err := flow.Submit(snapshotWithBalance(completeBank()), dec("100"), now)
	require.NoError(t, err)
	assert.Equal(t, model.RedeemStatusPending, req.Status)
	assert.True(t, req.AmountPaid.IsZero())
	assert.Equal(t, now, req.RequestedAt)
	assert.Equal(t, "p1", req.PhotographerID)
	assert.NotEmpty(t, req.ID)
}

func TestSubmitRejectsAmountsAboveBalance(t *testing.T) {
	_, flow := newFlows(false)
	snap := snapshotWithBalance(completeBank())

	for _, amount := range []string{"100.001", "100.004", "100.01", "100.5", "101", "1000000"} {
		_, err := flow.Submit(snap, dec(amount), now)
		assert.ErrorIs(t, err, apperr.ErrValidation, "amount %s", amount)
	}
}

func TestSubmitRejectsNonPositiveAmounts(t *testing.T) {
	_, flow := newFlows(false)
	snap := snapshotWithBalance(completeBank())

	for _, amount := range []string{"0", "-1", "-0.01"} {
		_, err := flow.Submit(snap, dec(amount), now)
		assert.ErrorIs(t, err, apperr.ErrValidation, "amount %s", amount)
	}
}

func TestSubmitRejectsWhenBalanceNotPositive(t *testing.T) {
	_, flow := newFlows(false)
	snap := &model.Snapshot{
		Photographer: model.Photographer{ID: "p1", BankDetails: completeBank()},
		Orders:       []model.Order{{ID: "o1", Status: model.OrderStatusUnaccepted, CreatedAt: now}},
	}

	_, err := flow.Submit(snap, dec("0.01"), now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSubmitCountsPendingRequests(t *testing.T) {
	_, flow := newFlows(false)
	snap := snapshotWithBalance(completeBank())
	snap.Redeems = []model.RedeemRequest{
		{ID: "r1", Amount: dec("60"), Status: model.RedeemStatusPending, RequestedAt: now},
	}

	_, err := flow.Submit(snap, dec("50"), now)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	req, err := flow.Submit(snap, dec("40"), now)
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(req.Amount))
}

func TestResolveIsTerminal(t *testing.T) {
	_, flow := newFlows(false)
	req := &model.RedeemRequest{ID: "r1", Amount: dec("100"), Status: model.RedeemStatusPending, RequestedAt: now}

	require.NoError(t, flow.Resolve(req, DecisionPaid, dec("100"), "ok", "admin", now))
	assert.Equal(t, model.RedeemStatusPaid, req.Status)
	require.NotNil(t, req.ProcessedAt)

	for _, d := range []Decision{DecisionPaid, DecisionRejected} {
		err := flow.Resolve(req, d, dec("5"), "again", "admin", now.Add(time.Hour))
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	}
	assert.Equal(t, model.RedeemStatusPaid, req.Status)
	assert.True(t, dec("100").Equal(req.AmountPaid))
	assert.Equal(t, now, *req.ProcessedAt)
	assert.Equal(t, "ok", req.Remarks)
}

func TestResolveRejectForcesZeroPaid(t *testing.T) {
	_, flow := newFlows(false)
	req := &model.RedeemRequest{ID: "r1", Amount: dec("100"), Status: model.RedeemStatusPending}

	require.NoError(t, flow.Resolve(req, DecisionRejected, dec("100"), "wrong account", "admin", now))

	assert.Equal(t, model.RedeemStatusRejected, req.Status)
	assert.True(t, req.AmountPaid.IsZero())
	assert.Equal(t, "admin", req.AdminID)
}

func TestResolvePaidRequiresPositiveAmount(t *testing.T) {
	_, flow := newFlows(false)
	req := &model.RedeemRequest{ID: "r1", Amount: dec("100"), Status: model.RedeemStatusPending}

	err := flow.Resolve(req, DecisionPaid, decimal.Zero, "", "admin", now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, model.RedeemStatusPending, req.Status)
	assert.Nil(t, req.ProcessedAt)

	err = flow.Resolve(req, DecisionPaid, dec("99.999"), "", "admin", now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, model.RedeemStatusPending, req.Status)

	err = flow.Resolve(req, Decision("maybe"), dec("1"), "", "admin", now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSetStatusPermissiveAllowsAnyJump(t *testing.T) {
	orders, _ := newFlows(false)
	o := &model.Order{OrderID: "JOHN001_001", Status: model.OrderStatusDelivered}

	tr, err := orders.SetStatus(o, model.OrderStatusPending, nil, now)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, tr.From)
	assert.True(t, dec("-300").Equal(tr.Delta))
	assert.Equal(t, model.OrderStatusPending, o.Status)
	assert.Equal(t, now, o.UpdatedAt)
}

func TestSetStatusDeltas(t *testing.T) {
	orders, _ := newFlows(false)
	tests := []struct {
		from, to model.OrderStatus
		delta    string
	}{
		{model.OrderStatusShipped, model.OrderStatusDelivered, "300"},
		{model.OrderStatusShipped, model.OrderStatusUnaccepted, "-100"},
		{model.OrderStatusDelivered, model.OrderStatusRejected, "-300"},
		{model.OrderStatusUnaccepted, model.OrderStatusDelivered, "400"},
		{model.OrderStatusPending, model.OrderStatusRejected, "0"},
	}

	for _, tt := range tests {
		o := &model.Order{Status: tt.from}
		tr, err := orders.SetStatus(o, tt.to, nil, now)
		require.NoError(t, err)
		assert.True(t, dec(tt.delta).Equal(tr.Delta), "%s -> %s: %s", tt.from, tt.to, tr.Delta)
	}
}

func TestSetStatusStrictGraph(t *testing.T) {
	orders, _ := newFlows(true)

	o := &model.Order{OrderID: "JOHN001_002", Status: model.OrderStatusPending}
	_, err := orders.SetStatus(o, model.OrderStatusDelivered, nil, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, model.OrderStatusPending, o.Status)

	comments := "printing on the big machine"
	for _, next := range []model.OrderStatus{model.OrderStatusPrinting, model.OrderStatusShipped, model.OrderStatusDelivered} {
		_, err := orders.SetStatus(o, next, &comments, now)
		require.NoError(t, err)
	}
	assert.Equal(t, comments, o.AdminComments)

	_, err = orders.SetStatus(o, model.OrderStatusRejected, nil, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	orders, _ := newFlows(false)
	o := &model.Order{Status: model.OrderStatusPending}

	_, err := orders.SetStatus(o, model.OrderStatus("lost"), nil, now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
