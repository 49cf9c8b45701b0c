package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/ledger"
	"github.com/mmeshcher/printhub/internal/model"
	"github.com/mmeshcher/printhub/internal/validation"
)

// Decision описывает решение администратора по заявке.
type Decision string

const (
	DecisionPaid     Decision = "paid"
	DecisionRejected Decision = "rejected"
)

// RedeemFlow управляет жизненным циклом заявок на вывод средств.
type RedeemFlow struct {
	engine *ledger.Engine
}

// NewRedeemFlow создаёт машину состояний заявки.
func NewRedeemFlow(engine *ledger.Engine) *RedeemFlow {
	return &RedeemFlow{engine: engine}
}

// Submit проверяет заявку по согласованному срезу данных фотографа и создаёт её в статусе pending.
// Незакрытые заявки резервируют баланс, и лимитом служит доступный остаток.
func (f *RedeemFlow) Submit(snap *model.Snapshot, amount decimal.Decimal, now time.Time) (*model.RedeemRequest, error) {
	if !amount.IsPositive() {
		return nil, apperr.Invalid("amount", "must be greater than zero")
	}
	if err := validation.Amount("amount", amount); err != nil {
		return nil, err
	}
	if !snap.Photographer.BankDetails.Complete() {
		return nil, apperr.Invalid("bankDetails", "account number and IFSC are required before requesting a redeem")
	}

	report := f.engine.Compute(snap.Orders, snap.Adjustments, snap.Redeems)
	if !report.RedeemableEarnings.IsPositive() {
		return nil, apperr.Invalid("amount", "no redeemable earnings")
	}
	if amount.GreaterThan(report.RedeemableEarnings) {
		return nil, apperr.Invalid("amount", fmt.Sprintf("cannot redeem more than redeemable earnings %s", report.RedeemableEarnings.StringFixed(2)))
	}
	if amount.GreaterThan(report.Available()) {
		return nil, apperr.Invalid("amount", fmt.Sprintf("pending requests leave only %s available", report.Available().StringFixed(2)))
	}

	return &model.RedeemRequest{
		ID:             uuid.NewString(),
		PhotographerID: snap.Photographer.ID,
		Amount:         amount,
		Status:         model.RedeemStatusPending,
		AmountPaid:     decimal.Zero,
		RequestedAt:    now,
	}, nil
}

// Resolve закрывает заявку. Заявка покидает pending ровно один раз.
func (f *RedeemFlow) Resolve(req *model.RedeemRequest, decision Decision, amountPaid decimal.Decimal, remarks, adminID string, now time.Time) error {
	switch req.Status {
	case model.RedeemStatusPending:
	default:
		return &apperr.InvalidStateError{Entity: "redeem request", ID: req.ID, State: string(req.Status), Op: "resolve"}
	}

	switch decision {
	case DecisionPaid:
		if !amountPaid.IsPositive() {
			return apperr.Invalid("amountPaid", "must be greater than zero")
		}
		if err := validation.Amount("amountPaid", amountPaid); err != nil {
			return err
		}
		req.Status = model.RedeemStatusPaid
		req.AmountPaid = amountPaid
	case DecisionRejected:
		req.Status = model.RedeemStatusRejected
		req.AmountPaid = decimal.Zero
	default:
		return apperr.Invalid("decision", fmt.Sprintf("unknown decision %q", decision))
	}

	processed := now
	req.ProcessedAt = &processed
	req.Remarks = strings.TrimSpace(remarks)
	req.AdminID = adminID

	return nil
}
