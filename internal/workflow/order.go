// Package workflow содержит машины состояний заказа и заявки на вывод средств.
package workflow

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/ledger"
	"github.com/mmeshcher/printhub/internal/model"
)

// strictTransitions задаёт линейный граф статусов заказа.
var strictTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:  {model.OrderStatusPrinting, model.OrderStatusUnaccepted, model.OrderStatusRejected},
	model.OrderStatusPrinting: {model.OrderStatusShipped, model.OrderStatusRejected},
	model.OrderStatusShipped:  {model.OrderStatusDelivered, model.OrderStatusUnaccepted},
}

// Transition описывает смену статуса заказа и её влияние на заработок.
type Transition struct {
	From  model.OrderStatus
	To    model.OrderStatus
	Delta decimal.Decimal
}

// OrderFlow управляет статусами заказов.
type OrderFlow struct {
	engine *ledger.Engine
	strict bool
}

// NewOrderFlow создаёт машину состояний заказа.
// В нестрогом режиме администратор может выставить любой известный статус.
func NewOrderFlow(engine *ledger.Engine, strict bool) *OrderFlow {
	return &OrderFlow{engine: engine, strict: strict}
}

// Strict сообщает, включён ли строгий граф переходов.
func (f *OrderFlow) Strict() bool {
	return f.strict
}

// CanTransition сообщает, разрешён ли переход в текущем режиме.
func (f *OrderFlow) CanTransition(from, to model.OrderStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if !f.strict || from == to {
		return true
	}
	for _, next := range strictTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SetStatus меняет статус заказа. Изменяет order на месте и возвращает описание перехода.
func (f *OrderFlow) SetStatus(order *model.Order, status model.OrderStatus, comments *string, now time.Time) (Transition, error) {
	if !status.Valid() {
		return Transition{}, apperr.Invalid("status", fmt.Sprintf("unknown order status %q", status))
	}
	if !f.CanTransition(order.Status, status) {
		return Transition{}, &apperr.InvalidStateError{
			Entity: "order",
			ID:     order.OrderID,
			State:  string(order.Status),
			Op:     "move to " + string(status),
		}
	}

	t := Transition{
		From:  order.Status,
		To:    status,
		Delta: f.engine.StatusEffect(status).Sub(f.engine.StatusEffect(order.Status)),
	}

	order.Status = status
	if comments != nil {
		order.AdminComments = *comments
	}
	order.UpdatedAt = now

	return t, nil
}
