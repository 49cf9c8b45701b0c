// Package ledger вычисляет заработок фотографа по его заказам, корректировкам и выплатам.
//
// Отчёт выводится из текущего состояния документов, а не из журнала событий:
// смена статуса заказа с delivered на любой другой убирает начисление при
// следующем пересчёте. Отдельного журнала начислений в системе нет.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/printhub/internal/model"
)

// Rates задаёт тарифы начислений.
type Rates struct {
	EarningPerOrder      decimal.Decimal
	PenaltyPerUnaccepted decimal.Decimal
}

// DefaultRates возвращает тарифы по умолчанию: 300 за доставленный заказ, 100 штрафа за непринятый.
func DefaultRates() Rates {
	return Rates{
		EarningPerOrder:      decimal.NewFromInt(300),
		PenaltyPerUnaccepted: decimal.NewFromInt(100),
	}
}

// EntryKind описывает тип записи в выписке.
type EntryKind string

const (
	EntryEarning    EntryKind = "earning"
	EntryPenalty    EntryKind = "penalty"
	EntryAdjustment EntryKind = "adjustment"
	EntryDeduction  EntryKind = "deduction"
	EntryPayout     EntryKind = "payout"
)

// Entry описывает одну запись выписки.
type Entry struct {
	SourceID    string
	Kind        EntryKind
	Description string
	Amount      decimal.Decimal
	Date        time.Time
}

// Stats содержит количество заказов по статусам.
type Stats struct {
	Total      int
	Progress   int
	Delivered  int
	Unaccepted int
	Rejected   int
}

// Report содержит итоговые суммы и выписку фотографа.
type Report struct {
	Stats

	TotalEarnings      decimal.Decimal
	TotalPenalties     decimal.Decimal
	OrderEarnings      decimal.Decimal
	AdjustmentEarnings decimal.Decimal
	GrossEarnings      decimal.Decimal
	TotalRedeemed      decimal.Decimal
	RedeemableEarnings decimal.Decimal
	PendingRedeem      decimal.Decimal

	Entries []Entry
}

// Available возвращает сумму, которую ещё можно запросить с учётом незакрытых заявок.
func (r Report) Available() decimal.Decimal {
	return r.RedeemableEarnings.Sub(r.PendingRedeem)
}

// Engine вычисляет отчёты по заданным тарифам.
type Engine struct {
	rates Rates
}

// NewEngine создаёт вычислитель с указанными тарифами.
func NewEngine(rates Rates) *Engine {
	return &Engine{rates: rates}
}

// Rates возвращает тарифы вычислителя.
func (e *Engine) Rates() Rates {
	return e.rates
}

// OrderStats считает заказы по статусам.
func OrderStats(orders []model.Order) Stats {
	s := Stats{Total: len(orders)}
	for _, o := range orders {
		switch {
		case o.Status == model.OrderStatusDelivered:
			s.Delivered++
		case o.Status == model.OrderStatusUnaccepted:
			s.Unaccepted++
		case o.Status == model.OrderStatusRejected:
			s.Rejected++
		case o.Status.InProgress():
			s.Progress++
		}
	}
	return s
}

// OrderEarnings возвращает delivered*EarningPerOrder - unaccepted*PenaltyPerUnaccepted.
func (e *Engine) OrderEarnings(delivered, unaccepted int) decimal.Decimal {
	earned := e.rates.EarningPerOrder.Mul(decimal.NewFromInt(int64(delivered)))
	penalty := e.rates.PenaltyPerUnaccepted.Mul(decimal.NewFromInt(int64(unaccepted)))
	return earned.Sub(penalty)
}

// AdjustmentEarnings суммирует ручные корректировки с учётом знака.
func AdjustmentEarnings(adjustments []model.ManualAdjustment) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range adjustments {
		sum = sum.Add(a.Amount)
	}
	return sum
}

// StatusEffect возвращает вклад одного заказа в заработок при данном статусе.
func (e *Engine) StatusEffect(status model.OrderStatus) decimal.Decimal {
	switch status {
	case model.OrderStatusDelivered:
		return e.rates.EarningPerOrder
	case model.OrderStatusUnaccepted:
		return e.rates.PenaltyPerUnaccepted.Neg()
	default:
		return decimal.Zero
	}
}

// Compute строит отчёт по документам одного фотографа.
// Фильтрацию по фотографу выполняет вызывающий.
func (e *Engine) Compute(orders []model.Order, adjustments []model.ManualAdjustment, redeems []model.RedeemRequest) Report {
	stats := OrderStats(orders)

	r := Report{
		Stats:              stats,
		TotalEarnings:      e.rates.EarningPerOrder.Mul(decimal.NewFromInt(int64(stats.Delivered))),
		TotalPenalties:     e.rates.PenaltyPerUnaccepted.Mul(decimal.NewFromInt(int64(stats.Unaccepted))),
		OrderEarnings:      e.OrderEarnings(stats.Delivered, stats.Unaccepted),
		AdjustmentEarnings: AdjustmentEarnings(adjustments),
		TotalRedeemed:      decimal.Zero,
		PendingRedeem:      decimal.Zero,
	}
	r.GrossEarnings = r.OrderEarnings.Add(r.AdjustmentEarnings)

	for _, rq := range redeems {
		switch rq.Status {
		case model.RedeemStatusPaid:
			r.TotalRedeemed = r.TotalRedeemed.Add(rq.AmountPaid)
		case model.RedeemStatusPending:
			r.PendingRedeem = r.PendingRedeem.Add(rq.Amount)
		}
	}
	r.RedeemableEarnings = r.GrossEarnings.Sub(r.TotalRedeemed)
	r.Entries = e.entries(orders, adjustments, redeems)

	return r
}

func (e *Engine) entries(orders []model.Order, adjustments []model.ManualAdjustment, redeems []model.RedeemRequest) []Entry {
	entries := make([]Entry, 0, len(orders)+len(adjustments)+len(redeems))

	for _, o := range orders {
		switch o.Status {
		case model.OrderStatusDelivered:
			entries = append(entries, Entry{
				SourceID:    o.ID,
				Kind:        EntryEarning,
				Description: fmt.Sprintf("Order %s - Delivered", o.OrderID),
				Amount:      e.rates.EarningPerOrder,
				Date:        o.CreatedAt,
			})
		case model.OrderStatusUnaccepted:
			entries = append(entries, Entry{
				SourceID:    o.ID,
				Kind:        EntryPenalty,
				Description: fmt.Sprintf("Order %s - Unaccepted (Penalty)", o.OrderID),
				Amount:      e.rates.PenaltyPerUnaccepted.Neg(),
				Date:        o.CreatedAt,
			})
		}
	}

	for _, a := range adjustments {
		kind := EntryAdjustment
		if a.Amount.IsNegative() {
			kind = EntryDeduction
		}
		desc := a.Remarks
		if desc == "" {
			desc = "Manual Adjustment"
		}
		entries = append(entries, Entry{
			SourceID:    a.ID,
			Kind:        kind,
			Description: desc,
			Amount:      a.Amount,
			Date:        a.CreatedAt,
		})
	}

	for _, rq := range redeems {
		if rq.Status != model.RedeemStatusPaid || rq.AmountPaid.IsZero() {
			continue
		}
		date := rq.RequestedAt
		if rq.ProcessedAt != nil {
			date = *rq.ProcessedAt
		}
		entries = append(entries, Entry{
			SourceID:    rq.ID,
			Kind:        EntryPayout,
			Description: fmt.Sprintf("Payout - %s", rq.AmountPaid.StringFixed(2)),
			Amount:      rq.AmountPaid.Neg(),
			Date:        date,
		})
	}

	// Порядок записей с одинаковой датой не определён доменом; сохраняем порядок построения.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})

	return entries
}
