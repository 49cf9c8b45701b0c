package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/ledger"
	"github.com/mmeshcher/printhub/internal/model"
	"github.com/mmeshcher/printhub/internal/validation"
)

// reportWorkers ограничивает число параллельных расчётов в сводке администратора.
const reportWorkers = 8

// Earnings объединяет профиль фотографа и его отчёт.
type Earnings struct {
	Photographer model.Photographer
	Report       ledger.Report
}

// Earnings считает отчёт фотографа. Фотограф видит только свой, администратор любой.
func (s *Service) Earnings(ctx context.Context, actor model.Actor, photographerID string) (*Earnings, error) {
	if err := requireOwnerOrAdmin(actor, photographerID); err != nil {
		return nil, err
	}
	return s.earnings(ctx, photographerID)
}

func (s *Service) earnings(ctx context.Context, photographerID string) (*Earnings, error) {
	snap, err := s.repo.LoadSnapshot(ctx, photographerID)
	if err != nil {
		return nil, err
	}
	return &Earnings{
		Photographer: snap.Photographer,
		Report:       s.engine.Compute(snap.Orders, snap.Adjustments, snap.Redeems),
	}, nil
}

// AdminPhotographers возвращает всех фотографов с их отчётами.
func (s *Service) AdminPhotographers(ctx context.Context, actor model.Actor) ([]Earnings, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	list, err := s.repo.ListPhotographers(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]Earnings, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reportWorkers)
	for i := range list {
		i := i
		g.Go(func() error {
			e, err := s.earnings(gctx, list[i].ID)
			if err != nil {
				return err
			}
			res[i] = *e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// PostAdjustment добавляет ручную корректировку заработка.
func (s *Service) PostAdjustment(ctx context.Context, actor model.Actor, photographerID string, amount decimal.Decimal, remarks string) (*model.ManualAdjustment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validation.Amount("amount", amount); err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, apperr.Invalid("amount", "must not be zero")
	}
	remarks = strings.TrimSpace(remarks)
	if remarks == "" {
		return nil, apperr.Invalid("remarks", "is required")
	}

	a := &model.ManualAdjustment{
		ID:             uuid.NewString(),
		PhotographerID: photographerID,
		Amount:         amount,
		Remarks:        remarks,
		AdminID:        actor.ID,
		AdminEmail:     actor.Email,
		CreatedAt:      s.now(),
	}
	if err := s.repo.CreateAdjustment(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("manual adjustment posted",
		zap.String("photographer_id", photographerID),
		zap.String("amount", a.Amount.String()),
		zap.String("admin_id", actor.ID),
	)
	return a, nil
}
