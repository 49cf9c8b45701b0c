package service

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/model"
	"github.com/mmeshcher/printhub/internal/workflow"
)

// SubmitRedeem создаёт заявку на вывод. Баланс проверяется внутри транзакции под блокировкой фотографа.
func (s *Service) SubmitRedeem(ctx context.Context, actor model.Actor, amount decimal.Decimal, idempotencyKey string) (*model.RedeemRequest, error) {
	id, err := s.idempotent(ctx, "redeem", actor.ID, idempotencyKey, func(ctx context.Context) (string, error) {
		req, err := s.repo.CreateRedeemRequest(ctx, actor.ID, func(snap *model.Snapshot) (*model.RedeemRequest, error) {
			return s.redeems.Submit(snap, amount, s.now())
		})
		if err != nil {
			return "", err
		}
		return req.ID, nil
	})
	if err != nil {
		if apperr.IsClientError(err) {
			s.metrics.RedeemSubmission("rejected")
		} else {
			s.metrics.RedeemSubmission("error")
		}
		return nil, err
	}
	s.metrics.RedeemSubmission("accepted")

	req, err := s.repo.GetRedeemRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("redeem requested",
		zap.String("redeem_id", req.ID),
		zap.String("photographer_id", req.PhotographerID),
		zap.String("amount", req.Amount.String()),
	)
	return req, nil
}

// ResolveInput содержит решение администратора по заявке.
type ResolveInput struct {
	Decision       workflow.Decision
	AmountPaid     decimal.Decimal
	Remarks        string
	IdempotencyKey string
}

// ResolveRedeem закрывает заявку. Конфликты хранилища повторяются с экспоненциальной задержкой.
func (s *Service) ResolveRedeem(ctx context.Context, actor model.Actor, id string, in ResolveInput) (*model.RedeemRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	resolvedID, err := s.idempotent(ctx, "redeem-resolve", id, in.IdempotencyKey, func(ctx context.Context) (string, error) {
		backoff := retry.WithMaxRetries(s.opts.Allocation.MaxRetries, retry.NewExponential(s.opts.Allocation.Backoff))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			_, err := s.repo.ResolveRedeemRequest(ctx, id, func(req *model.RedeemRequest) error {
				return s.redeems.Resolve(req, in.Decision, in.AmountPaid, in.Remarks, actor.ID, s.now())
			})
			if err != nil && apperr.IsRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		})
		if err != nil {
			return "", err
		}
		return id, nil
	})
	if err != nil {
		return nil, err
	}

	req, err := s.repo.GetRedeemRequest(ctx, resolvedID)
	if err != nil {
		return nil, err
	}

	s.metrics.RedeemResolution(string(req.Status))
	s.logger.Info("redeem resolved",
		zap.String("redeem_id", req.ID),
		zap.String("status", string(req.Status)),
		zap.String("amount_paid", req.AmountPaid.String()),
		zap.String("admin_id", actor.ID),
	)
	return req, nil
}

// ListRedeems возвращает заявки вызывающего, новые первыми.
func (s *Service) ListRedeems(ctx context.Context, actor model.Actor) ([]model.RedeemRequest, error) {
	return s.repo.ListRedeemRequests(ctx, actor.ID)
}

// AdminListRedeems возвращает заявки всех фотографов; пустой статус означает все.
func (s *Service) AdminListRedeems(ctx context.Context, actor model.Actor, status model.RedeemStatus) ([]model.RedeemRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Invalid("status", fmt.Sprintf("unknown redeem status %q", status))
	}
	return s.repo.ListRedeemRequestsByStatus(ctx, status)
}

// idempotent выполняет fn не более одного раза на ключ в пределах scope и owner.
// Без ключа или без хранилища fn выполняется каждый раз.
func (s *Service) idempotent(ctx context.Context, scope, owner, key string, fn func(ctx context.Context) (string, error)) (string, error) {
	if key == "" || s.idem == nil {
		return fn(ctx)
	}

	id, replayed, err := s.idem.Do(ctx, scope, owner+":"+key, fn)
	if err != nil {
		return "", err
	}
	if replayed {
		s.logger.Debug("idempotent replay", zap.String("scope", scope), zap.String("key", key))
	}
	return id, nil
}
