package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/model"
	"github.com/mmeshcher/printhub/internal/service"
	"github.com/mmeshcher/printhub/internal/workflow"
)

type redeemRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// SubmitRedeem создаёт заявку на вывод средств.
// Отказ по балансу или реквизитам возвращает 422: запрос корректен, но не может быть исполнен.
func (h *Handler) SubmitRedeem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	q, err := h.service.SubmitRedeem(r.Context(), actor, req.Amount, r.Header.Get(idempotencyHeader))
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			h.writeErrorStatus(w, r, http.StatusUnprocessableEntity, err)
			return
		}
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toRedeem(q))
}

// ListRedeems возвращает историю заявок текущего фотографа.
func (h *Handler) ListRedeems(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListRedeems(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toRedeems(list))
}

// AdminListRedeems возвращает заявки всех фотографов с фильтром ?status=.
func (h *Handler) AdminListRedeems(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	list, err := h.service.AdminListRedeems(r.Context(), actor, model.RedeemStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toRedeems(list))
}

type resolveRequest struct {
	Decision   string          `json:"decision"`
	AmountPaid decimal.Decimal `json:"amountPaid"`
	Remarks    string          `json:"remarks"`
}

// ResolveRedeem закрывает заявку решением администратора.
func (h *Handler) ResolveRedeem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	q, err := h.service.ResolveRedeem(r.Context(), actor, chi.URLParam(r, "id"), service.ResolveInput{
		Decision:       workflow.Decision(req.Decision),
		AmountPaid:     req.AmountPaid,
		Remarks:        req.Remarks,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toRedeem(q))
}
