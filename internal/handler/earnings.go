package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/printhub/internal/model"
	"github.com/mmeshcher/printhub/internal/service"
)

// streamHeartbeat задаёт интервал комментариев, удерживающих SSE-соединение через прокси.
const streamHeartbeat = 25 * time.Second

// MyEarnings возвращает отчёт о заработке текущего фотографа.
func (h *Handler) MyEarnings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	h.earnings(w, r, actor, actor.ID)
}

// PhotographerEarnings возвращает отчёт указанного фотографа администратору.
func (h *Handler) PhotographerEarnings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	h.earnings(w, r, actor, chi.URLParam(r, "id"))
}

func (h *Handler) earnings(w http.ResponseWriter, r *http.Request, actor model.Actor, photographerID string) {
	e, err := h.service.Earnings(r.Context(), actor, photographerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toReport(e))
}

// StreamEarnings отправляет отчёт через Server-Sent Events при каждом изменении данных фотографа.
func (h *Handler) StreamEarnings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	started := false

	send := func(e *service.Earnings) error {
		data, err := json.Marshal(toReport(e))
		if err != nil {
			return err
		}
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := fmt.Fprintf(w, "event: earnings\ndata: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	errCh := make(chan error, 1)
	events := make(chan *service.Earnings)
	go func() {
		errCh <- h.service.WatchEarnings(ctx, actor, actor.ID, func(e *service.Earnings) error {
			select {
			case events <- e:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	for {
		select {
		case e := <-events:
			if err := send(e); err != nil {
				h.logger.Debug("earnings stream closed", zap.String("photographer_id", actor.ID), zap.Error(err))
				return
			}
		case <-heartbeat.C:
			if !started {
				continue
			}
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case err := <-errCh:
			if err != nil && !started {
				h.writeError(w, r, err)
				return
			}
			if err != nil && ctx.Err() == nil {
				h.logger.Warn("earnings stream failed", zap.String("photographer_id", actor.ID), zap.Error(err))
			}
			return
		}
	}
}

// AdminPhotographers возвращает список фотографов с отчётами.
func (h *Handler) AdminPhotographers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	list, err := h.service.AdminPhotographers(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]adminPhotographerResponse, 0, len(list))
	for i := range list {
		e := &list[i]
		resp = append(resp, adminPhotographerResponse{
			Photographer: toPhotographer(&e.Photographer, false),
			Earnings:     toReport(e),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type adjustmentRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Remarks string          `json:"remarks"`
}

// PostAdjustment добавляет ручную корректировку заработка фотографа.
func (h *Handler) PostAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req adjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	a, err := h.service.PostAdjustment(r.Context(), actor, chi.URLParam(r, "id"), req.Amount, req.Remarks)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toAdjustment(a))
}
