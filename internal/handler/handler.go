// Package handler содержит HTTP-обработчики API сервиса printhub.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/middleware"
	"github.com/mmeshcher/printhub/internal/model"
	"github.com/mmeshcher/printhub/internal/service"
	"github.com/mmeshcher/printhub/internal/workflow"
)

// idempotencyHeader содержит ключ идемпотентности запроса.
const idempotencyHeader = "Idempotency-Key"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Signup(ctx context.Context, in service.SignupInput) (*model.Photographer, error)
	Login(ctx context.Context, email, password string) (*model.Photographer, error)
	ActorFor(p *model.Photographer) model.Actor
	Profile(ctx context.Context, actor model.Actor) (*model.Photographer, error)
	UpdateBankDetails(ctx context.Context, actor model.Actor, photographerID string, details model.BankDetails) (*model.Photographer, error)

	PlaceOrder(ctx context.Context, actor model.Actor, in service.PlaceOrderInput) (*model.Order, error)
	ListOwnOrders(ctx context.Context, actor model.Actor) ([]model.Order, error)
	AdminListOrders(ctx context.Context, actor model.Actor, status model.OrderStatus) ([]model.Order, error)
	SetOrderStatus(ctx context.Context, actor model.Actor, id string, status model.OrderStatus, comments *string) (*model.Order, workflow.Transition, error)

	Earnings(ctx context.Context, actor model.Actor, photographerID string) (*service.Earnings, error)
	WatchEarnings(ctx context.Context, actor model.Actor, photographerID string, fn func(*service.Earnings) error) error
	AdminPhotographers(ctx context.Context, actor model.Actor) ([]service.Earnings, error)
	PostAdjustment(ctx context.Context, actor model.Actor, photographerID string, amount decimal.Decimal, remarks string) (*model.ManualAdjustment, error)

	SubmitRedeem(ctx context.Context, actor model.Actor, amount decimal.Decimal, idempotencyKey string) (*model.RedeemRequest, error)
	ResolveRedeem(ctx context.Context, actor model.Actor, id string, in service.ResolveInput) (*model.RedeemRequest, error)
	ListRedeems(ctx context.Context, actor model.Actor) ([]model.RedeemRequest, error)
	AdminListRedeems(ctx context.Context, actor model.Actor, status model.RedeemStatus) ([]model.RedeemRequest, error)

	ListModels(ctx context.Context) ([]model.CatalogModel, error)
	CreateModel(ctx context.Context, actor model.Actor, in service.CreateModelInput) (*model.CatalogModel, error)
	DeleteModel(ctx context.Context, actor model.Actor, id string) error
}

// Handler реализует HTTP-обработчики API сервиса printhub.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor сопоставляет ошибку бизнес-логики с HTTP-кодом.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrAlreadyExists),
		errors.Is(err, apperr.ErrInProgress):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrAllocationFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeErrorStatus(w, r, statusFor(err), err)
}

func (h *Handler) writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	resp := errorResponse{Error: err.Error()}

	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		resp.Error = ve.Message
		resp.Field = ve.Field
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Error(err),
		)
		if status == http.StatusInternalServerError {
			resp = errorResponse{Error: http.StatusText(status)}
		}
	}

	h.writeJSON(w, status, resp)
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// actor извлекает вызывающего из контекста. При отсутствии пишет 401.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: http.StatusText(http.StatusUnauthorized)})
		return model.Actor{}, false
	}
	return actor, true
}
