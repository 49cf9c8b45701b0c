package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/printhub/internal/model"
	"github.com/mmeshcher/printhub/internal/service"
)

type signupRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token        string               `json:"token"`
	Photographer photographerResponse `json:"photographer"`
}

// Signup регистрирует фотографа и сразу открывает сессию.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	p, err := h.service.Signup(r.Context(), service.SignupInput{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.startSession(w, r, p, http.StatusCreated)
}

// Login выполняет аутентификацию фотографа и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.badRequest(w, "email and password are required")
		return
	}

	p, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.startSession(w, r, p, http.StatusOK)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, p *model.Photographer, status int) {
	actor := h.service.ActorFor(p)

	token, err := h.authMiddleware.IssueToken(actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.authMiddleware.SetAuthCookie(w, actor); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug("session started", zap.String("photographer_id", p.ID), zap.Bool("admin", actor.Admin))
	h.writeJSON(w, status, sessionResponse{Token: token, Photographer: toPhotographer(p, actor.Admin)})
}

// Logout удаляет cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me возвращает профиль текущего фотографа.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	p, err := h.service.Profile(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toPhotographer(p, actor.Admin))
}

// UpdateOwnBankDetails обновляет реквизиты текущего фотографа.
func (h *Handler) UpdateOwnBankDetails(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	h.updateBankDetails(w, r, actor, actor.ID)
}

// UpdateBankDetails обновляет реквизиты указанного фотографа от имени администратора.
func (h *Handler) UpdateBankDetails(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	h.updateBankDetails(w, r, actor, chi.URLParam(r, "id"))
}

func (h *Handler) updateBankDetails(w http.ResponseWriter, r *http.Request, actor model.Actor, photographerID string) {
	var req model.BankDetails
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	p, err := h.service.UpdateBankDetails(r.Context(), actor, photographerID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toPhotographer(p, actor.Admin && p.ID == actor.ID))
}
