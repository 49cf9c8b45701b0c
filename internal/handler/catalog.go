package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/printhub/internal/service"
)

// ListModels возвращает каталог моделей.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.ListModels(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]modelResponse, 0, len(models))
	for i := range models {
		resp = append(resp, toModel(&models[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CreateModel добавляет модель в каталог. Принимает multipart-форму с полями name, description и файлом image.
func (h *Handler) CreateModel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.badRequest(w, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := service.CreateModelInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
	if files := r.MultipartForm.File["image"]; len(files) > 0 {
		img, err := readPhoto(files[0])
		if err != nil {
			h.badRequest(w, err.Error())
			return
		}
		in.Image = &img
	}

	m, err := h.service.CreateModel(r.Context(), actor, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toModel(m))
}

// DeleteModel удаляет модель каталога.
func (h *Handler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteModel(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
