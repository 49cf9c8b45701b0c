package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/printhub/internal/model"
	"github.com/mmeshcher/printhub/internal/service"
	"github.com/mmeshcher/printhub/internal/validation"
)

const (
	// maxUploadMemory ограничивает часть multipart-формы в памяти, остальное уходит во временные файлы.
	maxUploadMemory = 32 << 20
	// maxPhotoSize ограничивает размер одного файла.
	maxPhotoSize = 10 << 20
)

type placeOrderRequest struct {
	Buyer   buyerDTO `json:"buyer"`
	ModelID string   `json:"modelId"`
	Remarks string   `json:"remarks"`
}

// PlaceOrder создаёт заказ. Принимает multipart-форму с фото или JSON без фото.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	in, err := readPlaceOrder(r)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	in.IdempotencyKey = r.Header.Get(idempotencyHeader)

	o, err := h.service.PlaceOrder(r.Context(), actor, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrder(o))
}

func readPlaceOrder(r *http.Request) (service.PlaceOrderInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req placeOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			return service.PlaceOrderInput{}, errors.New("invalid request body")
		}
		return service.PlaceOrderInput{
			Buyer:   model.Buyer(req.Buyer),
			ModelID: req.ModelID,
			Remarks: req.Remarks,
		}, nil
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return service.PlaceOrderInput{}, errors.New("invalid multipart form")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["photos"]
	if len(files) > validation.MaxOrderPhotos {
		return service.PlaceOrderInput{}, fmt.Errorf("at most %d photos per order", validation.MaxOrderPhotos)
	}

	photos := make([]service.Photo, 0, len(files))
	for _, fh := range files {
		p, err := readPhoto(fh)
		if err != nil {
			return service.PlaceOrderInput{}, err
		}
		photos = append(photos, p)
	}

	return service.PlaceOrderInput{
		Buyer: model.Buyer{
			Name:    r.FormValue("buyerName"),
			Phone:   r.FormValue("buyerPhone"),
			Address: r.FormValue("buyerAddress"),
			Pincode: r.FormValue("buyerPincode"),
		},
		ModelID: r.FormValue("modelId"),
		Remarks: r.FormValue("remarks"),
		Photos:  photos,
	}, nil
}

func readPhoto(fh *multipart.FileHeader) (service.Photo, error) {
	if fh.Size > maxPhotoSize {
		return service.Photo{}, fmt.Errorf("file %s exceeds %d MB", fh.Filename, maxPhotoSize>>20)
	}

	f, err := fh.Open()
	if err != nil {
		return service.Photo{}, fmt.Errorf("cannot read file %s", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxPhotoSize+1))
	if err != nil || len(data) > maxPhotoSize {
		return service.Photo{}, fmt.Errorf("cannot read file %s", fh.Filename)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return service.Photo{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}

// ListOwnOrders возвращает заказы текущего фотографа.
func (h *Handler) ListOwnOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOwnOrders(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrders(orders))
}

// AdminListOrders возвращает все заказы с фильтром ?status=.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	orders, err := h.service.AdminListOrders(r.Context(), actor, model.OrderStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrders(orders))
}

type setStatusRequest struct {
	Status        string  `json:"status"`
	AdminComments *string `json:"adminComments"`
}

// SetOrderStatus меняет статус заказа.
func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	o, tr, err := h.service.SetOrderStatus(r.Context(), actor, chi.URLParam(r, "id"), model.OrderStatus(req.Status), req.AdminComments)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, orderStatusResponse{Order: toOrder(o), Transition: toTransition(tr)})
}
