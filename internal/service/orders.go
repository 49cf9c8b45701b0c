package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/model"
	"github.com/mmeshcher/printhub/internal/validation"
	"github.com/mmeshcher/printhub/internal/workflow"
)

// errNoObjectStore возвращается, когда файлы нужно загрузить, а хранилище не подключено.
var errNoObjectStore = errors.New("object storage is not configured")

// Photo содержит один загружаемый файл.
type Photo struct {
	Name        string
	ContentType string
	Data        []byte
}

// PlaceOrderInput содержит данные нового заказа.
type PlaceOrderInput struct {
	Buyer          model.Buyer
	ModelID        string
	Remarks        string
	Photos         []Photo
	IdempotencyKey string
}

// PlaceOrder создаёт заказ: выделяет номер, загружает фото и сохраняет документ.
// При сбое после первой загрузки все загруженные объекты удаляются.
func (s *Service) PlaceOrder(ctx context.Context, actor model.Actor, in PlaceOrderInput) (*model.Order, error) {
	in.Buyer = model.Buyer{
		Name:    strings.TrimSpace(in.Buyer.Name),
		Phone:   strings.TrimSpace(in.Buyer.Phone),
		Address: strings.TrimSpace(in.Buyer.Address),
		Pincode: strings.TrimSpace(in.Buyer.Pincode),
	}
	if err := validation.Buyer(in.Buyer); err != nil {
		return nil, err
	}
	if len(in.Photos) > validation.MaxOrderPhotos {
		return nil, apperr.Invalid("photos", fmt.Sprintf("at most %d photos per order", validation.MaxOrderPhotos))
	}
	if len(in.Photos) > 0 && s.store == nil {
		return nil, errNoObjectStore
	}

	var modelName string
	if in.ModelID != "" {
		m, err := s.repo.GetModel(ctx, in.ModelID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Invalid("modelId", "unknown catalog model")
			}
			return nil, err
		}
		modelName = m.Name
	}

	id, err := s.idempotent(ctx, "order", actor.ID, in.IdempotencyKey, func(ctx context.Context) (string, error) {
		o, err := s.createOrder(ctx, actor, in, modelName)
		if err != nil {
			return "", err
		}
		return o.ID, nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetOrder(ctx, id)
}

func (s *Service) createOrder(ctx context.Context, actor model.Actor, in PlaceOrderInput, modelName string) (*model.Order, error) {
	p, err := s.repo.GetPhotographer(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	alloc, err := s.alloc.OrderID(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	var uploaded []string
	urls := make([]string, 0, len(in.Photos))
	for i, photo := range in.Photos {
		key := photoKey(alloc.ID, i, photo.Name)
		url, err := s.store.Upload(ctx, key, photo.ContentType, photo.Data)
		if err != nil {
			s.discardUploads(ctx, uploaded, "upload order "+alloc.ID)
			return nil, fmt.Errorf("upload photo %d: %w", i+1, err)
		}
		uploaded = append(uploaded, key)
		urls = append(urls, url)
	}

	now := s.now()
	o := &model.Order{
		ID:               uuid.NewString(),
		OrderID:          alloc.ID,
		PhotographerID:   p.ID,
		PhotographerCode: p.Code,
		PhotographerName: p.DisplayName,
		Buyer:            in.Buyer,
		ModelID:          in.ModelID,
		ModelName:        modelName,
		Remarks:          strings.TrimSpace(in.Remarks),
		PhotoURLs:        urls,
		Status:           model.OrderStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		s.discardUploads(ctx, uploaded, "insert order "+alloc.ID)
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order placed",
		zap.String("order_id", o.OrderID),
		zap.String("photographer_id", p.ID),
		zap.Int("photos", len(urls)),
	)
	return o, nil
}

func photoKey(orderID string, i int, name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("orders/%s/%d%s", orderID, i, ext)
}

// ListOwnOrders возвращает заказы вызывающего, новые первыми.
func (s *Service) ListOwnOrders(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	return s.repo.ListOrdersByPhotographer(ctx, actor.ID)
}

// AdminListOrders возвращает все заказы, при необходимости отфильтрованные по статусу.
func (s *Service) AdminListOrders(ctx context.Context, actor model.Actor, status model.OrderStatus) ([]model.Order, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Invalid("status", fmt.Sprintf("unknown order status %q", status))
	}
	return s.repo.ListOrders(ctx, status)
}

// SetOrderStatus меняет статус заказа от имени администратора.
func (s *Service) SetOrderStatus(ctx context.Context, actor model.Actor, id string, status model.OrderStatus, comments *string) (*model.Order, workflow.Transition, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, workflow.Transition{}, err
	}

	var tr workflow.Transition
	o, err := s.repo.UpdateOrder(ctx, id, func(o *model.Order) error {
		var err error
		tr, err = s.orders.SetStatus(o, status, comments, s.now())
		return err
	})
	if err != nil {
		return nil, workflow.Transition{}, err
	}

	s.metrics.OrderTransition(string(tr.From), string(tr.To))
	s.logger.Info("order status changed",
		zap.String("order_id", o.OrderID),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("delta", tr.Delta.String()),
		zap.String("admin_id", actor.ID),
	)
	return o, tr, nil
}
