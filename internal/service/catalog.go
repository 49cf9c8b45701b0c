package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/model"
)

// ListModels возвращает каталог моделей.
func (s *Service) ListModels(ctx context.Context) ([]model.CatalogModel, error) {
	return s.repo.ListModels(ctx)
}

// CreateModelInput содержит данные новой модели каталога.
type CreateModelInput struct {
	Name        string
	Description string
	Image       *Photo
}

// CreateModel добавляет модель в каталог и загружает её изображение.
func (s *Service) CreateModel(ctx context.Context, actor model.Actor, in CreateModelInput) (*model.CatalogModel, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if in.Image != nil && s.store == nil {
		return nil, errNoObjectStore
	}

	m := &model.CatalogModel{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.now(),
	}

	var key string
	if in.Image != nil {
		ext := strings.ToLower(path.Ext(in.Image.Name))
		if ext == "" {
			ext = ".jpg"
		}
		key = "models/" + m.ID + ext

		url, err := s.store.Upload(ctx, key, in.Image.ContentType, in.Image.Data)
		if err != nil {
			return nil, fmt.Errorf("upload model image: %w", err)
		}
		m.ImageURL = url
	}

	if err := s.repo.CreateModel(ctx, m); err != nil {
		if key != "" {
			s.discardUploads(ctx, []string{key}, "insert model "+m.ID)
		}
		return nil, fmt.Errorf("create model: %w", err)
	}

	s.logger.Info("catalog model created", zap.String("model_id", m.ID), zap.String("name", m.Name))
	return m, nil
}

// DeleteModel удаляет модель каталога и её изображение.
// Ошибка удаления изображения не мешает удалить документ: объект уходит в очередь очистки.
func (s *Service) DeleteModel(ctx context.Context, actor model.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	m, err := s.repo.GetModel(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteModel(ctx, id); err != nil {
		return err
	}

	if m.ImageURL != "" && s.store != nil {
		if key, ok := s.store.KeyFromURL(m.ImageURL); ok {
			s.discardUploads(ctx, []string{key}, "delete model "+m.ID)
		}
	}

	s.logger.Info("catalog model deleted", zap.String("model_id", id))
	return nil
}
