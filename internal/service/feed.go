package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/printhub/internal/model"
)

const (
	feedBackoff    = 200 * time.Millisecond
	feedMaxBackoff = 10 * time.Second
)

var errFeedClosed = errors.New("change feed closed")

// Hub рассылает уведомления об изменениях подписчикам конкретного фотографа.
// Буфер канала равен одному: пока подписчик занят, повторные уведомления склеиваются.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewHub создаёт пустой Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe подписывает на изменения фотографа. Вызов cancel отписывает.
func (h *Hub) Subscribe(photographerID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	set, ok := h.subs[photographerID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.subs[photographerID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[photographerID], ch)
			if len(h.subs[photographerID]) == 0 {
				delete(h.subs, photographerID)
			}
		})
	}
}

// Publish уведомляет подписчиков фотографа. Никогда не блокируется.
func (h *Hub) Publish(photographerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[photographerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers возвращает число подписчиков фотографа.
func (h *Hub) Subscribers(photographerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[photographerID])
}

// Hub возвращает рассыльщик уведомлений сервиса.
func (s *Service) Hub() *Hub {
	return s.hub
}

// WatchEarnings вызывает fn с текущим отчётом и затем после каждого изменения данных фотографа.
// Блокируется до отмены ctx или ошибки fn.
func (s *Service) WatchEarnings(ctx context.Context, actor model.Actor, photographerID string, fn func(*Earnings) error) error {
	if err := requireOwnerOrAdmin(actor, photographerID); err != nil {
		return err
	}

	updates, cancel := s.hub.Subscribe(photographerID)
	defer cancel()

	e, err := s.earnings(ctx, photographerID)
	if err != nil {
		return err
	}
	if err := fn(e); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-updates:
			e, err := s.earnings(ctx, photographerID)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if err := fn(e); err != nil {
				return err
			}
		}
	}
}

// RunChangeFeed слушает изменения хранилища и передаёт их в Hub.
// При обрыве соединения переподключается с экспоненциальной задержкой. Блокируется до отмены ctx.
func (s *Service) RunChangeFeed(ctx context.Context) error {
	backoff := retry.WithCappedDuration(feedMaxBackoff, retry.NewExponential(feedBackoff))

	s.logger.Info("change feed started")
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.repo.ListenChanges(ctx, s.hub.Publish)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errFeedClosed
		}
		s.logger.Warn("change feed interrupted, reconnecting", zap.Error(err))
		return retry.RetryableError(err)
	})
	if ctx.Err() != nil {
		s.logger.Info("change feed stopped")
		return nil
	}
	return err
}
