// Package allocator выдаёт последовательные идентификаторы фотографов и заказов.
//
// Уникальность держится целиком на атомарном инкременте счётчика в хранилище:
// CounterStore обязан выполнять чтение-изменение-запись одной операцией.
// Сам аллокатор ничего не сериализует, он только повторяет попытки при конфликтах.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/metrics"
)

const (
	kindPhotographer = "photographer_id"
	kindOrder        = "order_id"

	fallbackPrefix = "PH"
	prefixLen      = 4
)

// CounterStore описывает атомарные счётчики хранилища.
type CounterStore interface {
	// NextPhotographerSeq увеличивает глобальный счётчик фотографов и возвращает новое значение.
	NextPhotographerSeq(ctx context.Context) (int64, error)
	// NextOrderSeq увеличивает счётчик заказов фотографа и возвращает его код и новое значение.
	NextOrderSeq(ctx context.Context, photographerID string) (string, int64, error)
}

// Config задаёт политику повторов.
type Config struct {
	MaxRetries uint64
	Backoff    time.Duration
}

// DefaultConfig возвращает политику по умолчанию.
func DefaultConfig() Config {
	return Config{MaxRetries: 5, Backoff: 20 * time.Millisecond}
}

// OrderID описывает выделенный идентификатор заказа.
type OrderID struct {
	ID   string
	Code string
	Seq  int64
}

// Allocator выдаёт идентификаторы через CounterStore.
type Allocator struct {
	store   CounterStore
	cfg     Config
	metrics *metrics.Metrics
}

// New создаёт аллокатор.
func New(store CounterStore, cfg Config, m *metrics.Metrics) *Allocator {
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultConfig().Backoff
	}
	return &Allocator{store: store, cfg: cfg, metrics: m}
}

// PhotographerID выделяет код нового фотографа по его имени.
func (a *Allocator) PhotographerID(ctx context.Context, name string) (string, error) {
	var count int64
	err := a.do(ctx, kindPhotographer, func(ctx context.Context) error {
		var err error
		count, err = a.store.NextPhotographerSeq(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	return FormatPhotographerID(name, count), nil
}

// OrderID выделяет следующий номер заказа фотографа.
func (a *Allocator) OrderID(ctx context.Context, photographerID string) (OrderID, error) {
	var (
		code string
		seq  int64
	)
	err := a.do(ctx, kindOrder, func(ctx context.Context) error {
		var err error
		code, seq, err = a.store.NextOrderSeq(ctx, photographerID)
		return err
	})
	if err != nil {
		return OrderID{}, err
	}
	return OrderID{ID: FormatOrderID(code, seq), Code: code, Seq: seq}, nil
}

func (a *Allocator) do(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(a.cfg.MaxRetries, retry.NewExponential(a.cfg.Backoff))

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			a.metrics.AllocationRetry(kind)
		}

		err := fn(ctx)
		if err != nil && apperr.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case err == nil:
		a.metrics.Allocation(kind, "ok")
		return nil
	case errors.Is(err, apperr.ErrNotFound):
		a.metrics.Allocation(kind, "not_found")
		return err
	default:
		a.metrics.Allocation(kind, "failed")
		return &apperr.AllocationError{Kind: strings.ReplaceAll(kind, "_", " "), Attempts: attempts, Err: err}
	}
}

// FormatPhotographerID строит код из первых четырёх букв и цифр имени и номера: "John Smith", 7 -> "JOHN007".
// Остальные символы отбрасываются; если букв и цифр нет, используется префикс PH.
func FormatPhotographerID(name string, count int64) string {
	prefix := make([]rune, 0, prefixLen)
	for _, r := range strings.ToUpper(name) {
		if len(prefix) == prefixLen {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			prefix = append(prefix, r)
		}
	}
	if len(prefix) == 0 {
		prefix = []rune(fallbackPrefix)
	}
	return fmt.Sprintf("%s%03d", string(prefix), count)
}

// FormatOrderID строит номер заказа: "JOHN007", 12 -> "JOHN007_012".
func FormatOrderID(code string, seq int64) string {
	return fmt.Sprintf("%s_%03d", code, seq)
}
