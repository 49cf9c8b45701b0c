// Package idempotency хранит результаты запросов с заголовком Idempotency-Key в Redis.
//
// Ключ проходит два состояния: короткая блокировка на время выполнения и
// долгоживущий результат (идентификатор созданной сущности). Повтор с тем же
// ключом возвращает сохранённый результат, параллельный повтор получает ErrInProgress.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/printhub/internal/apperr"
)

// Config задаёт время жизни ключей.
type Config struct {
	LockTTL   time.Duration
	ResultTTL time.Duration
	Prefix    string
}

// DefaultConfig возвращает настройки по умолчанию.
func DefaultConfig() Config {
	return Config{
		LockTTL:   30 * time.Second,
		ResultTTL: 24 * time.Hour,
		Prefix:    "printhub:idem:",
	}
}

// Store выполняет операции не более одного раза на ключ. Nil-значение пропускает вызов напрямую.
type Store struct {
	client redis.UniversalClient
	cfg    Config
	logger *zap.Logger
}

// NewStore создаёт хранилище ключей идемпотентности.
func NewStore(client redis.UniversalClient, cfg Config, logger *zap.Logger) *Store {
	def := DefaultConfig()
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = def.ResultTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, cfg: cfg, logger: logger}
}

func (s *Store) lockKey(scope, key string) string {
	return s.cfg.Prefix + "lock:" + scope + ":" + key
}

func (s *Store) resultKey(scope, key string) string {
	return s.cfg.Prefix + "result:" + scope + ":" + key
}

// Do выполняет fn один раз для пары (scope, key) и возвращает её результат.
// replayed равен true, если результат взят из сохранённого ответа.
// Пустой key отключает идемпотентность.
func (s *Store) Do(ctx context.Context, scope, key string, fn func(ctx context.Context) (string, error)) (result string, replayed bool, err error) {
	if s == nil || s.client == nil || key == "" {
		result, err = fn(ctx)
		return result, false, err
	}

	if res, ok, err := s.lookup(ctx, scope, key); err != nil || ok {
		return res, ok, err
	}

	lock := s.lockKey(scope, key)
	acquired, err := s.client.SetNX(ctx, lock, time.Now().UnixNano(), s.cfg.LockTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire idempotency lock: %w", err)
	}
	if !acquired {
		// Параллельный запрос мог завершиться между GET и SETNX.
		if res, ok, err := s.lookup(ctx, scope, key); err != nil || ok {
			return res, ok, err
		}
		return "", false, fmt.Errorf("%w: %s", apperr.ErrInProgress, key)
	}

	// Освобождение не должно зависеть от отмены запроса.
	cleanupCtx := context.WithoutCancel(ctx)
	defer func() {
		if delErr := s.client.Del(cleanupCtx, lock).Err(); delErr != nil {
			s.logger.Warn("failed to release idempotency lock", zap.String("scope", scope), zap.String("key", key), zap.Error(delErr))
		}
	}()

	result, err = fn(ctx)
	if err != nil {
		return "", false, err
	}

	if setErr := s.client.Set(cleanupCtx, s.resultKey(scope, key), result, s.cfg.ResultTTL).Err(); setErr != nil {
		s.logger.Warn("failed to store idempotency result", zap.String("scope", scope), zap.String("key", key), zap.Error(setErr))
	}

	return result, false, nil
}

func (s *Store) lookup(ctx context.Context, scope, key string) (string, bool, error) {
	res, err := s.client.Get(ctx, s.resultKey(scope, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read idempotency result: %w", err)
	}
	return res, true, nil
}
