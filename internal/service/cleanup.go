package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// orphanBatch ограничивает число объектов, обрабатываемых за один проход очистки.
const orphanBatch = 50

// discardUploads удаляет загруженные объекты после неудачной операции.
// Объекты, которые удалить не удалось, записываются для фоновой очистки.
func (s *Service) discardUploads(ctx context.Context, keys []string, reason string) {
	if len(keys) == 0 || s.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	var failed []string
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete upload", zap.String("key", key), zap.Error(err))
			failed = append(failed, key)
		}
	}
	if len(failed) == 0 {
		return
	}

	if err := s.repo.RecordOrphanUploads(ctx, failed, reason); err != nil {
		s.logger.Error("failed to record orphan uploads",
			zap.Strings("keys", failed),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return
	}
	s.metrics.OrphanCleanup("recorded")
}

// RunOrphanSweeper периодически повторяет удаление объектов из очереди очистки. Блокируется до отмены ctx.
func (s *Service) RunOrphanSweeper(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.OrphanSweepInterval)
	defer ticker.Stop()

	s.logger.Info("orphan sweeper started", zap.Duration("interval", s.opts.OrphanSweepInterval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("orphan sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOrphans(ctx)
		}
	}
}

// SweepOrphans выполняет один проход очистки.
func (s *Service) SweepOrphans(ctx context.Context) {
	if s.store == nil {
		return
	}

	orphans, err := s.repo.ListOrphanUploads(ctx, orphanBatch)
	if err != nil {
		s.logger.Error("failed to list orphan uploads", zap.Error(err))
		return
	}

	for _, o := range orphans {
		if ctx.Err() != nil {
			return
		}

		if err := s.store.Delete(ctx, o.Key); err != nil {
			s.metrics.OrphanCleanup("failed")
			s.logger.Warn("orphan delete failed",
				zap.String("key", o.Key),
				zap.Int("attempts", o.Attempts+1),
				zap.Error(err),
			)
			if err := s.repo.MarkOrphanAttempt(ctx, o.ID); err != nil {
				s.logger.Error("failed to mark orphan attempt", zap.Int64("id", o.ID), zap.Error(err))
			}
			continue
		}

		if err := s.repo.DeleteOrphanUpload(ctx, o.ID); err != nil {
			s.logger.Error("failed to drop orphan record", zap.Int64("id", o.ID), zap.Error(err))
			continue
		}
		s.metrics.OrphanCleanup("deleted")
	}
}
