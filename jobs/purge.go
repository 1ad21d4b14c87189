package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/daison12006013/docms/internal/auth"
	"github.com/daison12006013/docms/internal/files"
	"github.com/daison12006013/docms/internal/observability"
)

// NewShareLinkPurgeHandler processes TaskShareLinkPurge tasks.
func NewShareLinkPurgeHandler(svc *files.Service, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		removed, err := svc.PurgeExpiredShareLinks(ctx)
		if err != nil {
			metrics.ObserveJob(TaskShareLinkPurge, "error")
			logger.Error("share link purge failed", slog.Any("error", err))
			return err
		}
		metrics.ObserveJob(TaskShareLinkPurge, "ok")
		logger.Info("share link purge done", slog.Int64("removed", removed))
		return nil
	}
}

// NewTrashPurgeHandler processes TaskTrashPurge tasks. Nodes soft-deleted
// longer than the default retention are hard-deleted together with their
// stored bytes.
func NewTrashPurgeHandler(svc *files.Service, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		removed, err := svc.PurgeTrash(ctx, files.DefaultTrashRetention)
		if err != nil {
			metrics.ObserveJob(TaskTrashPurge, "error")
			logger.Error("trash purge failed", slog.Any("error", err))
			return err
		}
		metrics.ObserveJob(TaskTrashPurge, "ok")
		logger.Info("trash purge done", slog.Int64("removed", removed))
		return nil
	}
}

// NewSessionPurgeHandler processes TaskSessionPurge tasks.
func NewSessionPurgeHandler(svc *auth.Service, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		removed, err := svc.PurgeExpiredSessions(ctx)
		if err != nil {
			metrics.ObserveJob(TaskSessionPurge, "error")
			logger.Error("session purge failed", slog.Any("error", err))
			return err
		}
		metrics.ObserveJob(TaskSessionPurge, "ok")
		logger.Info("session purge done", slog.Int64("removed", removed))
		return nil
	}
}
