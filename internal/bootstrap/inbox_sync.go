package bootstrap

import (
	"context"

	"inbox_server/config"
	"inbox_server/core/domain"
	"inbox_server/pkg/logger"
)

// RunSync connects the mailbox and runs one ingest pass over the configured
// window.
func RunSync(ctx context.Context, cfg *config.Config) (domain.IngestResult, error) {
	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		return domain.IngestResult{}, err
	}
	defer cleanup()

	session, err := deps.MailService.Connect(ctx)
	if err != nil {
		return domain.IngestResult{}, err
	}

	result, err := deps.MailService.Run(ctx, cfg.SyncWindowDays)
	if err != nil {
		return result, err
	}

	logger.WithFields(map[string]any{
		"email":           session.EmailAddress,
		"listed":          result.Fetch.Listed,
		"fetch_failed":    result.Fetch.Failed,
		"classify_failed": result.ClassifyFailed,
		"inserted":        result.Sync.Inserted,
		"updated":         result.Sync.Updated,
		"skipped":         result.Sync.Skipped,
	}).WithDuration(result.Duration).Info("Sync completed")
	return result, nil
}
