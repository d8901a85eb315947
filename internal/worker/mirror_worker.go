package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"suiviclient/internal/amqp"
	"suiviclient/internal/mirror"
	"suiviclient/internal/storage"
)

// MirrorWorker keeps the spreadsheet mirror in sync with the database.
// It reacts to queue messages and periodically rescans for rows the
// queue may have missed.
type MirrorWorker struct {
	storage   *storage.SQLiteRepository
	mirror    mirror.Mirror
	batchSize int
}

func NewMirrorWorker(storage *storage.SQLiteRepository, m mirror.Mirror, batchSize int) *MirrorWorker {
	return &MirrorWorker{
		storage:   storage,
		mirror:    m,
		batchSize: batchSize,
	}
}

// HandleMessage processes a single mirror message from the queue.
func (w *MirrorWorker) HandleMessage(ctx context.Context, msg *amqp.MirrorMessage) error {
	switch msg.Type {
	case amqp.MirrorTypeSync:
		return w.handleSync(ctx, msg.ID)
	case amqp.MirrorTypeDelete:
		return w.handleDelete(ctx, msg.ID)
	default:
		slog.WarnContext(ctx, "Unknown mirror message type, dropping",
			"type", msg.Type, "id", msg.ID)
		return nil
	}
}

func (w *MirrorWorker) handleSync(ctx context.Context, id int64) error {
	p, err := w.storage.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// The prestation was deleted before the message arrived, the
		// delete message will clean the sheet up.
		slog.WarnContext(ctx, "Prestation gone before mirroring, skipping", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get prestation from storage: %w", err)
	}

	return w.mirrorPrestation(ctx, id, func() error {
		return w.mirror.Append(ctx, p)
	})
}

func (w *MirrorWorker) handleDelete(ctx context.Context, id int64) error {
	if err := w.mirror.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove prestation row: %w", err)
	}

	slog.InfoContext(ctx, "Prestation removed from mirror", "id", id)
	return nil
}

// ProcessPending mirrors any prestations that are not marked synced yet.
// This is the backup mechanism for lost queue messages.
func (w *MirrorWorker) ProcessPending(ctx context.Context) error {
	return w.processPendingBatch(ctx, w.batchSize)
}

// StartupCheck runs a larger pending scan at worker startup to recover
// from downtime.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	return w.processPendingBatch(ctx, w.batchSize*5)
}

func (w *MirrorWorker) processPendingBatch(ctx context.Context, limit int) error {
	pending, err := w.storage.GetPendingMirror(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending prestations: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending prestations", "count", len(pending))

	successCount := 0
	errorCount := 0
	for _, row := range pending {
		p, err := w.storage.GetByID(ctx, row.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load pending prestation",
				"id", row.ID, "error", err)
			if markErr := w.storage.MarkMirrorError(ctx, row.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark mirror error", "id", row.ID, "error", markErr)
			}
			errorCount++
			continue
		}

		if err := w.mirrorPrestation(ctx, row.ID, func() error {
			return w.mirror.Append(ctx, p)
		}); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror pending prestation",
				"id", row.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Pending scan completed",
		"total", len(pending),
		"mirrored", successCount,
		"errors", errorCount)

	return nil
}

func (w *MirrorWorker) mirrorPrestation(ctx context.Context, id int64, appendRow func() error) error {
	if err := appendRow(); err != nil {
		if markErr := w.storage.MarkMirrorError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark mirror error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to mirror: %w", err)
	}

	if err := w.storage.MarkMirrored(ctx, id); err != nil {
		// The row is in the sheet, only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark as mirrored", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Prestation mirrored", "id", id)
	return nil
}
