// Package jobs runs background work on asynq: acknowledgement reminders and
// periodic housekeeping.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAckReminder nudges recipients who have not acknowledged a
	// distributed document.
	TaskAckReminder = "documents:ack_reminder"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "housekeeping:idempotency_cleanup"
)

// AckReminderPayload identifies the document whose recipients get reminded.
type AckReminderPayload struct {
	DocumentID string `json:"document_id"`
}

// NewAckReminderTask constructs an asynq task for an acknowledgement reminder.
func NewAckReminderTask(documentID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(AckReminderPayload{DocumentID: documentID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAckReminder, data), nil
}

// AckReminderHandler processes TaskAckReminder tasks.
type AckReminderHandler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAckReminderHandler constructs the handler.
func NewAckReminderHandler(pool *pgxpool.Pool, logger *slog.Logger) *AckReminderHandler {
	return &AckReminderHandler{pool: pool, logger: logger}
}

// ProcessTask looks up outstanding acknowledgements and records a reminder
// notification per laggard recipient. Documents that left DISTRIBUTED in the
// meantime are skipped silently.
func (h *AckReminderHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload AckReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	documentID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return asynq.SkipRetry
	}

	rows, err := h.pool.Query(ctx, `
		SELECT dd.recipient_id, u.email, d.code, d.title
		FROM document_distributions dd
		JOIN documents d ON d.id = dd.document_id
		JOIN users u ON u.id = dd.recipient_id
		WHERE dd.document_id = $1
		  AND dd.acknowledged_at IS NULL
		  AND d.status = 'DISTRIBUTED'`, documentID)
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var recipientID int64
		var email, code, title string
		if err := rows.Scan(&recipientID, &email, &code, &title); err != nil {
			return err
		}
		// Notification delivery is a log line for now; the mail channel
		// hangs off the same loop once SMTP is wired.
		h.logger.Info("acknowledgement reminder",
			slog.String("document_code", code),
			slog.Int64("recipient_id", recipientID),
			slog.String("email", email),
		)
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	h.logger.Info("ack reminder processed",
		slog.String("document_id", documentID.String()),
		slog.Int("outstanding", count),
	)
	return nil
}

// IdempotencyCleaner prunes old idempotency keys on a cron schedule.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupTask constructs the housekeeping task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// HandleIdempotencyCleanup returns an asynq handler bound to the store.
func HandleIdempotencyCleanup(cleaner IdempotencyCleaner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := cleaner.Cleanup(ctx, 7*24*time.Hour); err != nil {
			logger.Warn("idempotency cleanup", slog.Any("error", err))
			return err
		}
		return nil
	}
}
