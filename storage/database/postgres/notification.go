package pgrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kohlab/pyeongga/core"
	"github.com/kohlab/pyeongga/core/evaluation"
)

// pq error code for unique_violation.
const pqUniqueViolation = "23505"

type notificationRepository struct {
	db *sqlx.DB
}

var _ evaluation.NotificationRepository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

type notificationRow struct {
	ID             string    `db:"id"`
	Type           string    `db:"type"`
	Title          string    `db:"title"`
	Message        string    `db:"message"`
	Priority       string    `db:"priority"`
	SenderID       string    `db:"sender_id"`
	SenderName     string    `db:"sender_name"`
	RecipientID    string    `db:"recipient_id"`
	EvaluationID   int       `db:"evaluation_id"`
	TaskKey        string    `db:"task_key"`
	IdempotencyKey string    `db:"idempotency_key"`
	IsRead         bool      `db:"is_read"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r notificationRow) unrow() evaluation.Notification {
	return evaluation.Notification{
		ID:             r.ID,
		Type:           r.Type,
		Title:          r.Title,
		Message:        r.Message,
		Priority:       r.Priority,
		SenderID:       r.SenderID,
		SenderName:     r.SenderName,
		RecipientID:    r.RecipientID,
		EvaluationID:   r.EvaluationID,
		TaskKey:        r.TaskKey,
		IdempotencyKey: r.IdempotencyKey,
		IsRead:         r.IsRead,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n evaluation.Notification) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO notification (id, type, title, message, priority, sender_id, sender_name,
		                          recipient_id, evaluation_id, task_key, idempotency_key, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		n.ID, n.Type, n.Title, n.Message, n.Priority, n.SenderID, n.SenderName,
		n.RecipientID, n.EvaluationID, n.TaskKey, n.IdempotencyKey, n.IsRead, n.CreatedAt.UTC(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return evaluation.ErrDuplicateNotification
		}
		return errors.Wrap(err, "creating notification")
	}
	return nil
}

// notifications list newest first
var notifOrdering = core.DBOrdering{Field: "created_at", Ascending: false}

func (repo *notificationRepository) ListNotifications(ctx context.Context, recipientID string) ([]evaluation.Notification, error) {
	var rows []notificationRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT id, type, title, message, priority, sender_id, sender_name,
		       recipient_id, evaluation_id, task_key, idempotency_key, is_read, created_at
		FROM notification
		WHERE recipient_id = $1
		ORDER BY `+notifOrdering.String(), recipientID)
	if err != nil {
		return nil, errors.Wrap(err, "listing notifications")
	}
	notifs := make([]evaluation.Notification, len(rows))
	for i, r := range rows {
		notifs[i] = r.unrow()
	}
	return notifs, nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE notification SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return evaluation.ErrNotFound
	}
	return nil
}

func (repo *notificationRepository) DeleteNotification(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM notification WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return evaluation.ErrNotFound
	}
	return nil
}
