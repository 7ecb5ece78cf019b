package dummydb

import (
	"context"
	"sort"

	"github.com/kohlab/pyeongga/core/evaluation"
)

// NotificationRepository is an in-memory evaluation.NotificationRepository
// for tests. FailCreate, when set, short-circuits CreateNotification.
type NotificationRepository struct {
	db *notificationTable

	FailCreate func(n evaluation.Notification) error
}

var _ evaluation.NotificationRepository = (*NotificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db.notification}
}

func (repo *NotificationRepository) CreateNotification(_ context.Context, n evaluation.Notification) error {
	if repo.FailCreate != nil {
		if err := repo.FailCreate(n); err != nil {
			return err
		}
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.IdempotencyKey == n.IdempotencyKey {
			return evaluation.ErrDuplicateNotification
		}
	}
	stored := n
	repo.db.table[n.ID] = &stored
	return nil
}

func (repo *NotificationRepository) ListNotifications(_ context.Context, recipientID string) ([]evaluation.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var notifs []evaluation.Notification
	for _, n := range repo.db.table {
		if n.RecipientID == recipientID {
			notifs = append(notifs, *n)
		}
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	return notifs, nil
}

func (repo *NotificationRepository) MarkNotificationRead(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.table[id]
	if !ok {
		return evaluation.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (repo *NotificationRepository) DeleteNotification(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return evaluation.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
