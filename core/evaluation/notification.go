package evaluation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kohlab/pyeongga/core"
)

var ErrDuplicateNotification = errors.New("a notification with this idempotency key already exists")

type Notification struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Priority       string    `json:"priority"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	RecipientID    string    `json:"recipient_id"`
	EvaluationID   int       `json:"evaluation_id"`
	TaskKey        string    `json:"task_key"`
	IdempotencyKey string    `json:"-"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"` // UTC
}

const (
	notifTypeTaskUpdated = "evaluation.task_updated"

	priorityNormal = "normal"
	priorityHigh   = "high"
)

type NotificationRepository interface {
	// CreateNotification returns ErrDuplicateNotification when a row with the
	// same idempotency key already exists.
	CreateNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, recipientID string) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	DeleteNotification(ctx context.Context, id string) error
}

// Dispatcher turns change records into at-most-one notification per task per
// save, addressed to the evaluatee. An email copy is sent best-effort.
type Dispatcher struct {
	repo   NotificationRepository
	mail   core.EmailService // may be nil
	logger core.Logger
}

func NewDispatcher(repo NotificationRepository, mailSvc core.EmailService, logger core.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, mail: mailSvc, logger: logger}
}

// Dispatch creates one notification per non-empty change record. Non-evaluator
// actors produce nothing. Suppression of duplicates is a contract property:
// the idempotency key is derived from (task key, changed fields, save time)
// and enforced by the repository, not by a time window.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	changes []ChangeRecord,
	actor Actor,
	ev Evaluation,
	savedAt time.Time,
) (int, error) {
	if !actor.IsEvaluator() {
		return 0, nil
	}

	sent := 0
	var summaries []string
	for _, rec := range changes {
		if rec.Empty() {
			continue
		}
		n := Notification{
			ID:             uuid.New().String(),
			Type:           notifTypeTaskUpdated,
			Title:          fmt.Sprintf("%q updated", rec.TaskTitle),
			Message:        changeMessage(rec),
			Priority:       notifPriority(rec),
			SenderID:       actor.ID,
			SenderName:     actor.Name,
			RecipientID:    ev.EvaluateeID,
			EvaluationID:   ev.ID,
			TaskKey:        rec.TaskKey,
			IdempotencyKey: IdempotencyKey(rec, savedAt),
			CreatedAt:      savedAt,
		}
		if err := d.repo.CreateNotification(ctx, n); err != nil {
			if errors.Is(err, ErrDuplicateNotification) {
				continue // already notified for this (task, fields, save)
			}
			return sent, err
		}
		sent++
		summaries = append(summaries, n.Message)
	}

	if sent > 0 {
		d.sendEmailCopy(actor, ev, summaries)
	}
	return sent, nil
}

// changeMessage merges all field changes of one task into a single message
// body, in deterministic field order.
func changeMessage(rec ChangeRecord) string {
	fields := make([]string, 0, len(rec.Changed))
	for _, f := range rec.Changed {
		fields = append(fields, string(f))
	}
	return fmt.Sprintf("Task %q: %s changed", rec.TaskTitle, strings.Join(fields, ", "))
}

func notifPriority(rec ChangeRecord) string {
	if rec.has(FieldWeight) || rec.has(FieldScore) {
		return priorityHigh
	}
	return priorityNormal
}

// IdempotencyKey derives the duplicate-suppression key for one change record
// within one save.
func IdempotencyKey(rec ChangeRecord, savedAt time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|", rec.TaskKey)
	for _, f := range rec.Changed {
		fmt.Fprintf(h, "%s,", f)
	}
	fmt.Fprintf(h, "|%d", savedAt.UTC().Unix())
	return hex.EncodeToString(h.Sum(nil))
}

func (d *Dispatcher) sendEmailCopy(actor Actor, ev Evaluation, summaries []string) {
	if d.mail == nil || ev.EvaluateeEmail == "" {
		return
	}
	d.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: ev.EvaluateeName, Address: ev.EvaluateeEmail}},
		Subject:      "Your evaluation was updated",
		TemplateName: "task-updated",
		TemplateData: struct {
			EvaluatorName string
			Changes       []string
		}{EvaluatorName: actor.Name, Changes: summaries},
	})
}
