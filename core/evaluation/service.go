package evaluation

import (
	"context"
	goerrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kohlab/pyeongga/core"
)

var (
	// errors
	ErrNotFound           = goerrors.New("evaluation not found")
	ErrSaveInFlight       = goerrors.New("a save is already in progress for this evaluatee")
	ErrPartialPersistence = goerrors.New("some changes could not be saved; please retry")
)

type (
	// Repository is the remote store. It is authoritative; "not found" is a
	// distinguishable, non-fatal result (ErrNotFound).
	Repository interface {
		GetEvaluationByEvaluatee(ctx context.Context, evaluateeID string) (Evaluation, error)
		CreateEvaluation(ctx context.Context, ev Evaluation) (Evaluation, error)
		CreateTask(ctx context.Context, evaluationID int, t Task) (Task, error)
		UpdateTask(ctx context.Context, evaluationID int, t Task) (Task, error)
		// DeleteTask soft-deletes; the row no longer appears in future reads
		// or diffs.
		DeleteTask(ctx context.Context, evaluationID, remoteID int) error
		// AppendFeedback appends to the task's history; prior entries are
		// never overwritten.
		AppendFeedback(ctx context.Context, evaluationID int, taskKey string, entry FeedbackEntry) (FeedbackEntry, error)
		UpdateEvaluationStatus(ctx context.Context, evaluationID int, status Status, lastModified time.Time) error
	}

	// Cache is the local snapshot mirror, used as a fast-path read and
	// offline fallback; never authoritative.
	Cache interface {
		GetEvaluation(ctx context.Context, evaluateeID string) (Evaluation, bool, error)
		SetEvaluation(ctx context.Context, ev Evaluation) error
	}

	Service struct {
		repo       Repository
		notifRepo  NotificationRepository
		cache      Cache // may be nil
		classifier *DuplicateClassifier
		dispatcher *Dispatcher
		rules      ContentRules
		logger     core.Logger
	}
)

func NewService(
	repo Repository,
	notifRepo NotificationRepository,
	cache Cache,
	classifier *DuplicateClassifier,
	dispatcher *Dispatcher,
	rules ContentRules,
	logger core.Logger,
) *Service {
	return &Service{
		repo:       repo,
		notifRepo:  notifRepo,
		cache:      cache,
		classifier: classifier,
		dispatcher: dispatcher,
		rules:      rules,
		logger:     logger,
	}
}

// Warning kinds folded into the user-confirmation step.
const (
	WarnContent   = "content"
	WarnDuplicate = "duplicate"
)

// SaveWarning is an advisory finding on one task's feedback. It never blocks
// the save by itself; the user is shown all warnings together and may abort
// or proceed.
type SaveWarning struct {
	TaskKey   string   `json:"task_key"`
	TaskTitle string   `json:"task_title"`
	Kind      string   `json:"kind"`
	Messages  []string `json:"messages"`
}

type (
	SaveRequest struct {
		Draft Evaluation
		Actor Actor
		// Confirm is called with all collected warnings; returning false
		// aborts the save with no side effects. A nil Confirm declines.
		Confirm func(warnings []SaveWarning) bool
	}

	SaveResult struct {
		Saved    bool
		Warnings []SaveWarning
		Changes  []ChangeRecord
		// Evaluation is the post-save reload from the remote store; it
		// becomes the new draft and diff baseline.
		Evaluation Evaluation
	}
)

// Save runs one save invocation as a single logical transaction:
// weight check → content check → duplicate check → user confirm → diff →
// persist → notify → cache sync → reload.
//
// There is no rollback: on failure during persistence, already-written
// records stay and the next save's diff reconciles against whatever landed.
func (svc *Service) Save(ctx context.Context, req SaveRequest) (SaveResult, error) {
	res := SaveResult{}
	draft := req.Draft

	// WeightCheck: fatal, nothing later runs
	weights := make([]int, len(draft.Tasks))
	for i, t := range draft.Tasks {
		weights[i] = t.Weight
	}
	if err := ValidateWeights(weights); err != nil {
		return res, err
	}

	// fetch the diff baseline from the remote store now, not from an earlier
	// in-memory copy, to avoid diffing against stale data
	snapshot, err := svc.repo.GetEvaluationByEvaluatee(ctx, draft.EvaluateeID)
	snapshotFound := true
	if err != nil {
		if !goerrors.Is(err, ErrNotFound) {
			return res, errors.Wrap(err, "fetching evaluation snapshot")
		}
		snapshotFound = false
	}

	// settle task codes before anything keys off them: warnings, diffs,
	// feedback history and notification idempotency all use the code as the
	// fallback task key
	resolveTaskCodes(&draft, snapshot, snapshotFound)

	// ContentCheck: violations collect into warnings, they do not block yet
	res.Warnings = append(res.Warnings, svc.contentWarnings(draft)...)

	// DuplicateCheck: changed feedbacks only, against the author's own
	// prior texts
	res.Warnings = append(res.Warnings, svc.duplicateWarnings(ctx, draft, snapshot, snapshotFound, req.Actor)...)

	// UserConfirm: entered only when there is something to confirm
	if len(res.Warnings) > 0 {
		if req.Confirm == nil || !req.Confirm(res.Warnings) {
			return res, nil // aborted; no side effects
		}
	}

	// Diff
	res.Changes = svc.diffTasks(draft, snapshot, snapshotFound)

	// Persist
	savedAt := time.Now().UTC()
	evID, persistErr := svc.persist(ctx, &draft, snapshot, snapshotFound, res.Changes, req.Actor, savedAt)
	if persistErr != nil {
		return res, persistErr
	}

	// Notify: only when the acting user is an evaluator
	draft.ID = evID
	if _, err := svc.dispatcher.Dispatch(ctx, res.Changes, req.Actor, draft, savedAt); err != nil {
		// the persisted data is already authoritative; a failed notification
		// must not fail the save
		svc.logger.Error("dispatching notifications", err)
	}

	// Reload: read-after-write; the reload becomes the new baseline
	reloaded, err := svc.repo.GetEvaluationByEvaluatee(ctx, draft.EvaluateeID)
	if err != nil {
		return res, errors.Wrap(err, "reloading evaluation after save")
	}
	res.Saved = true
	res.Evaluation = reloaded

	// CacheSync: best-effort mirror of the now-persisted evaluation
	if svc.cache != nil {
		if err := svc.cache.SetEvaluation(ctx, reloaded); err != nil {
			svc.logger.Warn("syncing evaluation cache", err)
		}
	}
	return res, nil
}

func (svc *Service) contentWarnings(draft Evaluation) []SaveWarning {
	var warnings []SaveWarning
	for _, t := range draft.Tasks {
		if strings.TrimSpace(t.Feedback) == "" {
			continue
		}
		if msgs := svc.rules.Validate(t.Feedback); len(msgs) > 0 {
			warnings = append(warnings, SaveWarning{
				TaskKey:   t.Ref.Key(),
				TaskTitle: t.Title,
				Kind:      WarnContent,
				Messages:  msgs,
			})
		}
	}
	return warnings
}

func (svc *Service) duplicateWarnings(
	ctx context.Context,
	draft, snapshot Evaluation,
	snapshotFound bool,
	actor Actor,
) []SaveWarning {
	if svc.classifier == nil {
		return nil
	}

	var priors []string
	if snapshotFound {
		priors = snapshot.PriorFeedbackBy(actor.ID)
	}
	if len(priors) == 0 {
		return nil
	}

	var cands []DuplicateCandidate
	for _, t := range draft.Tasks {
		cur := strings.TrimSpace(t.Feedback)
		if cur == "" {
			continue
		}
		prev := findSnapshotTask(snapshot, snapshotFound, t.Ref)
		if prev != nil && strings.TrimSpace(prev.Feedback) == cur {
			continue // unchanged feedback is not re-screened
		}
		priorTexts := priors
		if prev != nil {
			// reworking your own latest feedback on the same task is an
			// edit, not a duplicate of it
			if latest := prev.LatestFeedbackBy(actor.ID); latest != nil {
				priorTexts = dropFirst(priors, latest.Content)
			}
		}
		if len(priorTexts) == 0 {
			continue
		}
		cands = append(cands, DuplicateCandidate{
			TaskKey:    t.Ref.Key(),
			TaskTitle:  t.Title,
			Text:       cur,
			PriorTexts: priorTexts,
		})
	}
	if len(cands) == 0 {
		return nil
	}

	var warnings []SaveWarning
	for _, r := range svc.classifier.ClassifyAll(ctx, cands) {
		if r.IsDuplicate {
			warnings = append(warnings, SaveWarning{
				TaskKey:   r.TaskKey,
				TaskTitle: r.TaskTitle,
				Kind:      WarnDuplicate,
				Messages:  []string{r.Reason},
			})
		}
	}
	return warnings
}

// dropFirst removes one occurrence of s, leaving repeats in place.
func dropFirst(texts []string, s string) []string {
	out := make([]string, 0, len(texts))
	dropped := false
	for _, t := range texts {
		if !dropped && t == s {
			dropped = true
			continue
		}
		out = append(out, t)
	}
	return out
}

func (svc *Service) diffTasks(draft, snapshot Evaluation, snapshotFound bool) []ChangeRecord {
	records := make([]ChangeRecord, 0, len(draft.Tasks))
	for _, t := range draft.Tasks {
		records = append(records, Diff(t, findSnapshotTask(snapshot, snapshotFound, t.Ref)))
	}
	return records
}

// findSnapshotTask matches a draft task to its persisted snapshot row,
// keying off the remote row id when known and falling back to the task code.
func findSnapshotTask(snapshot Evaluation, snapshotFound bool, ref TaskRef) *Task {
	if !snapshotFound {
		return nil
	}
	for i := range snapshot.Tasks {
		st := &snapshot.Tasks[i]
		if ref.RemoteID != 0 && st.Ref.RemoteID == ref.RemoteID {
			return st
		}
		if ref.RemoteID == 0 && ref.Code != "" && st.Ref.Code == ref.Code {
			return st
		}
	}
	return nil
}

// resolveTaskCodes fills in every missing task code. A task referencing its
// persisted row by remote id inherits that row's code. An uncoded task with no
// remote id is matched to a leftover snapshot row by title before anything is
// created, so a client that resubmits tasks without refs reconciles instead of
// duplicating. Remaining tasks get sequential codes counted past every code
// either side has seen; a fresh code never collides with a live row.
func resolveTaskCodes(draft *Evaluation, snapshot Evaluation, snapshotFound bool) {
	for i := range draft.Tasks {
		t := &draft.Tasks[i]
		if t.Ref.RemoteID != 0 && t.Ref.Code == "" {
			if prev := findSnapshotTask(snapshot, snapshotFound, t.Ref); prev != nil {
				t.Ref.Code = prev.Ref.Code
			}
		}
	}

	claimed := make(map[string]bool, len(draft.Tasks))
	for _, t := range draft.Tasks {
		if t.Ref.Code != "" {
			claimed[t.Ref.Code] = true
		}
	}

	pool := Evaluation{Tasks: append([]Task(nil), draft.Tasks...)}
	if snapshotFound {
		pool.Tasks = append(pool.Tasks, snapshot.Tasks...)
	}

	for i := range draft.Tasks {
		t := &draft.Tasks[i]
		if t.Ref.RemoteID != 0 || t.Ref.Code != "" {
			continue
		}
		if snapshotFound {
			for j := range snapshot.Tasks {
				st := &snapshot.Tasks[j]
				if !claimed[st.Ref.Code] && strings.TrimSpace(st.Title) == strings.TrimSpace(t.Title) {
					t.Ref.Code = st.Ref.Code
					claimed[st.Ref.Code] = true
					break
				}
			}
		}
		if t.Ref.Code == "" {
			t.Ref.Code = pool.NextTaskCode()
			pool.Tasks = append(pool.Tasks, Task{Ref: TaskRef{Code: t.Ref.Code}})
			claimed[t.Ref.Code] = true
		}
	}
}

// persist writes all changed records. Failures are collected, not rolled
// back; if anything was written before a failure the save reports partial
// persistence and the next save's diff reconciles naturally.
func (svc *Service) persist(
	ctx context.Context,
	draft *Evaluation,
	snapshot Evaluation,
	snapshotFound bool,
	changes []ChangeRecord,
	actor Actor,
	savedAt time.Time,
) (evaluationID int, err error) {
	written := 0

	if !snapshotFound {
		created, cErr := svc.repo.CreateEvaluation(ctx, *draft)
		if cErr != nil {
			return 0, errors.Wrap(cErr, "creating evaluation")
		}
		written++
		draft.ID = created.ID
	} else {
		draft.ID = snapshot.ID
	}

	var errs []error
	fail := func(e error, msg string) { errs = append(errs, errors.Wrap(e, msg)) }

	for i := range draft.Tasks {
		t := &draft.Tasks[i]
		rec := changes[i]
		if rec.Empty() {
			continue
		}

		prev := findSnapshotTask(snapshot, snapshotFound, t.Ref)
		if prev == nil {
			created, cErr := svc.repo.CreateTask(ctx, draft.ID, *t)
			if cErr != nil {
				fail(cErr, fmt.Sprintf("creating task %s", t.Ref.Key()))
				continue
			}
			t.Ref.RemoteID = created.Ref.RemoteID
			written++
		} else {
			t.Ref.RemoteID = prev.Ref.RemoteID
			if _, uErr := svc.repo.UpdateTask(ctx, draft.ID, *t); uErr != nil {
				fail(uErr, fmt.Sprintf("updating task %s", t.Ref.Key()))
				continue
			}
			written++
		}

		if rec.HasNewFeedback && strings.TrimSpace(t.Feedback) != "" {
			entry := FeedbackEntry{
				Content:       strings.TrimSpace(t.Feedback),
				Date:          savedAt,
				EvaluatorID:   actor.ID,
				EvaluatorName: actor.Name,
			}
			if _, fErr := svc.repo.AppendFeedback(ctx, draft.ID, t.Ref.Key(), entry); fErr != nil {
				fail(fErr, fmt.Sprintf("appending feedback for task %s", t.Ref.Key()))
			} else {
				written++
			}
		}
	}

	// tasks removed from the draft are archived: gone from future diffs
	if snapshotFound {
		for _, st := range snapshot.Tasks {
			if draftHasTask(*draft, st.Ref) {
				continue
			}
			if dErr := svc.repo.DeleteTask(ctx, draft.ID, st.Ref.RemoteID); dErr != nil {
				fail(dErr, fmt.Sprintf("deleting task %s", st.Ref.Key()))
			} else {
				written++
			}
		}
	}

	// status: completed iff every task has a derived score
	status := StatusInProgress
	if draft.IsComplete() {
		status = StatusCompleted
	}
	if sErr := svc.repo.UpdateEvaluationStatus(ctx, draft.ID, status, savedAt); sErr != nil {
		fail(sErr, "updating evaluation status")
	} else {
		draft.Status = status
		written++
	}

	if len(errs) > 0 {
		for _, e := range errs {
			svc.logger.Error("persisting evaluation", e)
		}
		if written > 0 {
			return draft.ID, errors.Wrapf(ErrPartialPersistence, "%d of %d writes failed", len(errs), written+len(errs))
		}
		return draft.ID, errors.Wrap(errs[0], "saving evaluation")
	}
	return draft.ID, nil
}

// draftHasTask matches the same way findSnapshotTask does: remote id when the
// draft task carries one, code otherwise. A task referenced by code alone must
// never look removed.
func draftHasTask(draft Evaluation, ref TaskRef) bool {
	for _, t := range draft.Tasks {
		if t.Ref.RemoteID != 0 && t.Ref.RemoteID == ref.RemoteID {
			return true
		}
		if t.Ref.RemoteID == 0 && t.Ref.Code != "" && t.Ref.Code == ref.Code {
			return true
		}
	}
	return false
}

// Load reads the evaluation for an evaluatee, remote first. On a transient
// remote failure the local cache serves as an offline fallback.
func (svc *Service) Load(ctx context.Context, evaluateeID string) (Evaluation, error) {
	ev, err := svc.repo.GetEvaluationByEvaluatee(ctx, evaluateeID)
	if err == nil {
		if svc.cache != nil {
			if cErr := svc.cache.SetEvaluation(ctx, ev); cErr != nil {
				svc.logger.Warn("syncing evaluation cache", cErr)
			}
		}
		return ev, nil
	}
	if goerrors.Is(err, ErrNotFound) {
		return Evaluation{}, err
	}
	if svc.cache != nil {
		if cached, ok, cErr := svc.cache.GetEvaluation(ctx, evaluateeID); cErr == nil && ok {
			svc.logger.Warn("remote store unavailable; serving cached evaluation", err)
			return cached, nil
		}
	}
	return Evaluation{}, errors.Wrap(err, "loading evaluation")
}

// Notifications pass-throughs for the recipient.

func (svc *Service) Notifications(ctx context.Context, recipientID string) ([]Notification, error) {
	return svc.notifRepo.ListNotifications(ctx, recipientID)
}

func (svc *Service) MarkNotificationRead(ctx context.Context, id string) error {
	return svc.notifRepo.MarkNotificationRead(ctx, id)
}

func (svc *Service) DeleteNotification(ctx context.Context, id string) error {
	return svc.notifRepo.DeleteNotification(ctx, id)
}
