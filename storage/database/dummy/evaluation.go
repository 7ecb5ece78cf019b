package dummydb

import (
	"context"
	"fmt"
	"time"

	"github.com/kohlab/pyeongga/core/evaluation"
)

var (
	evalPKCount int
	taskPKCount int
	fbPKCount   int
)

// EvaluationRepository is an in-memory evaluation.Repository for tests.
// The Fail* hooks, when set, run before the corresponding operation and
// short-circuit it when they return an error; used to exercise the
// partial-persistence path.
type EvaluationRepository struct {
	db *evaluationTable

	FailCreateTask func(t evaluation.Task) error
	FailUpdateTask func(t evaluation.Task) error
	FailDeleteTask func(remoteID int) error
}

var _ evaluation.Repository = (*EvaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *DB) *EvaluationRepository {
	return &EvaluationRepository{db: db.evaluation}
}

func clone(ev evaluation.Evaluation) evaluation.Evaluation {
	cp := ev
	cp.Tasks = make([]evaluation.Task, len(ev.Tasks))
	for i, t := range ev.Tasks {
		tc := t
		tc.FeedbackHistory = append([]evaluation.FeedbackEntry(nil), t.FeedbackHistory...)
		if t.Score != nil {
			score := *t.Score
			tc.Score = &score
		}
		cp.Tasks[i] = tc
	}
	return cp
}

func (repo *EvaluationRepository) GetEvaluationByEvaluatee(_ context.Context, evaluateeID string) (evaluation.Evaluation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ev := range repo.db.table {
		if ev.EvaluateeID == evaluateeID {
			return clone(*ev), nil
		}
	}
	return evaluation.Evaluation{}, evaluation.ErrNotFound
}

func (repo *EvaluationRepository) CreateEvaluation(_ context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	evalPKCount++
	ev.ID = evalPKCount
	ev.Tasks = nil
	stored := clone(ev)
	repo.db.table[ev.ID] = &stored
	return ev, nil
}

func (repo *EvaluationRepository) CreateTask(_ context.Context, evaluationID int, t evaluation.Task) (evaluation.Task, error) {
	if repo.FailCreateTask != nil {
		if err := repo.FailCreateTask(t); err != nil {
			return evaluation.Task{}, err
		}
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	ev, ok := repo.db.table[evaluationID]
	if !ok {
		return evaluation.Task{}, evaluation.ErrNotFound
	}
	// same uniqueness the live store enforces
	for _, et := range ev.Tasks {
		if et.Ref.Code == t.Ref.Code {
			return evaluation.Task{}, fmt.Errorf("duplicate task code %q", t.Ref.Code)
		}
	}
	taskPKCount++
	t.Ref.RemoteID = taskPKCount
	t.Ref.DraftID = ""
	ev.Tasks = append(ev.Tasks, t)
	return t, nil
}

func (repo *EvaluationRepository) UpdateTask(_ context.Context, evaluationID int, t evaluation.Task) (evaluation.Task, error) {
	if repo.FailUpdateTask != nil {
		if err := repo.FailUpdateTask(t); err != nil {
			return evaluation.Task{}, err
		}
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	ev, ok := repo.db.table[evaluationID]
	if !ok {
		return evaluation.Task{}, evaluation.ErrNotFound
	}
	for i := range ev.Tasks {
		if ev.Tasks[i].Ref.RemoteID == t.Ref.RemoteID {
			history := ev.Tasks[i].FeedbackHistory
			stored := t
			stored.Ref.DraftID = ""
			stored.FeedbackHistory = history
			ev.Tasks[i] = stored
			return t, nil
		}
	}
	return evaluation.Task{}, evaluation.ErrNotFound
}

func (repo *EvaluationRepository) DeleteTask(_ context.Context, evaluationID, remoteID int) error {
	if repo.FailDeleteTask != nil {
		if err := repo.FailDeleteTask(remoteID); err != nil {
			return err
		}
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	ev, ok := repo.db.table[evaluationID]
	if !ok {
		return evaluation.ErrNotFound
	}
	for i := range ev.Tasks {
		if ev.Tasks[i].Ref.RemoteID == remoteID {
			ev.Tasks = append(ev.Tasks[:i], ev.Tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (repo *EvaluationRepository) AppendFeedback(_ context.Context, evaluationID int, taskKey string, entry evaluation.FeedbackEntry) (evaluation.FeedbackEntry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ev, ok := repo.db.table[evaluationID]
	if !ok {
		return evaluation.FeedbackEntry{}, evaluation.ErrNotFound
	}
	for i := range ev.Tasks {
		if ev.Tasks[i].Ref.Key() == taskKey {
			fbPKCount++
			entry.ID = fbPKCount
			ev.Tasks[i].FeedbackHistory = append([]evaluation.FeedbackEntry{entry}, ev.Tasks[i].FeedbackHistory...)
			return entry, nil
		}
	}
	return evaluation.FeedbackEntry{}, evaluation.ErrNotFound
}

func (repo *EvaluationRepository) UpdateEvaluationStatus(_ context.Context, evaluationID int, status evaluation.Status, lastModified time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	ev, ok := repo.db.table[evaluationID]
	if !ok {
		return evaluation.ErrNotFound
	}
	ev.Status = status
	ev.LastModified = lastModified.UTC()
	return nil
}
