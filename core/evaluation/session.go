package evaluation

import (
	"context"
	goerrors "errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kohlab/pyeongga/core"
)

var ErrTaskNotFound = goerrors.New("task not found in draft")

// Session owns one in-memory evaluation draft for one editing user. The draft
// is superseded wholesale by the reload after each successful save. Saves are
// coarse-grained and non-reentrant: a second Save while one is in flight is
// rejected.
type Session struct {
	svc     *Service
	actor   Actor
	confirm func(warnings []SaveWarning) bool

	mu     sync.Mutex
	draft  Evaluation
	saving bool
}

// NewSession starts an editing session over a loaded (or freshly seeded)
// draft. confirm is invoked with advisory warnings during Save; nil declines.
func NewSession(svc *Service, actor Actor, draft Evaluation, confirm func([]SaveWarning) bool) *Session {
	for i := range draft.Tasks {
		if draft.Tasks[i].Ref.DraftID == "" {
			draft.Tasks[i].Ref.DraftID = uuid.New().String()
		}
	}
	return &Session{svc: svc, actor: actor, draft: draft, confirm: confirm}
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.draft
	ev.Tasks = append([]Task(nil), s.draft.Tasks...)
	return ev
}

// AddTask registers a new task in the draft with the next sequential code.
func (s *Session) AddTask(nt NewTask) (Task, error) {
	if err := nt.Validate(); err != nil {
		return Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Task{
		Ref:         TaskRef{DraftID: uuid.New().String(), Code: s.draft.NextTaskCode()},
		Title:       core.CleanString(nt.Title),
		Description: core.CleanString(nt.Description),
		Weight:      nt.Weight,
		StartDate:   nt.StartDate,
		EndDate:     nt.EndDate,
	}
	s.draft.Tasks = append(s.draft.Tasks, t)
	return t, nil
}

// RemoveTask archives a task: it disappears from the draft now and from the
// remote store on the next save.
func (s *Session) RemoveTask(draftID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.draft.Tasks {
		if s.draft.Tasks[i].Ref.DraftID == draftID {
			s.draft.Tasks = append(s.draft.Tasks[:i], s.draft.Tasks[i+1:]...)
			return nil
		}
	}
	return ErrTaskNotFound
}

func (s *Session) SetWeight(draftID string, weight int) error {
	if weight < 0 || weight > 100 {
		return core.NewValidationError(goerrors.New("invalid weight"),
			core.FieldError{Field: "weight", Error: "weight must be between 0 and 100"})
	}
	return s.mutateTask(draftID, func(t *Task) {
		t.Weight = weight
	})
}

// SetMethod sets the contribution method and rederives the score. Selecting
// "기여없음" forces the scope to "기여없음" as well.
func (s *Session) SetMethod(draftID string, method ContributionMethod) error {
	return s.mutateTask(draftID, func(t *Task) {
		t.Method = method
		if t.Scope != "" || method == MethodNone {
			t.Method, t.Scope = Normalize(method, t.Scope)
		}
		t.Score = DeriveScore(t.Method, t.Scope)
	})
}

// SetScope sets the contribution scope and rederives the score. Selecting
// "기여없음" forces the method to "기여없음" as well.
func (s *Session) SetScope(draftID string, scope ContributionScope) error {
	return s.mutateTask(draftID, func(t *Task) {
		t.Scope = scope
		if t.Method != "" || scope == ScopeNone {
			t.Method, t.Scope = Normalize(t.Method, scope)
		}
		t.Score = DeriveScore(t.Method, t.Scope)
	})
}

func (s *Session) SetFeedback(draftID, text string) error {
	return s.mutateTask(draftID, func(t *Task) {
		t.Feedback = text
	})
}

func (s *Session) SetTitle(draftID, title string) error {
	return s.mutateTask(draftID, func(t *Task) {
		t.Title = core.CleanString(title)
	})
}

func (s *Session) SetDates(draftID, start, end string) error {
	return s.mutateTask(draftID, func(t *Task) {
		t.StartDate = start
		t.EndDate = end
	})
}

func (s *Session) mutateTask(draftID string, mutate func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.draft.TaskByDraftID(draftID)
	if t == nil {
		return ErrTaskNotFound
	}
	mutate(t)
	return nil
}

// Save persists the draft through the reconciler. It returns false with a nil
// error when the user aborted at the confirmation step.
func (s *Session) Save(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return false, ErrSaveInFlight
	}
	s.saving = true
	// hand the service its own copy of the task slice; persist writes remote
	// ids into it while the mutex is released and field edits may land
	// concurrently
	draft := s.draft
	draft.Tasks = append([]Task(nil), s.draft.Tasks...)
	s.mu.Unlock()

	res, err := s.svc.Save(ctx, SaveRequest{Draft: draft, Actor: s.actor, Confirm: s.confirm})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if err == nil && res.Saved {
		// the reload is the new source of truth and diff baseline
		reloaded := res.Evaluation
		carryDraftIDs(&reloaded, s.draft)
		s.draft = reloaded
	}
	return res.Saved, err
}

func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.IsComplete()
}

func (s *Session) IsAchieved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Achieved(core.Conf.GrowthTarget(s.draft.GrowthLevel))
}

func (s *Session) TotalScore() (exact float64, floored int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.TotalScore()
}

// carryDraftIDs keeps session-local draft ids stable across reloads so the
// UI's task handles survive a save.
func carryDraftIDs(reloaded *Evaluation, old Evaluation) {
	for i := range reloaded.Tasks {
		rt := &reloaded.Tasks[i]
		for _, ot := range old.Tasks {
			if sameTask(ot.Ref, rt.Ref) {
				rt.Ref.DraftID = ot.Ref.DraftID
				break
			}
		}
		if rt.Ref.DraftID == "" {
			rt.Ref.DraftID = uuid.New().String()
		}
	}
}

func sameTask(a, b TaskRef) bool {
	if a.RemoteID != 0 && b.RemoteID != 0 {
		return a.RemoteID == b.RemoteID
	}
	return a.Code != "" && strings.EqualFold(a.Code, b.Code)
}
