package evaluation

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Contribution method, from highest authority down.
type ContributionMethod string

const (
	MethodOverall ContributionMethod = "총괄" // overall lead
	MethodLeading ContributionMethod = "리딩"
	MethodHandsOn ContributionMethod = "실무"
	MethodSupport ContributionMethod = "지원"
	MethodNone    ContributionMethod = "기여없음"
)

// Contribution scope, from broadest down.
type ContributionScope string

const (
	ScopeStrategic     ContributionScope = "전략적" // org-wide
	ScopeCollaborative ContributionScope = "상호적" // team
	ScopeIndependent   ContributionScope = "독립적"
	ScopeDirected      ContributionScope = "의존적"
	ScopeNone          ContributionScope = "기여없음"
)

var (
	Methods = []ContributionMethod{MethodSupport, MethodHandsOn, MethodLeading, MethodOverall}
	Scopes  = []ContributionScope{ScopeDirected, ScopeIndependent, ScopeCollaborative, ScopeStrategic}
)

type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Actor roles
const (
	RoleEvaluator = "evaluator"
	RoleEvaluatee = "evaluatee"
)

// Actor is the user performing an operation.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a Actor) IsEvaluator() bool { return a.Role == RoleEvaluator }

// TaskRef carries the three identities a task may have at any point in its
// life: the session-local draft id, the remote row id once persisted, and the
// human-readable task code assigned at registration. Diff and persistence key
// off RemoteID once known, falling back to Code for not-yet-persisted tasks.
type TaskRef struct {
	DraftID  string `json:"draft_id"`
	RemoteID int    `json:"remote_id"`
	Code     string `json:"code"`
}

// Key returns the stable persistence key for the task.
func (ref TaskRef) Key() string {
	if ref.RemoteID != 0 {
		return strconv.Itoa(ref.RemoteID)
	}
	return ref.Code
}

// FeedbackEntry is an append-only feedback history record. Entries are never
// mutated or reordered after creation; display order is by date descending.
type FeedbackEntry struct {
	ID            int       `json:"id"`
	Content       string    `json:"content"`
	Date          time.Time `json:"date"` // UTC
	EvaluatorID   string    `json:"evaluator_id"`
	EvaluatorName string    `json:"evaluator_name"`
}

type Task struct {
	Ref             TaskRef            `json:"ref"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Weight          int                `json:"weight"`
	StartDate       string             `json:"start_date"` // ISO date or empty
	EndDate         string             `json:"end_date"`
	Method          ContributionMethod `json:"method"`
	Scope           ContributionScope  `json:"scope"`
	Score           *int               `json:"score"` // derived only; nil until both axes set
	Feedback        string             `json:"feedback"`
	FeedbackHistory []FeedbackEntry    `json:"feedback_history"`
}

// Scored reports whether the task has a derived score.
func (t Task) Scored() bool { return t.Score != nil }

// LatestFeedbackBy returns the task's newest history entry authored by the
// given evaluator, or nil.
func (t *Task) LatestFeedbackBy(evaluatorID string) *FeedbackEntry {
	var latest *FeedbackEntry
	for i := range t.FeedbackHistory {
		e := &t.FeedbackHistory[i]
		if e.EvaluatorID != evaluatorID {
			continue
		}
		if latest == nil || e.Date.After(latest.Date) {
			latest = e
		}
	}
	return latest
}

type Evaluation struct {
	ID             int       `json:"id"`
	EvaluateeID    string    `json:"evaluatee_id"`
	EvaluateeName  string    `json:"evaluatee_name"`
	EvaluateeEmail string    `json:"evaluatee_email"`
	Position       string    `json:"position"`
	Department     string    `json:"department"`
	GrowthLevel    int       `json:"growth_level"`
	Status         Status    `json:"status"`
	Tasks          []Task    `json:"tasks"`
	LastModified   time.Time `json:"last_modified"` // UTC
}

// TaskByDraftID returns a pointer into ev.Tasks, or nil.
func (ev *Evaluation) TaskByDraftID(draftID string) *Task {
	for i := range ev.Tasks {
		if ev.Tasks[i].Ref.DraftID == draftID {
			return &ev.Tasks[i]
		}
	}
	return nil
}

// IsComplete reports whether every task has a derived score.
func (ev *Evaluation) IsComplete() bool {
	if len(ev.Tasks) == 0 {
		return false
	}
	for _, t := range ev.Tasks {
		if !t.Scored() {
			return false
		}
	}
	return true
}

// TotalScore returns the weighted total, exact and floored.
// Unscored tasks contribute 0.
func (ev *Evaluation) TotalScore() (exact float64, floored int) {
	for _, t := range ev.Tasks {
		if t.Score != nil {
			exact += float64(t.Weight) * float64(*t.Score) / 100
		}
	}
	return exact, int(math.Floor(exact))
}

// Achieved reports whether the floored total meets the growth-level target.
func (ev *Evaluation) Achieved(target int) bool {
	_, floored := ev.TotalScore()
	return floored >= target
}

// NextTaskCode returns the next sequential task code (T-001, T-002, ...).
func (ev *Evaluation) NextTaskCode() string {
	max := 0
	for _, t := range ev.Tasks {
		var n int
		if _, err := fmt.Sscanf(t.Ref.Code, "T-%03d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("T-%03d", max+1)
}

// PriorFeedbackBy collects all persisted feedback texts authored by the given
// evaluator across the evaluation, newest first. Used as the duplicate
// classifier's comparison corpus; never includes other authors' texts.
func (ev *Evaluation) PriorFeedbackBy(evaluatorID string) []string {
	var entries []FeedbackEntry
	for _, t := range ev.Tasks {
		for _, e := range t.FeedbackHistory {
			if e.EvaluatorID == evaluatorID {
				entries = append(entries, e)
			}
		}
	}
	texts := make([]string, 0, len(entries))
	for i := range entries {
		newest := i
		for j := i + 1; j < len(entries); j++ {
			if entries[j].Date.After(entries[newest].Date) {
				newest = j
			}
		}
		entries[i], entries[newest] = entries[newest], entries[i]
		texts = append(texts, entries[i].Content)
	}
	return texts
}

// NewDraft seeds an empty draft for an evaluatee.
func NewDraft(evaluateeID, name, email, position, department string, growthLevel int) Evaluation {
	return Evaluation{
		EvaluateeID:    evaluateeID,
		EvaluateeName:  name,
		EvaluateeEmail: email,
		Position:       position,
		Department:     department,
		GrowthLevel:    growthLevel,
		Status:         StatusInProgress,
		LastModified:   time.Now().UTC(),
	}
}
