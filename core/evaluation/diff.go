package evaluation

import "strings"

// Changed field identifiers, reported in deterministic order.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldWeight      Field = "weight"
	FieldMethod      Field = "method"
	FieldScope       Field = "scope"
	FieldScore       Field = "score"
	FieldDates       Field = "dates"
	FieldFeedback    Field = "feedback"
)

// FieldOrder is the deterministic order changed fields appear in records and
// notification messages.
var FieldOrder = []Field{
	FieldTitle, FieldDescription, FieldWeight,
	FieldMethod, FieldScope, FieldScore,
	FieldDates, FieldFeedback,
}

// ChangeRecord lists the fields of one task that differ from the last
// persisted snapshot. It exists only for the duration of a save call.
type ChangeRecord struct {
	TaskKey        string
	TaskTitle      string
	Changed        []Field
	HasNewFeedback bool
}

func (r ChangeRecord) Empty() bool { return len(r.Changed) == 0 }

func (r ChangeRecord) has(f Field) bool {
	for _, c := range r.Changed {
		if c == f {
			return true
		}
	}
	return false
}

// Diff compares a draft task against its persisted snapshot, previous being
// nil for a newly created task. Unset values (nil score, empty strings) are
// normalized to a single sentinel so that "A → unset" and "unset → B" both
// count as changes and "unset → unset" does not. A new task reports only the
// fields with a non-unset current value.
func Diff(current Task, previous *Task) ChangeRecord {
	rec := ChangeRecord{TaskKey: current.Ref.Key(), TaskTitle: current.Title}

	prev := Task{}
	if previous != nil {
		prev = *previous
	}

	changed := map[Field]bool{}
	if normalizeStr(current.Title) != normalizeStr(prev.Title) {
		changed[FieldTitle] = true
	}
	if normalizeStr(current.Description) != normalizeStr(prev.Description) {
		changed[FieldDescription] = true
	}
	if current.Weight != prev.Weight {
		changed[FieldWeight] = true
	}
	if normalizeStr(string(current.Method)) != normalizeStr(string(prev.Method)) {
		changed[FieldMethod] = true
	}
	if normalizeStr(string(current.Scope)) != normalizeStr(string(prev.Scope)) {
		changed[FieldScope] = true
	}
	if !scoreEqual(current.Score, prev.Score) {
		changed[FieldScore] = true
	}
	if normalizeStr(current.StartDate) != normalizeStr(prev.StartDate) ||
		normalizeStr(current.EndDate) != normalizeStr(prev.EndDate) {
		changed[FieldDates] = true
	}
	// feedback is special: whitespace-only edits are not changes
	if strings.TrimSpace(current.Feedback) != strings.TrimSpace(prev.Feedback) {
		changed[FieldFeedback] = true
		rec.HasNewFeedback = true
	}

	for _, f := range FieldOrder {
		if changed[f] {
			rec.Changed = append(rec.Changed, f)
		}
	}
	return rec
}

func normalizeStr(s string) string {
	return strings.TrimSpace(s)
}

func scoreEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
