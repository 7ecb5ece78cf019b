package evaluation

import (
	"testing"
	"time"
)

func TestNextTaskCode(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		want  string
	}{
		{name: "empty", codes: nil, want: "T-001"},
		{name: "sequential", codes: []string{"T-001", "T-002"}, want: "T-003"},
		{name: "gap", codes: []string{"T-001", "T-005"}, want: "T-006"},
		{name: "unparseable codes ignored", codes: []string{"legacy", "T-002"}, want: "T-003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluation{}
			for _, c := range tt.codes {
				ev.Tasks = append(ev.Tasks, Task{Ref: TaskRef{Code: c}})
			}
			if got := ev.NextTaskCode(); got != tt.want {
				t.Errorf("NextTaskCode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsComplete(t *testing.T) {
	ev := Evaluation{}
	if ev.IsComplete() {
		t.Error("IsComplete() = true with no tasks")
	}

	ev.Tasks = []Task{{Score: intPtr(2)}, {}}
	if ev.IsComplete() {
		t.Error("IsComplete() = true with an unscored task")
	}

	ev.Tasks[1].Score = intPtr(0) // a 0 score still counts as scored
	if !ev.IsComplete() {
		t.Error("IsComplete() = false with all tasks scored")
	}
}

func TestTotalScore(t *testing.T) {
	ev := Evaluation{Tasks: []Task{
		{Weight: 30, Score: intPtr(3)},
		{Weight: 45, Score: intPtr(2)},
		{Weight: 25}, // unscored contributes 0
	}}
	exact, floored := ev.TotalScore()
	if exact != 1.8 {
		t.Errorf("TotalScore() exact = %v, want 1.8", exact)
	}
	if floored != 1 {
		t.Errorf("TotalScore() floored = %d, want 1", floored)
	}

	if !ev.Achieved(1) {
		t.Error("Achieved(1) = false with floored total 1")
	}
	if ev.Achieved(2) {
		t.Error("Achieved(2) = true with floored total 1")
	}
}

func TestPriorFeedbackBy(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }
	ev := Evaluation{Tasks: []Task{
		{FeedbackHistory: []FeedbackEntry{
			{Content: "첫 과제에 대한 오래된 코멘트", EvaluatorID: "mgr-1", Date: day(1)},
			{Content: "다른 평가자의 코멘트", EvaluatorID: "mgr-2", Date: day(2)},
		}},
		{FeedbackHistory: []FeedbackEntry{
			{Content: "둘째 과제에 대한 최근 코멘트", EvaluatorID: "mgr-1", Date: day(5)},
		}},
	}}

	texts := ev.PriorFeedbackBy("mgr-1")
	want := []string{"둘째 과제에 대한 최근 코멘트", "첫 과제에 대한 오래된 코멘트"}
	if len(texts) != len(want) {
		t.Fatalf("got %d texts, want %d", len(texts), len(want))
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("texts[%d] = %q, want %q (newest first)", i, texts[i], want[i])
		}
	}

	if got := ev.PriorFeedbackBy("ghost"); len(got) != 0 {
		t.Errorf("PriorFeedbackBy(ghost) = %v, want none", got)
	}
}
