package cache

import (
	"context"
	"testing"

	"github.com/kohlab/pyeongga/core/evaluation"
)

func TestLocalCacheRoundTrip(t *testing.T) {
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	if _, ok, err := c.GetEvaluation(ctx, "emp-1"); err != nil || ok {
		t.Fatalf("GetEvaluation() on empty cache = (ok=%t, err=%v)", ok, err)
	}

	score := 2
	ev := evaluation.Evaluation{
		ID:          7,
		EvaluateeID: "emp-1",
		Status:      evaluation.StatusInProgress,
		Tasks: []evaluation.Task{{
			Ref:    evaluation.TaskRef{RemoteID: 11, Code: "T-001"},
			Title:  "플랫폼 이관",
			Weight: 100,
			Method: evaluation.MethodHandsOn,
			Scope:  evaluation.ScopeIndependent,
			Score:  &score,
		}},
	}
	if err := c.SetEvaluation(ctx, ev); err != nil {
		t.Fatalf("SetEvaluation() error = %v", err)
	}

	got, ok, err := c.GetEvaluation(ctx, "emp-1")
	if err != nil || !ok {
		t.Fatalf("GetEvaluation() = (ok=%t, err=%v)", ok, err)
	}
	if got.ID != ev.ID || len(got.Tasks) != 1 || got.Tasks[0].Score == nil || *got.Tasks[0].Score != score {
		t.Errorf("GetEvaluation() = %+v, want the stored snapshot", got)
	}

	// upsert replaces the snapshot
	ev.Status = evaluation.StatusCompleted
	if err := c.SetEvaluation(ctx, ev); err != nil {
		t.Fatalf("SetEvaluation() upsert error = %v", err)
	}
	if got, _, _ = c.GetEvaluation(ctx, "emp-1"); got.Status != evaluation.StatusCompleted {
		t.Errorf("status after upsert = %s, want %s", got.Status, evaluation.StatusCompleted)
	}
}
