package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kohlab/pyeongga/core"
	"github.com/kohlab/pyeongga/core/evaluation"
)

// seed registers an evaluation with three empty tasks so a new evaluatee can
// start from something other than a blank screen.
func (cli *commandLine) seed(evaluateeID, name string, level int) error {
	ctx := context.Background()

	if _, err := cli.evalRepo.GetEvaluationByEvaluatee(ctx, evaluateeID); err == nil {
		return fmt.Errorf("an evaluation already exists for evaluatee %q", evaluateeID)
	} else if !errors.Is(err, evaluation.ErrNotFound) {
		return err
	}

	draft := evaluation.NewDraft(evaluateeID, name, "", "", "", level)
	created, err := cli.evalRepo.CreateEvaluation(ctx, draft)
	if err != nil {
		return err
	}

	for i, title := range []string{"핵심 과제", "협업 과제", "개선 과제"} {
		t := evaluation.Task{
			Ref:   evaluation.TaskRef{Code: fmt.Sprintf("T-%03d", i+1)},
			Title: title,
		}
		if _, err = cli.evalRepo.CreateTask(ctx, created.ID, t); err != nil {
			return err
		}
	}

	logger.Printf("seeded evaluation for %s (%s), growth level %d", name, evaluateeID, level)
	return nil
}

func (cli *commandLine) report(evaluateeID string) error {
	ev, err := cli.evalRepo.GetEvaluationByEvaluatee(context.Background(), evaluateeID)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s) - %s / %s\n", ev.EvaluateeName, ev.EvaluateeID, ev.Department, ev.Position)
	fmt.Printf("status: %s\n", ev.Status)
	for _, t := range ev.Tasks {
		score := "-"
		if t.Score != nil {
			score = fmt.Sprintf("%d", *t.Score)
		}
		fmt.Printf("  %s  %-30s  weight=%3d  score=%s\n", t.Ref.Code, t.Title, t.Weight, score)
	}
	exact, floored := ev.TotalScore()
	target := core.Conf.GrowthTarget(ev.GrowthLevel)
	fmt.Printf("total: %.2f (floored %d), target %d, achieved=%t\n",
		exact, floored, target, ev.Achieved(target))
	return nil
}
