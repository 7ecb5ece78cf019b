package evaluation

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kohlab/pyeongga/core"
)

// DuplicateRules holds the local duplicate-detection threshold.
type DuplicateRules struct {
	Similarity float64
}

func DefaultDuplicateRules() DuplicateRules {
	return DuplicateRules{Similarity: core.Conf.Feedback.DuplicateSimilarity}
}

type (
	// DuplicateCandidate is one feedback text to screen, together with the
	// author's own prior texts to screen it against.
	DuplicateCandidate struct {
		TaskKey    string
		TaskTitle  string
		Text       string
		PriorTexts []string
	}

	DuplicateResult struct {
		TaskKey     string
		TaskTitle   string
		IsDuplicate bool
		Reason      string
	}

	// DuplicateClassifier screens feedback texts in two stages: local
	// similarity against the author's prior texts, then a best-effort call to
	// the external text-classification collaborator. Its verdict is advisory;
	// the caller presents it to the user and allows an explicit override.
	DuplicateClassifier struct {
		rules  DuplicateRules
		collab core.TextClassifier // may be nil
		logger core.Logger
	}
)

func NewDuplicateClassifier(rules DuplicateRules, collab core.TextClassifier, logger core.Logger) *DuplicateClassifier {
	return &DuplicateClassifier{rules: rules, collab: collab, logger: logger}
}

// Classify screens a single candidate.
// A collaborator failure degrades to "not duplicate": a missing external
// opinion is never fatal. It is logged, not surfaced.
func (c *DuplicateClassifier) Classify(ctx context.Context, cand DuplicateCandidate) DuplicateResult {
	res := DuplicateResult{TaskKey: cand.TaskKey, TaskTitle: cand.TaskTitle}

	text := strings.TrimSpace(cand.Text)
	if text == "" || len(cand.PriorTexts) == 0 {
		return res
	}

	// stage 1: local similarity
	norm := normalizeText(text)
	for _, prior := range cand.PriorTexts {
		if TextSimilarity(norm, normalizeText(prior)) >= c.rules.Similarity {
			res.IsDuplicate = true
			res.Reason = "nearly identical to feedback you wrote before"
			return res
		}
	}

	// stage 2: external opinion
	if c.collab == nil {
		return res
	}
	verdict, err := c.collab.ClassifyDuplicate(ctx, text, cand.PriorTexts)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("duplicate classifier unavailable for task %s; skipping", cand.TaskKey), err)
		return res
	}
	if verdict.IsDuplicate {
		res.IsDuplicate = true
		res.Reason = verdict.Summary
		if res.Reason == "" {
			res.Reason = "suspiciously similar to feedback you wrote before"
		}
	}
	return res
}

// ClassifyAll screens all candidates concurrently and returns results in
// input order. The per-task collaborator calls are independent and read-only,
// so they fan out and are awaited together.
func (c *DuplicateClassifier) ClassifyAll(ctx context.Context, cands []DuplicateCandidate) []DuplicateResult {
	results := make([]DuplicateResult, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	for i, cand := range cands {
		i, cand := i, cand
		g.Go(func() error {
			results[i] = c.Classify(gctx, cand)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures degrade per task
	return results
}
