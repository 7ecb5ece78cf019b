package core

import "context"

// DuplicateVerdict is an external classifier's opinion on whether a feedback
// text is a near-copy of the author's prior feedback.
type DuplicateVerdict struct {
	IsDuplicate bool
	Confidence  float64
	Summary     string
}

// TextClassifier is any service that can compare a candidate text against the
// same author's prior texts. It is advisory and best-effort: callers must
// treat an error as "no opinion", never as a hard failure.
type TextClassifier interface {
	ClassifyDuplicate(ctx context.Context, candidate string, priorTexts []string) (DuplicateVerdict, error)
}
