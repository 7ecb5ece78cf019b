package classifiersvc

import (
	"context"
	"sync"

	"github.com/kohlab/pyeongga/core"
)

// DummyClassifier returns canned verdicts; tests inspect the calls it saw.
type DummyClassifier struct {
	mu sync.Mutex

	// Verdicts maps a candidate text to its canned verdict; unmapped
	// candidates are "not duplicate".
	Verdicts map[string]core.DuplicateVerdict
	// Errs maps a candidate text to an injected error.
	Errs map[string]error

	Calls []string
}

var _ core.TextClassifier = (*DummyClassifier)(nil)

func NewDummyClassifier() *DummyClassifier {
	return &DummyClassifier{
		Verdicts: make(map[string]core.DuplicateVerdict),
		Errs:     make(map[string]error),
	}
}

func (c *DummyClassifier) ClassifyDuplicate(_ context.Context, candidate string, _ []string) (core.DuplicateVerdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, candidate)
	if err, ok := c.Errs[candidate]; ok {
		return core.DuplicateVerdict{}, err
	}
	return c.Verdicts[candidate], nil
}
