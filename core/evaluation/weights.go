package evaluation

import (
	"fmt"

	"github.com/kohlab/pyeongga/core"
)

const weightTotal = 100

// ValidateWeights checks that every task weight is within [0,100] and that
// the weights sum to exactly 100. The sum is validated, never auto-corrected;
// a failure blocks the whole save.
func ValidateWeights(weights []int) error {
	var flds []core.FieldError
	sum := 0
	for i, w := range weights {
		if w < 0 || w > weightTotal {
			flds = append(flds, core.FieldError{
				Field: fmt.Sprintf("tasks[%d].weight", i),
				Error: fmt.Sprintf("weight must be between 0 and 100, got %d", w),
			})
		}
		sum += w
	}
	if sum != weightTotal {
		flds = append(flds, core.FieldError{
			Field: "tasks",
			Error: fmt.Sprintf("task weights must sum to %d, got %d", weightTotal, sum),
		})
	}
	if flds != nil {
		return core.NewValidationError(fmt.Errorf("invalid task weights (sum %d)", sum), flds...)
	}
	return nil
}
