package evaluation

import (
	"github.com/go-playground/validator/v10"

	"github.com/kohlab/pyeongga/core"
)

var (
	methodTag  = "contribmethod"
	methodText = "invalid contribution method"

	scopeTag  = "contribscope"
	scopeText = "invalid contribution scope"
)

func init() {
	_ = core.Validate.RegisterValidation(methodTag, methodValidation)
	core.RegisterCustomTranslation(methodTag, methodText)

	_ = core.Validate.RegisterValidation(scopeTag, scopeValidation)
	core.RegisterCustomTranslation(scopeTag, scopeText)
}

func methodValidation(fl validator.FieldLevel) bool {
	v := ContributionMethod(fl.Field().String())
	if v == "" || v == MethodNone {
		return true
	}
	for _, m := range Methods {
		if v == m {
			return true
		}
	}
	return false
}

func scopeValidation(fl validator.FieldLevel) bool {
	v := ContributionScope(fl.Field().String())
	if v == "" || v == ScopeNone {
		return true
	}
	for _, s := range Scopes {
		if v == s {
			return true
		}
	}
	return false
}

// NewTask is the task-registration payload.
type NewTask struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Weight      int    `json:"weight" validate:"min=0,max=100"`
	StartDate   string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

func (nt *NewTask) Validate() error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	return core.Validate.Struct(nt)
}

// DraftPayload is the save payload bound from the API layer.
type DraftPayload struct {
	EvaluateeID    string `json:"evaluatee_id" validate:"required"`
	EvaluateeName  string `json:"evaluatee_name"`
	EvaluateeEmail string `json:"evaluatee_email" validate:"omitempty,email"`
	Position       string `json:"position"`
	Department     string `json:"department"`
	GrowthLevel    int    `json:"growth_level" validate:"min=1,max=4"`
	Tasks          []struct {
		Ref         TaskRef `json:"ref"`
		Title       string  `json:"title" validate:"required,max=200"`
		Description string  `json:"description" validate:"max=2000"`
		Weight      int     `json:"weight" validate:"min=0,max=100"`
		StartDate   string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
		EndDate     string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
		Method      string  `json:"method" validate:"contribmethod"`
		Scope       string  `json:"scope" validate:"contribscope"`
		Feedback    string  `json:"feedback"`
	} `json:"tasks" validate:"dive"`
}

func (p *DraftPayload) Validate() error {
	return core.Validate.Struct(p)
}

// Evaluation builds a draft from the payload. Scores are rederived from the
// matrix; a payload can never set a score directly.
func (p *DraftPayload) Evaluation() Evaluation {
	ev := Evaluation{
		EvaluateeID:    p.EvaluateeID,
		EvaluateeName:  p.EvaluateeName,
		EvaluateeEmail: p.EvaluateeEmail,
		Position:       p.Position,
		Department:     p.Department,
		GrowthLevel:    p.GrowthLevel,
		Status:         StatusInProgress,
	}
	for _, pt := range p.Tasks {
		method, scope := Normalize(ContributionMethod(pt.Method), ContributionScope(pt.Scope))
		ev.Tasks = append(ev.Tasks, Task{
			Ref:         pt.Ref,
			Title:       core.CleanString(pt.Title),
			Description: core.CleanString(pt.Description),
			Weight:      pt.Weight,
			StartDate:   pt.StartDate,
			EndDate:     pt.EndDate,
			Method:      method,
			Scope:       scope,
			Score:       DeriveScore(method, scope),
			Feedback:    pt.Feedback,
		})
	}
	return ev
}
