package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kohlab/pyeongga/core"
	"github.com/kohlab/pyeongga/core/evaluation"
)

type evaluationApi struct {
	service *evaluation.Service
}

func registerEvaluationAPI(g *echo.Group, svc *evaluation.Service) {
	api := evaluationApi{service: svc}

	eg := g.Group("/evaluations")
	eg.GET("/:evaluateeID", api.evaluationRetrieve)
	eg.POST("/:evaluateeID/save", api.evaluationSave)
}

// saveRequest wraps the draft payload with the acting user and the warning
// acknowledgement. Warnings returned by a first attempt are advisory; the
// client repeats the request with acknowledge_warnings=true to proceed.
type saveRequest struct {
	Draft               evaluation.DraftPayload `json:"draft"`
	Actor               evaluation.Actor        `json:"actor" validate:"required"`
	AcknowledgeWarnings bool                    `json:"acknowledge_warnings"`
}

func (r *saveRequest) Validate() error {
	if r.Actor.ID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "actor", Error: "acting user is required"})
	}
	return r.Draft.Validate()
}

type saveResponse struct {
	Saved      bool                      `json:"saved"`
	Warnings   []evaluation.SaveWarning  `json:"warnings,omitempty"`
	Changes    []evaluation.ChangeRecord `json:"changes,omitempty"`
	Evaluation *evaluation.Evaluation    `json:"evaluation,omitempty"`
}

func (api *evaluationApi) evaluationRetrieve(ctx echo.Context) error {
	ev, err := api.service.Load(ctx.Request().Context(), ctx.Param("evaluateeID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ev)
}

func (api *evaluationApi) evaluationSave(ctx echo.Context) error {
	data := new(saveRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	draft := data.Draft.Evaluation()
	draft.EvaluateeID = ctx.Param("evaluateeID")

	res, err := api.service.Save(ctx.Request().Context(), evaluation.SaveRequest{
		Draft:   draft,
		Actor:   data.Actor,
		Confirm: func([]evaluation.SaveWarning) bool { return data.AcknowledgeWarnings },
	})
	if err != nil {
		return err
	}

	resp := saveResponse{
		Saved:    res.Saved,
		Warnings: res.Warnings,
		Changes:  res.Changes,
	}
	if res.Saved {
		resp.Evaluation = &res.Evaluation
	}
	return ctx.JSON(http.StatusOK, resp)
}
