package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kohlab/pyeongga/core/evaluation"
)

type notificationApi struct {
	service *evaluation.Service
}

func registerNotificationAPI(g *echo.Group, svc *evaluation.Service) {
	api := notificationApi{service: svc}

	ng := g.Group("/notifications")
	ng.GET("/:recipientID", api.notificationQuery)
	ng.POST("/:id/read", api.notificationMarkRead)
	ng.DELETE("/:id", api.notificationDestroy)
}

func (api *notificationApi) notificationQuery(ctx echo.Context) error {
	notifs, err := api.service.Notifications(ctx.Request().Context(), ctx.Param("recipientID"))
	if err != nil {
		return err
	}
	if notifs == nil {
		notifs = []evaluation.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) notificationMarkRead(ctx echo.Context) error {
	if err := api.service.MarkNotificationRead(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) notificationDestroy(ctx echo.Context) error {
	if err := api.service.DeleteNotification(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
