package echoapi

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kohlab/pyeongga/core"
	"github.com/kohlab/pyeongga/core/evaluation"
	emailsvc "github.com/kohlab/pyeongga/services/email"
	dummydb "github.com/kohlab/pyeongga/storage/database/dummy"
)

type httpErr struct {
	Error string `json:"error"`
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func initApp(t *testing.T) (*echo.Echo, *evaluation.Service, *dummydb.NotificationRepository) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	repo := dummydb.NewEvaluationRepository(db)
	notifRepo := dummydb.NewNotificationRepository(db)
	logger := core.NewStdLogger(log.New(io.Discard, "", 0))

	classifier := evaluation.NewDuplicateClassifier(evaluation.DuplicateRules{Similarity: .85}, nil, logger)
	dispatcher := evaluation.NewDispatcher(notifRepo, emailsvc.NewConsoleServiceMock(), logger)
	svc := evaluation.NewService(repo, notifRepo, nil, classifier, dispatcher, evaluation.ContentRules{
		MinLength:          30,
		MinSentences:       2,
		MaxRunLength:       5,
		MaxEmojiDensity:    .10,
		MinUniqueSentences: .70,
	}, logger)

	app := echo.New()
	app.Pre(middleware.RemoveTrailingSlash())
	app.HTTPErrorHandler = newAppHTTPErrorHandler(logger, func() {})
	v1 := app.Group("/v1")
	registerEvaluationAPI(v1, svc)
	registerNotificationAPI(v1, svc)
	return app, svc, notifRepo
}
