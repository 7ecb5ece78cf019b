package evaluation_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/kohlab/pyeongga/core"
	"github.com/kohlab/pyeongga/core/evaluation"
	classifiersvc "github.com/kohlab/pyeongga/services/classifier"
	emailsvc "github.com/kohlab/pyeongga/services/email"
	dummydb "github.com/kohlab/pyeongga/storage/database/dummy"
)

const goodFeedback = "이번 분기 데이터 파이프라인 개선 과제를 주도적으로 이끌었습니다. 배포 실패율이 크게 줄었고 문서화 역시 충실하게 정리되었습니다."

func testContentRules() evaluation.ContentRules {
	return evaluation.ContentRules{
		MinLength:          30,
		MinSentences:       2,
		MaxRunLength:       5,
		MaxEmojiDensity:    .10,
		MinUniqueSentences: .70,
	}
}

type fakeCache struct {
	mu    sync.Mutex
	evs   map[string]evaluation.Evaluation
	fail  bool
	saves int
}

func newFakeCache() *fakeCache {
	return &fakeCache{evs: make(map[string]evaluation.Evaluation)}
}

func (c *fakeCache) GetEvaluation(_ context.Context, evaluateeID string) (evaluation.Evaluation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return evaluation.Evaluation{}, false, errors.New("cache unavailable")
	}
	ev, ok := c.evs[evaluateeID]
	return ev, ok, nil
}

func (c *fakeCache) SetEvaluation(_ context.Context, ev evaluation.Evaluation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache unavailable")
	}
	c.evs[ev.EvaluateeID] = ev
	c.saves++
	return nil
}

type testEnv struct {
	svc       *evaluation.Service
	repo      *dummydb.EvaluationRepository
	notifRepo *dummydb.NotificationRepository
	cache     *fakeCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	repo := dummydb.NewEvaluationRepository(db)
	notifRepo := dummydb.NewNotificationRepository(db)
	cache := newFakeCache()
	logger := testLogger()

	classifier := evaluation.NewDuplicateClassifier(evaluation.DuplicateRules{Similarity: .85}, nil, logger)
	dispatcher := evaluation.NewDispatcher(notifRepo, emailsvc.NewConsoleServiceMock(), logger)
	svc := evaluation.NewService(repo, notifRepo, cache, classifier, dispatcher, testContentRules(), logger)
	return &testEnv{svc: svc, repo: repo, notifRepo: notifRepo, cache: cache}
}

func newTestDraft() evaluation.Evaluation {
	draft := evaluation.NewDraft("emp-1", "이영희", "yhlee@test.test", "선임", "플랫폼팀", 2)
	draft.Tasks = []evaluation.Task{
		{
			Ref:    evaluation.TaskRef{Code: "T-001"},
			Title:  "플랫폼 이관",
			Weight: 60,
			Method: evaluation.MethodHandsOn,
			Scope:  evaluation.ScopeIndependent,
			Score:  evaluation.DeriveScore(evaluation.MethodHandsOn, evaluation.ScopeIndependent),
		},
		{
			Ref:    evaluation.TaskRef{Code: "T-002"},
			Title:  "온보딩 개선",
			Weight: 40,
			Method: evaluation.MethodLeading,
			Scope:  evaluation.ScopeCollaborative,
			Score:  evaluation.DeriveScore(evaluation.MethodLeading, evaluation.ScopeCollaborative),
		},
	}
	return draft
}

func confirmAll([]evaluation.SaveWarning) bool { return true }

func TestServiceSaveCreatesEvaluation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: newTestDraft(), Actor: testEvaluator})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !res.Saved {
		t.Fatalf("Save() not saved; warnings: %+v", res.Warnings)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Save() warnings = %+v, want none", res.Warnings)
	}

	ev := res.Evaluation
	if ev.ID == 0 {
		t.Error("reloaded evaluation has no id")
	}
	if len(ev.Tasks) != 2 {
		t.Fatalf("reloaded evaluation has %d tasks, want 2", len(ev.Tasks))
	}
	for _, task := range ev.Tasks {
		if task.Ref.RemoteID == 0 {
			t.Errorf("task %s has no remote id after save", task.Ref.Code)
		}
	}
	// both tasks scored: hands-on/independent = 2, leading/collaborative = 3
	if ev.Status != evaluation.StatusCompleted {
		t.Errorf("status = %s, want %s", ev.Status, evaluation.StatusCompleted)
	}
	if exact, floored := ev.TotalScore(); exact != 2.4 || floored != 2 {
		t.Errorf("TotalScore() = (%v, %d), want (2.4, 2)", exact, floored)
	}

	// saved snapshot is mirrored locally
	if cached, ok, _ := env.cache.GetEvaluation(ctx, ev.EvaluateeID); !ok || cached.ID != ev.ID {
		t.Error("saved evaluation not mirrored to cache")
	}
}

func TestServiceSaveUnchangedIsQuiet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: newTestDraft(), Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("initial Save() = (%+v, %v)", res, err)
	}
	notifsBefore, _ := env.notifRepo.ListNotifications(ctx, "emp-1")

	// resubmitting the reload verbatim must not write feedback or notify
	res, err = env.svc.Save(ctx, evaluation.SaveRequest{Draft: res.Evaluation, Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("second Save() = (%+v, %v)", res, err)
	}
	for _, rec := range res.Changes {
		if !rec.Empty() {
			t.Errorf("unchanged task %s reported changes %v", rec.TaskKey, rec.Changed)
		}
	}
	for _, task := range res.Evaluation.Tasks {
		if len(task.FeedbackHistory) != 0 {
			t.Errorf("task %s grew feedback history on a no-op save", task.Ref.Code)
		}
	}
	notifsAfter, _ := env.notifRepo.ListNotifications(ctx, "emp-1")
	if len(notifsAfter) != len(notifsBefore) {
		t.Errorf("no-op save created %d notifications", len(notifsAfter)-len(notifsBefore))
	}
}

func TestServiceSaveAppendsFeedback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: newTestDraft(), Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("initial Save() = (%+v, %v)", res, err)
	}

	draft := res.Evaluation
	draft.Tasks[0].Feedback = goodFeedback
	res, err = env.svc.Save(ctx, evaluation.SaveRequest{Draft: draft, Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("feedback Save() = (%+v, %v)", res, err)
	}

	hist := res.Evaluation.Tasks[0].FeedbackHistory
	if len(hist) != 1 {
		t.Fatalf("feedback history has %d entries, want 1", len(hist))
	}
	if hist[0].Content != goodFeedback || hist[0].EvaluatorID != testEvaluator.ID {
		t.Errorf("feedback entry = %+v", hist[0])
	}

	notifs, _ := env.notifRepo.ListNotifications(ctx, "emp-1")
	found := false
	for _, n := range notifs {
		if n.TaskKey == res.Evaluation.Tasks[0].Ref.Key() && strings.Contains(n.Message, "feedback") {
			found = true
		}
	}
	if !found {
		t.Error("no notification for the feedback change")
	}

	// saving again with identical feedback appends nothing
	res, err = env.svc.Save(ctx, evaluation.SaveRequest{Draft: res.Evaluation, Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("repeat Save() = (%+v, %v)", res, err)
	}
	if got := len(res.Evaluation.Tasks[0].FeedbackHistory); got != 1 {
		t.Errorf("feedback history has %d entries after no-op save, want 1", got)
	}
}

func TestServiceSaveInvalidWeights(t *testing.T) {
	env := newTestEnv(t)

	draft := newTestDraft()
	draft.Tasks[1].Weight = 35 // sum 95

	_, err := env.svc.Save(context.Background(), evaluation.SaveRequest{Draft: draft, Actor: testEvaluator})
	if !core.IsValidationError(err) {
		t.Fatalf("Save() error = %v, want validation error", err)
	}
	// nothing was written
	if _, gErr := env.repo.GetEvaluationByEvaluatee(context.Background(), "emp-1"); !errors.Is(gErr, evaluation.ErrNotFound) {
		t.Error("evaluation was persisted despite invalid weights")
	}
}

func TestServiceSaveAbortsOnUnconfirmedWarnings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := newTestDraft()
	draft.Tasks[0].Feedback = "수고하셨습니다." // generic and too short

	// nil Confirm declines
	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: draft, Actor: testEvaluator})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if res.Saved {
		t.Fatal("save proceeded without confirmation")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("no warnings returned for generic feedback")
	}
	if res.Warnings[0].Kind != evaluation.WarnContent {
		t.Errorf("warning kind = %s, want %s", res.Warnings[0].Kind, evaluation.WarnContent)
	}
	if _, gErr := env.repo.GetEvaluationByEvaluatee(ctx, "emp-1"); !errors.Is(gErr, evaluation.ErrNotFound) {
		t.Error("aborted save left data behind")
	}

	// an explicit acknowledgement proceeds
	res, err = env.svc.Save(ctx, evaluation.SaveRequest{Draft: draft, Actor: testEvaluator, Confirm: confirmAll})
	if err != nil {
		t.Fatalf("confirmed Save() error = %v", err)
	}
	if !res.Saved {
		t.Fatal("confirmed save did not proceed")
	}
}

func TestServiceSaveWarnsOnDuplicateFeedback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := newTestDraft()
	draft.Tasks[0].Feedback = goodFeedback
	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: draft, Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("initial Save() = (%+v, %v)", res, err)
	}

	// near-identical feedback on the other task
	draft = res.Evaluation
	draft.Tasks[1].Feedback = goodFeedback + " 감사합니다."
	var seen []evaluation.SaveWarning
	res, err = env.svc.Save(ctx, evaluation.SaveRequest{
		Draft: draft,
		Actor: testEvaluator,
		Confirm: func(warnings []evaluation.SaveWarning) bool {
			seen = warnings
			return false
		},
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if res.Saved {
		t.Fatal("save proceeded after Confirm returned false")
	}

	found := false
	for _, w := range seen {
		if w.Kind == evaluation.WarnDuplicate && w.TaskKey == draft.Tasks[1].Ref.Key() {
			found = true
		}
	}
	if !found {
		t.Errorf("no duplicate warning in %+v", seen)
	}
}

// A collaborator outage must degrade the duplicate check, never block the
// save itself.
func TestServiceSaveSurvivesClassifierOutage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := newTestDraft()
	draft.Tasks[0].Feedback = goodFeedback
	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: draft, Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("initial Save() = (%+v, %v)", res, err)
	}

	// rebuild the service with a collaborator that always fails
	newFeedback := "온보딩 세션을 재구성하여 신규 입사자 적응 기간을 한 달 가까이 줄였습니다. 참여자 만족도도 꾸준히 높았습니다."
	collab := classifiersvc.NewDummyClassifier()
	collab.Errs[newFeedback] = errors.New("upstream timeout")
	logger := testLogger()
	classifier := evaluation.NewDuplicateClassifier(evaluation.DuplicateRules{Similarity: .85}, collab, logger)
	dispatcher := evaluation.NewDispatcher(env.notifRepo, nil, logger)
	svc := evaluation.NewService(env.repo, env.notifRepo, env.cache, classifier, dispatcher, testContentRules(), logger)

	draft = res.Evaluation
	draft.Tasks[1].Feedback = newFeedback
	res, err = svc.Save(ctx, evaluation.SaveRequest{Draft: draft, Actor: testEvaluator})
	if err != nil {
		t.Fatalf("Save() with failing classifier error = %v", err)
	}
	if !res.Saved {
		t.Fatalf("Save() blocked by classifier outage; warnings: %+v", res.Warnings)
	}
	if len(collab.Calls) != 1 {
		t.Errorf("collaborator saw %d calls, want 1", len(collab.Calls))
	}
	if got := len(res.Evaluation.Tasks[1].FeedbackHistory); got != 1 {
		t.Errorf("feedback history has %d entries, want 1", got)
	}
}

func TestServiceSavePartialPersistence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: newTestDraft(), Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("initial Save() = (%+v, %v)", res, err)
	}

	failCode := res.Evaluation.Tasks[0].Ref.Code
	env.repo.FailUpdateTask = func(task evaluation.Task) error {
		if task.Ref.Code == failCode {
			return fmt.Errorf("injected write failure")
		}
		return nil
	}

	draft := res.Evaluation
	draft.Tasks[0].Weight = 50
	draft.Tasks[1].Weight = 50

	_, err = env.svc.Save(ctx, evaluation.SaveRequest{Draft: draft, Actor: testEvaluator})
	if !errors.Is(err, evaluation.ErrPartialPersistence) {
		t.Fatalf("Save() error = %v, want ErrPartialPersistence", err)
	}

	// the successful write stayed; there is no rollback
	env.repo.FailUpdateTask = nil
	ev, gErr := env.repo.GetEvaluationByEvaluatee(ctx, "emp-1")
	if gErr != nil {
		t.Fatal(gErr)
	}
	for _, task := range ev.Tasks {
		if task.Ref.Code == failCode {
			if task.Weight != 60 {
				t.Errorf("failed task weight = %d, want the old 60", task.Weight)
			}
		} else if task.Weight != 50 {
			t.Errorf("surviving task weight = %d, want 50", task.Weight)
		}
	}
}

func TestServiceSaveDeletesRemovedTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: newTestDraft(), Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("initial Save() = (%+v, %v)", res, err)
	}

	draft := res.Evaluation
	draft.Tasks = draft.Tasks[:1]
	draft.Tasks[0].Weight = 100

	res, err = env.svc.Save(ctx, evaluation.SaveRequest{Draft: draft, Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("Save() = (%+v, %v)", res, err)
	}
	if len(res.Evaluation.Tasks) != 1 {
		t.Fatalf("reloaded evaluation has %d tasks, want 1", len(res.Evaluation.Tasks))
	}
}

// A draft may reference its persisted tasks by code alone. An unchanged
// resubmission must reconcile as a no-op, not archive the tasks.
func TestServiceSaveCodeOnlyRefs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: newTestDraft(), Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("initial Save() = (%+v, %v)", res, err)
	}

	draft := res.Evaluation
	remoteIDs := make(map[string]int)
	for i := range draft.Tasks {
		remoteIDs[draft.Tasks[i].Ref.Code] = draft.Tasks[i].Ref.RemoteID
		draft.Tasks[i].Ref.RemoteID = 0
	}

	res, err = env.svc.Save(ctx, evaluation.SaveRequest{Draft: draft, Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("code-only Save() = (%+v, %v)", res, err)
	}
	for _, rec := range res.Changes {
		if !rec.Empty() {
			t.Errorf("unchanged task %s reported changes %v", rec.TaskKey, rec.Changed)
		}
	}
	if len(res.Evaluation.Tasks) != 2 {
		t.Fatalf("after code-only save the evaluation has %d tasks, want 2", len(res.Evaluation.Tasks))
	}
	for _, task := range res.Evaluation.Tasks {
		if task.Ref.RemoteID != remoteIDs[task.Ref.Code] {
			t.Errorf("task %s was recreated: remote id = %d, want %d",
				task.Ref.Code, task.Ref.RemoteID, remoteIDs[task.Ref.Code])
		}
	}
}

// Tasks submitted without any ref get sequential codes on first save, and an
// identical ref-less resubmission reconciles by title instead of recreating
// the rows.
func TestServiceSaveRefLessTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	refless := func() evaluation.Evaluation {
		draft := newTestDraft()
		for i := range draft.Tasks {
			draft.Tasks[i].Ref = evaluation.TaskRef{}
		}
		return draft
	}

	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: refless(), Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("initial Save() = (%+v, %v)", res, err)
	}
	remoteIDs := make(map[string]int)
	for _, task := range res.Evaluation.Tasks {
		if task.Ref.Code == "" {
			t.Errorf("persisted task %q has no code", task.Title)
		}
		remoteIDs[task.Title] = task.Ref.RemoteID
	}
	notifsBefore, _ := env.notifRepo.ListNotifications(ctx, "emp-1")

	res, err = env.svc.Save(ctx, evaluation.SaveRequest{Draft: refless(), Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("resubmission Save() = (%+v, %v)", res, err)
	}
	for _, rec := range res.Changes {
		if !rec.Empty() {
			t.Errorf("resubmitted task %s reported changes %v", rec.TaskKey, rec.Changed)
		}
	}
	if len(res.Evaluation.Tasks) != 2 {
		t.Fatalf("after resubmission the evaluation has %d tasks, want 2", len(res.Evaluation.Tasks))
	}
	for _, task := range res.Evaluation.Tasks {
		if task.Ref.RemoteID != remoteIDs[task.Title] {
			t.Errorf("task %q was recreated: remote id = %d, want %d",
				task.Title, task.Ref.RemoteID, remoteIDs[task.Title])
		}
	}
	notifsAfter, _ := env.notifRepo.ListNotifications(ctx, "emp-1")
	if len(notifsAfter) != len(notifsBefore) {
		t.Errorf("resubmission created %d notifications", len(notifsAfter)-len(notifsBefore))
	}
}

// Lightly reworking your own latest feedback on the same task is an edit, not
// a duplicate of it. Pasting the same text onto another task is still
// screened (TestServiceSaveWarnsOnDuplicateFeedback).
func TestServiceSaveSelfEditedFeedbackNotDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := newTestDraft()
	draft.Tasks[0].Feedback = goodFeedback
	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: draft, Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("initial Save() = (%+v, %v)", res, err)
	}

	draft = res.Evaluation
	draft.Tasks[0].Feedback = strings.Replace(goodFeedback, "크게 줄었고", "대폭 줄었고", 1)
	res, err = env.svc.Save(ctx, evaluation.SaveRequest{Draft: draft, Actor: testEvaluator})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !res.Saved {
		t.Fatalf("self-edit blocked; warnings: %+v", res.Warnings)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("self-edit warned: %+v", res.Warnings)
	}
	if got := len(res.Evaluation.Tasks[0].FeedbackHistory); got != 2 {
		t.Errorf("feedback history has %d entries, want 2", got)
	}
}

type flakyRepo struct {
	evaluation.Repository
	err error
}

func (r flakyRepo) GetEvaluationByEvaluatee(context.Context, string) (evaluation.Evaluation, error) {
	return evaluation.Evaluation{}, r.err
}

func TestServiceLoad(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Load(ctx, "emp-1"); !errors.Is(err, evaluation.ErrNotFound) {
		t.Fatalf("Load() of unknown evaluatee = %v, want ErrNotFound", err)
	}

	res, err := env.svc.Save(ctx, evaluation.SaveRequest{Draft: newTestDraft(), Actor: testEvaluator})
	if err != nil || !res.Saved {
		t.Fatalf("Save() = (%+v, %v)", res, err)
	}

	ev, err := env.svc.Load(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ev.ID != res.Evaluation.ID {
		t.Errorf("Load() id = %d, want %d", ev.ID, res.Evaluation.ID)
	}
}

func TestServiceLoadFallsBackToCache(t *testing.T) {
	logger := testLogger()
	cache := newFakeCache()
	cache.evs["emp-1"] = evaluation.Evaluation{ID: 9, EvaluateeID: "emp-1", EvaluateeName: "이영희"}

	repo := flakyRepo{err: errors.New("connection refused")}
	svc := evaluation.NewService(repo, nil, cache, nil, nil, testContentRules(), logger)

	ev, err := svc.Load(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("Load() error = %v, want cached fallback", err)
	}
	if ev.ID != 9 {
		t.Errorf("Load() returned id %d, want the cached 9", ev.ID)
	}

	// no cached copy: the transient error surfaces
	if _, err = svc.Load(context.Background(), "emp-2"); err == nil {
		t.Error("Load() with no cached copy returned nil error")
	}

	// not-found is never masked by the cache
	svc = evaluation.NewService(flakyRepo{err: evaluation.ErrNotFound}, nil, cache, nil, nil, testContentRules(), logger)
	if _, err = svc.Load(context.Background(), "emp-1"); !errors.Is(err, evaluation.ErrNotFound) {
		t.Errorf("Load() = %v, want ErrNotFound passthrough", err)
	}
}
