package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kohlab/pyeongga/core/evaluation"
)

type evaluationRepository struct {
	db *sqlx.DB
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *sqlx.DB) *evaluationRepository {
	return &evaluationRepository{db: db}
}

type (
	evaluationRow struct {
		ID             int       `db:"id"`
		EvaluateeID    string    `db:"evaluatee_id"`
		EvaluateeName  string    `db:"evaluatee_name"`
		Position       string    `db:"position"`
		Department     string    `db:"department"`
		EvaluateeEmail string    `db:"evaluatee_email"`
		GrowthLevel    int       `db:"growth_level"`
		Status         string    `db:"status"`
		LastModified   time.Time `db:"last_modified"`
	}

	taskRow struct {
		ID          int           `db:"id"`
		Code        string        `db:"code"`
		Title       string        `db:"title"`
		Description string        `db:"description"`
		Weight      int           `db:"weight"`
		StartDate   string        `db:"start_date"`
		EndDate     string        `db:"end_date"`
		Method      string        `db:"method"`
		Scope       string        `db:"scope"`
		Score       sql.NullInt64 `db:"score"`
		Feedback    string        `db:"feedback"`
	}

	feedbackRow struct {
		ID            int       `db:"id"`
		TaskKey       string    `db:"task_key"`
		Content       string    `db:"content"`
		EvaluatorID   string    `db:"evaluator_id"`
		EvaluatorName string    `db:"evaluator_name"`
		CreatedAt     time.Time `db:"created_at"`
	}
)

func (r evaluationRow) unrow() evaluation.Evaluation {
	return evaluation.Evaluation{
		ID:             r.ID,
		EvaluateeID:    r.EvaluateeID,
		EvaluateeName:  r.EvaluateeName,
		Position:       r.Position,
		Department:     r.Department,
		EvaluateeEmail: r.EvaluateeEmail,
		GrowthLevel:    r.GrowthLevel,
		Status:         evaluation.Status(r.Status),
		LastModified:   r.LastModified.UTC(),
	}
}

func (r taskRow) unrow() evaluation.Task {
	t := evaluation.Task{
		Ref:         evaluation.TaskRef{RemoteID: r.ID, Code: r.Code},
		Title:       r.Title,
		Description: r.Description,
		Weight:      r.Weight,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Method:      evaluation.ContributionMethod(r.Method),
		Scope:       evaluation.ContributionScope(r.Scope),
		Feedback:    r.Feedback,
	}
	if r.Score.Valid {
		score := int(r.Score.Int64)
		t.Score = &score
	}
	return t
}

func (repo *evaluationRepository) GetEvaluationByEvaluatee(ctx context.Context, evaluateeID string) (evaluation.Evaluation, error) {
	var evRow evaluationRow
	err := repo.db.GetContext(ctx, &evRow, `
		SELECT id, evaluatee_id, evaluatee_name, position, department, evaluatee_email,
		       growth_level, status, last_modified
		FROM evaluation
		WHERE evaluatee_id = $1`, evaluateeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return evaluation.Evaluation{}, evaluation.ErrNotFound
		}
		return evaluation.Evaluation{}, errors.Wrap(err, "getting evaluation")
	}
	ev := evRow.unrow()

	var taskRows []taskRow
	err = repo.db.SelectContext(ctx, &taskRows, `
		SELECT id, code, title, description, weight, start_date, end_date,
		       method, scope, score, feedback
		FROM task
		WHERE evaluation_id = $1 AND deleted_at IS NULL
		ORDER BY code`, ev.ID)
	if err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "getting tasks")
	}

	var fbRows []feedbackRow
	err = repo.db.SelectContext(ctx, &fbRows, `
		SELECT id, task_key, content, evaluator_id, evaluator_name, created_at
		FROM feedback_entry
		WHERE evaluation_id = $1
		ORDER BY created_at DESC`, ev.ID)
	if err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "getting feedback history")
	}

	historyByKey := make(map[string][]evaluation.FeedbackEntry, len(fbRows))
	for _, fr := range fbRows {
		historyByKey[fr.TaskKey] = append(historyByKey[fr.TaskKey], evaluation.FeedbackEntry{
			ID:            fr.ID,
			Content:       fr.Content,
			Date:          fr.CreatedAt.UTC(),
			EvaluatorID:   fr.EvaluatorID,
			EvaluatorName: fr.EvaluatorName,
		})
	}

	ev.Tasks = make([]evaluation.Task, 0, len(taskRows))
	for _, tr := range taskRows {
		t := tr.unrow()
		t.FeedbackHistory = historyByKey[t.Ref.Key()]
		ev.Tasks = append(ev.Tasks, t)
	}
	return ev, nil
}

func (repo *evaluationRepository) CreateEvaluation(ctx context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	err := repo.db.QueryRowxContext(ctx, `
		INSERT INTO evaluation (evaluatee_id, evaluatee_name, position, department,
		                        evaluatee_email, growth_level, status, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		ev.EvaluateeID, ev.EvaluateeName, ev.Position, ev.Department,
		ev.EvaluateeEmail, ev.GrowthLevel, string(ev.Status), ev.LastModified.UTC(),
	).Scan(&ev.ID)
	if err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "creating evaluation")
	}
	return ev, nil
}

func (repo *evaluationRepository) CreateTask(ctx context.Context, evaluationID int, t evaluation.Task) (evaluation.Task, error) {
	err := repo.db.QueryRowxContext(ctx, `
		INSERT INTO task (evaluation_id, code, title, description, weight,
		                  start_date, end_date, method, scope, score, feedback)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		evaluationID, t.Ref.Code, t.Title, t.Description, t.Weight,
		t.StartDate, t.EndDate, string(t.Method), string(t.Scope), scoreArg(t.Score), t.Feedback,
	).Scan(&t.Ref.RemoteID)
	if err != nil {
		return evaluation.Task{}, errors.Wrap(err, "creating task")
	}
	return t, nil
}

func (repo *evaluationRepository) UpdateTask(ctx context.Context, evaluationID int, t evaluation.Task) (evaluation.Task, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE task
		SET title = $1, description = $2, weight = $3, start_date = $4, end_date = $5,
		    method = $6, scope = $7, score = $8, feedback = $9
		WHERE id = $10 AND evaluation_id = $11 AND deleted_at IS NULL`,
		t.Title, t.Description, t.Weight, t.StartDate, t.EndDate,
		string(t.Method), string(t.Scope), scoreArg(t.Score), t.Feedback,
		t.Ref.RemoteID, evaluationID,
	)
	if err != nil {
		return evaluation.Task{}, errors.Wrap(err, "updating task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return evaluation.Task{}, evaluation.ErrNotFound
	}
	return t, nil
}

func (repo *evaluationRepository) DeleteTask(ctx context.Context, evaluationID, remoteID int) error {
	_, err := repo.db.ExecContext(ctx, `
		UPDATE task SET deleted_at = now()
		WHERE id = $1 AND evaluation_id = $2 AND deleted_at IS NULL`,
		remoteID, evaluationID,
	)
	return errors.Wrap(err, "deleting task")
}

func (repo *evaluationRepository) AppendFeedback(ctx context.Context, evaluationID int, taskKey string, entry evaluation.FeedbackEntry) (evaluation.FeedbackEntry, error) {
	err := repo.db.QueryRowxContext(ctx, `
		INSERT INTO feedback_entry (evaluation_id, task_key, content, evaluator_id, evaluator_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		evaluationID, taskKey, entry.Content, entry.EvaluatorID, entry.EvaluatorName, entry.Date.UTC(),
	).Scan(&entry.ID)
	if err != nil {
		return evaluation.FeedbackEntry{}, errors.Wrap(err, "appending feedback entry")
	}
	return entry, nil
}

func (repo *evaluationRepository) UpdateEvaluationStatus(ctx context.Context, evaluationID int, status evaluation.Status, lastModified time.Time) error {
	_, err := repo.db.ExecContext(ctx, `
		UPDATE evaluation SET status = $1, last_modified = $2 WHERE id = $3`,
		string(status), lastModified.UTC(), evaluationID,
	)
	return errors.Wrap(err, "updating evaluation status")
}

func scoreArg(score *int) interface{} {
	if score == nil {
		return nil
	}
	return *score
}
