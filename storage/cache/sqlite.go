// Package cache mirrors evaluation snapshots into a local sqlite file so the
// app can keep rendering the last known state when the remote database is
// unreachable. The mirror is best-effort and never authoritative.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/kohlab/pyeongga/core/evaluation"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	evaluatee_id TEXT PRIMARY KEY,
	payload      BLOB NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);`

type LocalCache struct {
	db *sql.DB
}

var _ evaluation.Cache = (*LocalCache)(nil) // interface compliance check

// Open opens (creating if needed) the sqlite mirror at path.
func Open(path string) (*LocalCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening cache db")
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing cache schema")
	}
	return &LocalCache{db: db}, nil
}

func (c *LocalCache) Close() error { return c.db.Close() }

func (c *LocalCache) GetEvaluation(ctx context.Context, evaluateeID string) (evaluation.Evaluation, bool, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE evaluatee_id = ?`, evaluateeID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return evaluation.Evaluation{}, false, nil
		}
		return evaluation.Evaluation{}, false, errors.Wrap(err, "reading cached snapshot")
	}
	var ev evaluation.Evaluation
	if err = json.Unmarshal(payload, &ev); err != nil {
		return evaluation.Evaluation{}, false, errors.Wrap(err, "decoding cached snapshot")
	}
	return ev, true, nil
}

func (c *LocalCache) SetEvaluation(ctx context.Context, ev evaluation.Evaluation) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO snapshots (evaluatee_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (evaluatee_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		ev.EvaluateeID, payload, time.Now().UTC(),
	)
	return errors.Wrap(err, "writing snapshot")
}
