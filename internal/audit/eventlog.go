// Package audit appends domain events to the event_log table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Event types.
const (
	MarksSaved      = "MarksSaved"
	MarksSubmitted  = "MarksSubmitted"
	FinalsComputed  = "FinalsComputed"
	CriteriaUpdated = "CriteriaUpdated"
)

type Event struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	Actor     string `json:"actor"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// Recorder is what handlers depend on; Nop discards.
type Recorder interface {
	Record(ctx context.Context, typ, key, actor string, data any) error
}

type Nop struct{}

func (Nop) Record(context.Context, string, string, string, any) error { return nil }

type EventRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db, now: time.Now} }

func (r *EventRepo) Record(ctx context.Context, typ, key, actor string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "audit: encode")
	}
	return r.Append(ctx, Event{Type: typ, Key: key, Actor: actor, DataJSON: string(buf)})
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, actor, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.Type, e.Key, e.Actor, e.DataJSON, r.now().Unix())
	return errors.Wrap(err, "audit: append")
}

// Since returns up to limit events with seq greater than after, oldest first.
func (r *EventRepo) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, typ, key, actor, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, after, limit)
	if err != nil {
		return nil, errors.Wrap(err, "audit: query")
	}
	defer rows.Close()
	out := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.Type, &e.Key, &e.Actor, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "audit: scan")
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "audit: query")
}
