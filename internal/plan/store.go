package plan

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/satresults/internal/grading"
)

type MemoryStore struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{plans: map[string]Plan{}} }

func (m *MemoryStore) Get(_ context.Context, userID string) (Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[userID]
	if !ok {
		return Plan{}, ErrNotFound
	}
	return copyPlan(p), nil
}

func (m *MemoryStore) Put(_ context.Context, p Plan) error {
	m.mu.Lock()
	m.plans[p.UserID] = copyPlan(p)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.plans, userID)
	m.mu.Unlock()
	return nil
}

func copyPlan(p Plan) Plan {
	p.Courses = append([]grading.CourseRecord(nil), p.Courses...)
	if p.TargetCGPA != nil {
		t := *p.TargetCGPA
		p.TargetCGPA = &t
	}
	return p
}

// SQLStore keeps one row per user in course_plans with the courses as JSON.
type SQLStore struct{ db *sql.DB }

func NewSQLStore(conn *sql.DB) *SQLStore { return &SQLStore{db: conn} }

func (s *SQLStore) Get(ctx context.Context, userID string) (Plan, error) {
	var (
		p      = Plan{UserID: userID}
		target sql.NullFloat64
		cj     string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT target_cgpa, courses_json, updated_at FROM course_plans WHERE user_id=$1`, userID).
		Scan(&target, &cj, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, ErrNotFound
	}
	if err != nil {
		return Plan{}, errors.Wrap(err, "plan: get")
	}
	if target.Valid {
		p.TargetCGPA = &target.Float64
	}
	if err := json.Unmarshal([]byte(cj), &p.Courses); err != nil {
		return Plan{}, errors.Wrap(err, "plan: decode courses")
	}
	return p, nil
}

func (s *SQLStore) Put(ctx context.Context, p Plan) error {
	cj, err := json.Marshal(p.Courses)
	if err != nil {
		return errors.Wrap(err, "plan: encode courses")
	}
	var target sql.NullFloat64
	if p.TargetCGPA != nil {
		target = sql.NullFloat64{Float64: *p.TargetCGPA, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO course_plans (user_id, target_cgpa, courses_json, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id) DO UPDATE SET target_cgpa=EXCLUDED.target_cgpa,
			courses_json=EXCLUDED.courses_json, updated_at=EXCLUDED.updated_at`,
		p.UserID, target, string(cj), p.UpdatedAt)
	return errors.Wrap(err, "plan: put")
}

func (s *SQLStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM course_plans WHERE user_id=$1`, userID)
	return errors.Wrap(err, "plan: delete")
}

// RedisStore keeps session-scoped plans that expire after ttl of inactivity.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: "satresults:plan:"}
}

func (s *RedisStore) key(userID string) string { return s.prefix + userID }

func (s *RedisStore) Get(ctx context.Context, userID string) (Plan, error) {
	val, err := s.rdb.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Plan{}, ErrNotFound
	}
	if err != nil {
		return Plan{}, errors.Wrap(err, "plan: redis get")
	}
	var p Plan
	if err := json.Unmarshal(val, &p); err != nil {
		return Plan{}, errors.Wrap(err, "plan: decode")
	}
	return p, nil
}

func (s *RedisStore) Put(ctx context.Context, p Plan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "plan: encode")
	}
	return errors.Wrap(s.rdb.Set(ctx, s.key(p.UserID), data, s.ttl).Err(), "plan: redis set")
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return errors.Wrap(s.rdb.Del(ctx, s.key(userID)).Err(), "plan: redis del")
}
