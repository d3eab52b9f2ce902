package marks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mind-engage/satresults/internal/db"
	"github.com/mind-engage/satresults/internal/grading"
)

// SQLStore persists marks in mark_entries. The same SQL runs on sqlite and
// postgres.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(conn *sql.DB) *SQLStore {
	return &SQLStore{db: conn, now: time.Now}
}

const entryColumns = `student_id,subject_id,component,value,values_json,grade,submitted,updated_at`

func (s *SQLStore) Get(ctx context.Context, k Key) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM mark_entries
		WHERE student_id=$1 AND subject_id=$2 AND component=$3`,
		k.StudentID, k.SubjectID, string(k.Component))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, errors.Wrap(err, "marks: get entry")
	}
	return e, nil
}

// Upsert writes all entries in one transaction. A conflicting row that is
// already submitted is not updated; its key is reported as locked.
func (s *SQLStore) Upsert(ctx context.Context, entries []Entry) (UpsertResult, error) {
	var res UpsertResult
	ts := s.now().Unix()
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, e := range entries {
			vj := ""
			if e.Values != nil {
				buf, err := json.Marshal(e.Values)
				if err != nil {
					return errors.Wrap(err, "marks: encode values")
				}
				vj = string(buf)
			}
			r, err := tx.ExecContext(ctx, `INSERT INTO mark_entries (`+entryColumns+`)
				VALUES ($1,$2,$3,$4,$5,$6,0,$7)
				ON CONFLICT (student_id, subject_id, component) DO UPDATE
				SET value=EXCLUDED.value, values_json=EXCLUDED.values_json, grade=EXCLUDED.grade, updated_at=EXCLUDED.updated_at
				WHERE mark_entries.submitted = 0`,
				e.StudentID, e.SubjectID, string(e.Component), e.Value, vj, string(e.Grade), ts)
			if err != nil {
				return errors.Wrapf(err, "marks: upsert %s/%s/%s", e.StudentID, e.SubjectID, e.Component)
			}
			n, err := r.RowsAffected()
			if err != nil {
				return errors.Wrap(err, "marks: rows affected")
			}
			if n == 0 {
				res.Locked = append(res.Locked, e.Key())
				continue
			}
			res.Saved++
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return res, nil
}

func (s *SQLStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	add("subject_id", f.SubjectID)
	add("student_id", f.StudentID)
	add("component", string(f.Component))

	q := `SELECT ` + entryColumns + ` FROM mark_entries`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY subject_id, student_id, component`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "marks: list entries")
	}
	defer rows.Close()
	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "marks: scan entry")
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "marks: list entries")
}

func (s *SQLStore) Submit(ctx context.Context, subjectID string, c Component) (int, error) {
	r, err := s.db.ExecContext(ctx, `UPDATE mark_entries SET submitted=1, updated_at=$1
		WHERE subject_id=$2 AND component=$3 AND submitted=0`,
		s.now().Unix(), subjectID, string(c))
	if err != nil {
		return 0, errors.Wrap(err, "marks: submit")
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "marks: submit")
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e         Entry
		component string
		vj        string
		grade     string
		submitted int
	)
	if err := sc.Scan(&e.StudentID, &e.SubjectID, &component, &e.Value, &vj, &grade, &submitted, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	e.Component = Component(component)
	e.Grade = grading.Grade(grade)
	e.Submitted = submitted != 0
	if vj != "" {
		if err := json.Unmarshal([]byte(vj), &e.Values); err != nil {
			return Entry{}, errors.Wrap(err, "decode values")
		}
	}
	return e, nil
}

// SQLCriteriaStore persists named criteria in mark_criteria.
type SQLCriteriaStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLCriteriaStore(conn *sql.DB) *SQLCriteriaStore {
	return &SQLCriteriaStore{db: conn, now: time.Now}
}

func (s *SQLCriteriaStore) GetCriteria(ctx context.Context, name string) (Criteria, error) {
	var c Criteria
	err := s.db.QueryRowContext(ctx,
		`SELECT internal_weight, external_weight, formula FROM mark_criteria WHERE name=$1`, name).
		Scan(&c.InternalWeight, &c.ExternalWeight, &c.Formula)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultCriteria(), nil
	}
	if err != nil {
		return Criteria{}, errors.Wrapf(err, "marks: get criteria %q", name)
	}
	return c, nil
}

func (s *SQLCriteriaStore) PutCriteria(ctx context.Context, name string, c Criteria) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO mark_criteria (name, internal_weight, external_weight, formula, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET internal_weight=EXCLUDED.internal_weight,
			external_weight=EXCLUDED.external_weight, formula=EXCLUDED.formula, updated_at=EXCLUDED.updated_at`,
		name, c.InternalWeight, c.ExternalWeight, c.Formula, s.now().Unix())
	return errors.Wrapf(err, "marks: put criteria %q", name)
}
