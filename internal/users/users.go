// Package users provisions the accounts that can log in and checks their
// passwords.
package users

import (
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/satresults/internal/db"
)

// Roles.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var (
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	ErrNotFound           = errors.New("users: not found")
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Row is one provisioning record. Password is plaintext and only required
// for new users.
type Row struct {
	ID       string `json:"id" validate:"required,max=64"`
	Username string `json:"username" validate:"required,max=128"`
	Role     string `json:"role" validate:"omitempty,oneof=student teacher admin"`
	Password string `json:"password,omitempty"`
}

type Repo struct {
	db   *sql.DB
	cost int
}

func NewRepo(conn *sql.DB) *Repo { return &Repo{db: conn, cost: bcrypt.DefaultCost} }

// WithCost sets the bcrypt cost for new hashes.
func (r *Repo) WithCost(cost int) *Repo {
	r.cost = cost
	return r
}

// BulkUpsert inserts or updates all rows in one transaction. An existing user
// keeps its password hash when the row carries no password.
func (r *Repo) BulkUpsert(ctx context.Context, rows []Row) (inserted, updated int, err error) {
	now := time.Now().Unix()
	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, row := range rows {
			role := strings.ToLower(strings.TrimSpace(row.Role))
			if role == "" {
				role = RoleStudent
			}
			if role != RoleStudent && role != RoleTeacher && role != RoleAdmin {
				return errors.Errorf("users: invalid role %q", row.Role)
			}
			var phash string
			if row.Password != "" {
				b, err := bcrypt.GenerateFromPassword([]byte(row.Password), r.cost)
				if err != nil {
					return errors.Wrap(err, "users: hash password")
				}
				phash = string(b)
			}

			exists := true
			if err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=$1`, row.ID).Scan(new(int)); err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					return errors.Wrap(err, "users: lookup")
				}
				exists = false
			}
			switch {
			case exists && phash != "":
				_, err := tx.ExecContext(ctx, `UPDATE users SET username=$1, role=$2, password_hash=$3 WHERE id=$4`,
					row.Username, role, phash, row.ID)
				if err != nil {
					return errors.Wrapf(err, "users: update %s", row.ID)
				}
				updated++
			case exists:
				_, err := tx.ExecContext(ctx, `UPDATE users SET username=$1, role=$2 WHERE id=$3`,
					row.Username, role, row.ID)
				if err != nil {
					return errors.Wrapf(err, "users: update %s", row.ID)
				}
				updated++
			default:
				if phash == "" {
					return errors.Errorf("users: password required for new user %q", row.Username)
				}
				_, err := tx.ExecContext(ctx,
					`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
					row.ID, row.Username, phash, role, now)
				if err != nil {
					return errors.Wrapf(err, "users: insert %s", row.ID)
				}
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

// List returns users ordered by username, optionally filtered by role.
func (r *Repo) List(ctx context.Context, role string) ([]User, error) {
	q := `SELECT id, username, role FROM users`
	var args []any
	if role != "" {
		q += ` WHERE role=$1`
		args = append(args, role)
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY username`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "users: list")
	}
	defer rows.Close()
	out := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role); err != nil {
			return nil, errors.Wrap(err, "users: scan")
		}
		out = append(out, u)
	}
	return out, errors.Wrap(rows.Err(), "users: list")
}

// Authenticate checks a username/password pair against the stored hash.
func (r *Repo) Authenticate(ctx context.Context, username, password string) (User, error) {
	var (
		u     User
		phash string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, role, password_hash FROM users WHERE username=$1`, username).
		Scan(&u.ID, &u.Username, &u.Role, &phash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, errors.Wrap(err, "users: authenticate")
	}
	if bcrypt.CompareHashAndPassword([]byte(phash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword replaces the hash after verifying the old password.
func (r *Repo) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	var phash string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&phash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "users: change password")
	}
	if bcrypt.CompareHashAndPassword([]byte(phash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	b, err := bcrypt.GenerateFromPassword([]byte(newPassword), r.cost)
	if err != nil {
		return errors.Wrap(err, "users: hash password")
	}
	_, err = r.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(b), userID)
	return errors.Wrap(err, "users: change password")
}

// ParseCSV reads rows with an id,username,role header and optional password.
func ParseCSV(in io.Reader) ([]Row, error) {
	cr := csv.NewReader(in)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "users: csv header")
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"id", "username", "role"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.Errorf("users: missing column %q", k)
		}
	}
	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "users: csv")
		}
		row := Row{
			ID:       rec[idx["id"]],
			Username: rec[idx["username"]],
			Role:     strings.ToLower(rec[idx["role"]]),
		}
		if i, ok := idx["password"]; ok {
			row.Password = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
