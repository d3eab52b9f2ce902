package users

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/satresults/internal/db"
)

func newTestRepo(t *testing.T, name string) *Repo {
	conn, err := db.Open(context.Background(), db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewRepo(conn).WithCost(bcrypt.MinCost)
}

func TestBulkUpsert_AndAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "users_upsert")

	ins, upd, err := repo.BulkUpsert(ctx, []Row{
		{ID: "t1", Username: "ms.rao", Role: "Teacher", Password: "secret"},
		{ID: "s1", Username: "arun", Password: "pw"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ins)
	assert.Equal(t, 0, upd)

	u, err := repo.Authenticate(ctx, "arun", "pw")
	require.NoError(t, err)
	assert.Equal(t, User{ID: "s1", Username: "arun", Role: RoleStudent}, u)

	_, err = repo.Authenticate(ctx, "arun", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = repo.Authenticate(ctx, "ghost", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// update without password keeps the old hash
	ins, upd, err = repo.BulkUpsert(ctx, []Row{{ID: "s1", Username: "arun.k", Role: "student"}})
	require.NoError(t, err)
	assert.Equal(t, 0, ins)
	assert.Equal(t, 1, upd)
	_, err = repo.Authenticate(ctx, "arun.k", "pw")
	assert.NoError(t, err)

	list, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "arun.k", list[0].Username)

	teachers, err := repo.List(ctx, RoleTeacher)
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, "t1", teachers[0].ID)
}

func TestBulkUpsert_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "users_rollback")

	_, _, err := repo.BulkUpsert(ctx, []Row{
		{ID: "s1", Username: "arun", Password: "pw"},
		{ID: "s2", Username: "bea"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password required")

	_, _, err = repo.BulkUpsert(ctx, []Row{{ID: "x", Username: "x", Role: "dean", Password: "pw"}})
	assert.Error(t, err)

	list, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "users_password")
	_, _, err := repo.BulkUpsert(ctx, []Row{{ID: "s1", Username: "arun", Password: "old"}})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.ChangePassword(ctx, "s1", "wrong", "new"), ErrInvalidCredentials)
	assert.ErrorIs(t, repo.ChangePassword(ctx, "nobody", "old", "new"), ErrNotFound)
	require.NoError(t, repo.ChangePassword(ctx, "s1", "old", "new"))

	_, err = repo.Authenticate(ctx, "arun", "new")
	assert.NoError(t, err)
}

func TestParseCSV(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("ID, Username, Role, Password\ns1, arun, STUDENT, pw\nt1, rao, teacher,\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{ID: "s1", Username: "arun", Role: "student", Password: "pw"}, rows[0])
	assert.Equal(t, "", rows[1].Password)

	_, err = ParseCSV(strings.NewReader("id,username\ns1,arun\n"))
	assert.Error(t, err)
}
