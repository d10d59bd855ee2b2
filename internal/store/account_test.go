package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/librarium/usermanagement/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountRowColumns = []string{"id", "name", "email", "role", "secret_hash", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*AccountRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewAccountRepository(db), mock
}

func TestFindByEmail_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(accountRowColumns).
		AddRow("id-1", "Ann", "ann@x.com", "student", "$2a$hash", now, now)
	mock.ExpectQuery(`(?s)SELECT .* FROM accounts\s+WHERE email = \$1`).
		WithArgs("ann@x.com").
		WillReturnRows(rows)

	got, err := repo.FindByEmail(context.Background(), "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, types.RoleStudent, got.Role)
	assert.Equal(t, "$2a$hash", got.SecretHash)
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM accounts\s+WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindByID_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM accounts`).
		WithArgs("id-1").
		WillReturnError(errors.New("db down"))

	_, err := repo.FindByID(context.Background(), "id-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestInsert_AssignsIDAndTimestamps(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)INSERT INTO accounts \(id, name, email, role, secret_hash, created_at, updated_at\)\s+VALUES`).
		WithArgs(sqlmock.AnyArg(), "Ann", "ann@x.com", "student", "$2a$hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Insert(context.Background(), types.Account{
		Name:       "Ann",
		Email:      "ann@x.com",
		Role:       types.RoleStudent,
		SecretHash: "$2a$hash",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestInsert_UniqueViolation(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_email_key"})

	_, err := repo.Insert(context.Background(), types.Account{
		Name:       "Ann",
		Email:      "ann@x.com",
		Role:       types.RoleStudent,
		SecretHash: "$2a$hash",
	})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestUpdateByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Now().Add(-time.Hour).UTC()

	mock.ExpectQuery(`(?s)UPDATE accounts\s+SET name = \$1,.*WHERE id = \$5\s+RETURNING role, created_at`).
		WithArgs("Ann B", "ann@x.com", "$2a$new", sqlmock.AnyArg(), "id-1").
		WillReturnRows(sqlmock.NewRows([]string{"role", "created_at"}).AddRow("librarian", created))

	got, err := repo.UpdateByID(context.Background(), "id-1", types.Account{
		Name:       "Ann B",
		Email:      "ann@x.com",
		SecretHash: "$2a$new",
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, types.RoleLibrarian, got.Role)
	assert.Equal(t, created, got.CreatedAt)
}

func TestUpdateByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE accounts`).WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateByID(context.Background(), "missing", types.Account{Name: "x", Email: "x@x.com", SecretHash: "h"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateByID_DuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE accounts`).WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.UpdateByID(context.Background(), "id-1", types.Account{Name: "x", Email: "taken@x.com", SecretHash: "h"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestDeleteByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM accounts WHERE id = \$1`).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM accounts WHERE id = \$1`).
		WithArgs("id-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteByID(context.Background(), "id-1"))
	require.ErrorIs(t, repo.DeleteByID(context.Background(), "id-2"), ErrNotFound)
}
