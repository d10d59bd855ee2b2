package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/librarium/usermanagement/types"
)

const accountColumns = `id, name, email, role, secret_hash, created_at, updated_at`

// AccountRepository handles persistence for accounts.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// Insert stores a new account, assigning its ID and timestamps. A second
// account with the same email yields ErrDuplicate.
func (r *AccountRepository) Insert(ctx context.Context, account types.Account) (types.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	const query = `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		account.ID,
		account.Name,
		account.Email,
		string(account.Role),
		account.SecretHash,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Account{}, ErrDuplicate
		}
		return types.Account{}, err
	}
	return account, nil
}

// UpdateByID overwrites the mutable fields of the account with the given ID.
func (r *AccountRepository) UpdateByID(ctx context.Context, id string, account types.Account) (types.Account, error) {
	account.ID = id
	account.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE accounts
		SET name = $1,
			email = $2,
			secret_hash = $3,
			updated_at = $4
		WHERE id = $5
		RETURNING role, created_at`
	var role string
	err := r.db.QueryRowContext(
		ctx,
		query,
		account.Name,
		account.Email,
		account.SecretHash,
		account.UpdatedAt,
		account.ID,
	).Scan(&role, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return types.Account{}, ErrDuplicate
		}
		return types.Account{}, err
	}
	account.Role = types.Role(role)
	return account, nil
}

func (r *AccountRepository) DeleteByID(ctx context.Context, id string) error {
	const query = `DELETE FROM accounts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepository) scanOne(row *sql.Row) (types.Account, error) {
	var (
		account types.Account
		role    string
	)
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&role,
		&account.SecretHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	account.Role = types.Role(role)
	return account, nil
}
