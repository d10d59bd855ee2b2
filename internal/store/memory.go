package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/librarium/usermanagement/types"
)

// MemoryAccountRepository keeps accounts in process memory. It enforces the
// same email uniqueness as the accounts table and is safe for concurrent use.
type MemoryAccountRepository struct {
	mu      sync.RWMutex
	byID    map[string]types.Account
	byEmail map[string]string
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		byID:    make(map[string]types.Account),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryAccountRepository) FindByID(ctx context.Context, id string) (types.Account, error) {
	if err := ctx.Err(); err != nil {
		return types.Account{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return types.Account{}, ErrNotFound
	}
	return account, nil
}

func (r *MemoryAccountRepository) FindByEmail(ctx context.Context, email string) (types.Account, error) {
	if err := ctx.Err(); err != nil {
		return types.Account{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return types.Account{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryAccountRepository) Insert(ctx context.Context, account types.Account) (types.Account, error) {
	if err := ctx.Err(); err != nil {
		return types.Account{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[account.Email]; taken {
		return types.Account{}, ErrDuplicate
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	r.byID[account.ID] = account
	r.byEmail[account.Email] = account.ID
	return account, nil
}

func (r *MemoryAccountRepository) UpdateByID(ctx context.Context, id string, account types.Account) (types.Account, error) {
	if err := ctx.Err(); err != nil {
		return types.Account{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[id]
	if !ok {
		return types.Account{}, ErrNotFound
	}
	if owner, taken := r.byEmail[account.Email]; taken && owner != id {
		return types.Account{}, ErrDuplicate
	}

	delete(r.byEmail, current.Email)
	current.Name = account.Name
	current.Email = account.Email
	current.SecretHash = account.SecretHash
	current.UpdatedAt = time.Now().UTC()

	r.byID[id] = current
	r.byEmail[current.Email] = id
	return current, nil
}

func (r *MemoryAccountRepository) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, account.Email)
	return nil
}

// Len returns the number of stored accounts.
func (r *MemoryAccountRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
