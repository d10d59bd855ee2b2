package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/librarium/usermanagement/internal/auth"
	"github.com/librarium/usermanagement/types"
)

// dummySecret is hashed once so logins for unknown emails cost one bcrypt
// comparison, like logins for known ones.
const dummySecret = "library-dummy-secret"

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (types.Account, error)
	FindByEmail(ctx context.Context, email string) (types.Account, error)
	Insert(ctx context.Context, account types.Account) (types.Account, error)
	UpdateByID(ctx context.Context, id string, account types.Account) (types.Account, error)
	DeleteByID(ctx context.Context, id string) error
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

type TokenIssuer interface {
	Issue(accountID string, role types.Role) (string, time.Time, error)
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Name   string     `json:"name" validate:"required"`
	Email  string     `json:"email" validate:"required,email"`
	Secret string     `json:"secret" validate:"required"`
	Role   types.Role `json:"role" validate:"required,oneof=student librarian admin"`
}

type LoginInput struct {
	Email  string `json:"email" validate:"required"`
	Secret string `json:"secret" validate:"required"`
}

// ProfilePatch carries the fields to change; nil fields are left untouched.
type ProfilePatch struct {
	Name   *string
	Email  *string
	Secret *string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   types.Account
}

// AccountService encapsulates account use-cases.
type AccountService struct {
	repo      AccountRepository
	hasher    PasswordHasher
	tokens    TokenIssuer
	policy    auth.DeletePolicy
	events    EventPublisher
	logger    *slog.Logger
	validate  *validator.Validate
	dummyHash string
}

// NewAccountService wires the service. events may be nil to disable account
// events; a nil logger falls back to slog.Default().
func NewAccountService(
	repo AccountRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	policy auth.DeletePolicy,
	events EventPublisher,
	logger *slog.Logger,
) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = auth.SelfOnly
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(field.Name)
		}
		return name
	})

	dummyHash, _ := hasher.Hash(dummySecret)

	return &AccountService{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		policy:    policy,
		events:    events,
		logger:    logger,
		validate:  validate,
		dummyHash: dummyHash,
	}
}

// Register creates a new account. The returned account never carries the
// plaintext secret.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (types.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := s.validateStruct(in); err != nil {
		return types.Account{}, err
	}
	if err := checkSecretLength(in.Secret); err != nil {
		return types.Account{}, err
	}

	_, err := s.repo.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return types.Account{}, ErrDuplicateAccount
	case !errors.Is(storeError(err), ErrNotFound):
		return types.Account{}, s.logStoreError(ctx, "find account by email", err)
	}

	hash, err := s.hasher.Hash(in.Secret)
	if err != nil {
		return types.Account{}, hashError(err)
	}

	account, err := s.repo.Insert(ctx, types.Account{
		Name:       in.Name,
		Email:      in.Email,
		Role:       in.Role,
		SecretHash: hash,
	})
	if err != nil {
		mapped := storeError(err)
		if errors.Is(mapped, ErrDuplicateAccount) {
			return types.Account{}, ErrDuplicateAccount
		}
		return types.Account{}, s.logStoreError(ctx, "insert account", err)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
		slog.String("role", string(account.Role)),
	)
	s.publish(ctx, AccountEvent{
		Type:       EventAccountRegistered,
		AccountID:  account.ID,
		Email:      account.Email,
		Name:       account.Name,
		Role:       account.Role,
		OccurredAt: account.CreatedAt,
	})
	return account, nil
}

// Login verifies credentials and issues a session token. Unknown emails and
// wrong secrets both return ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validateStruct(in); err != nil {
		return LoginResult{}, err
	}

	account, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(storeError(err), ErrNotFound) {
			_, _ = s.hasher.Verify(in.Secret, s.dummyHash)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, s.logStoreError(ctx, "find account by email", err)
	}

	ok, err := s.hasher.Verify(in.Secret, account.SecretHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored secret hash is unreadable",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
		return LoginResult{}, fmt.Errorf("verify secret: %w", err)
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	return LoginResult{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

// GetProfile returns the account of the verified caller.
func (s *AccountService) GetProfile(ctx context.Context, accountID string) (types.Account, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(storeError(err), ErrNotFound) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, s.logStoreError(ctx, "find account by id", err)
	}
	return account, nil
}

// UpdateProfile applies patch to the verified caller's account. A new secret
// is re-hashed before it is stored; the role cannot be changed here.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, patch ProfilePatch) (types.Account, error) {
	if patch.Name == nil && patch.Email == nil && patch.Secret == nil {
		return types.Account{}, validationError("no fields to update")
	}

	var name, email string
	if patch.Name != nil {
		name = strings.TrimSpace(*patch.Name)
		if name == "" {
			return types.Account{}, validationError("name must not be empty")
		}
	}
	if patch.Email != nil {
		email = normalizeEmail(*patch.Email)
		if err := s.validate.Var(email, "required,email"); err != nil {
			return types.Account{}, validationError("email must be a valid email address")
		}
	}
	if patch.Secret != nil {
		if *patch.Secret == "" {
			return types.Account{}, validationError("secret must not be empty")
		}
		if err := checkSecretLength(*patch.Secret); err != nil {
			return types.Account{}, err
		}
	}

	account, err := s.GetProfile(ctx, accountID)
	if err != nil {
		return types.Account{}, err
	}

	if patch.Name != nil {
		account.Name = name
	}
	if patch.Email != nil && email != account.Email {
		existing, err := s.repo.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != account.ID:
			return types.Account{}, ErrDuplicateAccount
		case err != nil && !errors.Is(storeError(err), ErrNotFound):
			return types.Account{}, s.logStoreError(ctx, "find account by email", err)
		}
		account.Email = email
	}
	if patch.Secret != nil {
		hash, err := s.hasher.Hash(*patch.Secret)
		if err != nil {
			return types.Account{}, hashError(err)
		}
		account.SecretHash = hash
	}

	updated, err := s.repo.UpdateByID(ctx, account.ID, account)
	if err != nil {
		mapped := storeError(err)
		if errors.Is(mapped, ErrNotFound) || errors.Is(mapped, ErrDuplicateAccount) {
			return types.Account{}, mapped
		}
		return types.Account{}, s.logStoreError(ctx, "update account", err)
	}
	return updated, nil
}

// DeleteAccount removes targetID if the delete policy allows actor to.
func (s *AccountService) DeleteAccount(ctx context.Context, actor auth.Identity, targetID string) error {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return validationError("account id is required")
	}
	if !s.policy.CanDelete(actor, targetID) {
		s.logger.WarnContext(ctx, "account deletion denied",
			slog.String("actor_id", actor.AccountID),
			slog.String("actor_role", string(actor.Role)),
			slog.String("target_id", targetID),
		)
		return ErrForbidden
	}

	if err := s.repo.DeleteByID(ctx, targetID); err != nil {
		if errors.Is(storeError(err), ErrNotFound) {
			return ErrNotFound
		}
		return s.logStoreError(ctx, "delete account", err)
	}

	s.logger.InfoContext(ctx, "account deleted",
		slog.String("actor_id", actor.AccountID),
		slog.String("target_id", targetID),
	)
	s.publish(ctx, AccountEvent{
		Type:       EventAccountDeleted,
		AccountID:  targetID,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

func (s *AccountService) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return validationError("invalid request")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return validationError("%s is required", fe.Field())
	case "email":
		return validationError("%s must be a valid email address", fe.Field())
	case "oneof":
		return validationError("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return validationError("%s is invalid", fe.Field())
	}
}

func (s *AccountService) logStoreError(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, op+" failed", slog.Any("error", err))
	return storeError(err)
}

// checkSecretLength rejects secrets bcrypt would refuse to hash. The limit is
// in bytes, so multi-byte characters count more than once.
func checkSecretLength(secret string) error {
	if len(secret) > auth.MaxSecretBytes {
		return validationError("secret must be at most %d bytes", auth.MaxSecretBytes)
	}
	return nil
}

func hashError(err error) error {
	if errors.Is(err, auth.ErrSecretTooLong) || errors.Is(err, auth.ErrEmptySecret) {
		return validationError("%s", err.Error())
	}
	return fmt.Errorf("hash secret: %w", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
