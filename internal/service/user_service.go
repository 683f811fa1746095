package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/service/auth"
	"github.com/1001stories/stories-api/internal/store"
)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
	Role     domain.Role
	Language string
}

// Preferences is a partial update of a user's settings. Nil fields are left
// unchanged.
type Preferences struct {
	Name               *string
	Language           *string
	EmailNotifications *bool
	DigestFrequency    *domain.DigestFrequency
}

// UserService manages accounts: registration, credential checks,
// preferences and the soft-delete and restore workflow.
type UserService struct {
	users     store.UserStore
	deletions store.DeletionStore
	tx        store.Transactor
	verifier  auth.PasswordVerifier
	grace     time.Duration
	logger    *slog.Logger
}

// NewUserService creates a UserService. recoveryGrace is how long a
// soft-deleted account can still be restored.
func NewUserService(
	users store.UserStore,
	deletions store.DeletionStore,
	tx store.Transactor,
	verifier auth.PasswordVerifier,
	recoveryGrace time.Duration,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		deletions: deletions,
		tx:        tx,
		verifier:  verifier,
		grace:     recoveryGrace,
		logger:    componentLogger(logger, "user_service"),
	}
}

// Register creates an account. Administrators cannot self-register.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if in.Role == domain.RoleAdmin {
		return nil, fmt.Errorf("%w: administrator accounts are provisioned, not registered", ErrForbidden)
	}

	user, err := domain.NewUser(in.Email, in.Password, in.Role)
	if err != nil {
		return nil, err
	}
	user.Name = in.Name
	if in.Language != "" {
		user.Language = in.Language
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			log.Debug("registration with existing email")
		} else {
			log.Error("failed to save user", slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)))
	return user, nil
}

// Authenticate checks credentials and returns the active account. Unknown
// emails and wrong passwords both return auth.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user.DeletedAt != nil {
		return nil, ErrAccountDeleted
	}
	return user, nil
}

func (s *UserService) checkCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("password mismatch",
			slog.String("user_id", user.ID.String()))
		return nil, auth.ErrInvalidCredentials
	}
	return user, nil
}

// GetActiveUser returns the user unless the account is soft-deleted.
func (s *UserService) GetActiveUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.DeletedAt != nil {
		return nil, ErrAccountDeleted
	}
	return user, nil
}

// UpdatePreferences applies p to the user's settings.
func (s *UserService) UpdatePreferences(ctx context.Context, id uuid.UUID, p Preferences) (*domain.User, error) {
	var updated *domain.User
	err := s.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		users := s.users.WithTx(tx)

		user, err := users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Name != nil {
			user.Name = *p.Name
		}
		if p.Language != nil {
			user.Language = *p.Language
		}
		if p.EmailNotifications != nil {
			user.EmailNotifications = *p.EmailNotifications
		}
		if p.DigestFrequency != nil {
			if !p.DigestFrequency.IsValid() {
				return domain.ErrInvalidDigestFrequency
			}
			user.DigestFrequency = *p.DigestFrequency
		}
		user.UpdatedAt = time.Now().UTC()

		if err := users.Update(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}
	return updated, nil
}

// DeleteAccount soft-deletes the user and opens a deletion request that
// becomes a hard delete once the recovery deadline passes.
func (s *UserService) DeleteAccount(ctx context.Context, id uuid.UUID) (*domain.DeletionRequest, error) {
	req, err := domain.NewDeletionRequest(id, s.grace)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		deletions := s.deletions.WithTx(tx)

		if _, err := deletions.GetActiveByUser(ctx, id); err == nil {
			return ErrAlreadyDeleted
		} else if !errors.Is(err, store.ErrDeletionRequestNotFound) {
			return err
		}
		if err := deletions.Create(ctx, req); err != nil {
			return err
		}
		return s.users.WithTx(tx).SoftDelete(ctx, id, req.SoftDeletedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete account: %w", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("account soft-deleted",
		slog.String("user_id", id.String()),
		slog.Time("recovery_deadline", req.RecoveryDeadline))
	return req, nil
}

// RestoreAccount verifies the credentials of a soft-deleted account and
// restores it if the recovery deadline has not passed.
func (s *UserService) RestoreAccount(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user.DeletedAt == nil {
		return user, nil
	}

	now := time.Now().UTC()
	err = s.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		deletions := s.deletions.WithTx(tx)

		req, err := deletions.GetActiveByUser(ctx, user.ID)
		if errors.Is(err, store.ErrDeletionRequestNotFound) {
			return ErrNotRecoverable
		}
		if err != nil {
			return err
		}
		if !req.IsRecoverable(now) {
			return ErrNotRecoverable
		}
		if err := deletions.Cancel(ctx, req.ID); err != nil {
			return err
		}
		return s.users.WithTx(tx).Restore(ctx, user.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to restore account: %w", err)
	}

	user.DeletedAt = nil
	logger.FromContextOrDefault(ctx, s.logger).Info("account restored",
		slog.String("user_id", user.ID.String()))
	return user, nil
}
