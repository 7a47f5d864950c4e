package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskflow/taskflow/internal/activity"
	"github.com/taskflow/taskflow/internal/apperr"
	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/repository"
)

var (
	errEmailRegistered   = apperr.Conflict("Email already registered")
	errEmailInUse        = apperr.Conflict("Email in use")
	errInvalidCredential = apperr.Unauthenticated("Invalid credentials")
	errAccountInactive   = apperr.Unauthenticated("Account deactivated")
	errWrongPassword     = apperr.Unauthenticated("Current password incorrect")
	errUserNotFound      = apperr.NotFound("User not found")
)

// AuthService registers users, logs them in and manages their own account.
type AuthService struct {
	users   UserStore
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenService
	events  EventPublisher
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, hasher *auth.PasswordHasher, tokens *auth.TokenService, events EventPublisher, recorder metrics.Recorder, logger *slog.Logger) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if events == nil {
		events = activity.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		events:  events,
		metrics: recorder,
		logger:  logger.With("component", "service.auth"),
	}
}

// AuthResult is a signed token plus the user it was issued for.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// RegisterInput defines input for registration. Role is only honoured
// when the caller is an active admin.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// Register creates a user and issues their first token. caller may be nil.
func (s *AuthService) Register(ctx context.Context, caller *model.User, input RegisterInput) (*AuthResult, error) {
	email := model.NormalizeEmail(input.Email)

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, errEmailRegistered
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           model.NewID(),
		Name:         input.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         auth.ResolveRegistrationRole(caller, input.Role),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, errEmailRegistered
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.metrics.IncUserRegistered()
	publish(ctx, s.events, model.ActivityUserRegistered, callerID(caller), user.ID, string(user.Role))
	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
		slog.String("registered_by", callerID(caller)),
	)

	return s.issue(user)
}

// LoginInput defines input for login.
type LoginInput struct {
	Email    string
	Password string
}

// Login checks credentials. Unknown emails and wrong passwords fail the
// same way, and unknown emails still spend one hash verification. The
// active flag is only revealed after a correct password.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("load user: %w", err)
		}
		s.hasher.VerifyDummy(ctx, input.Password)
		s.metrics.IncLogin(metrics.LoginInvalidCredentials)
		publish(ctx, s.events, model.ActivityUserLoginFailed, "", "", "unknown_email")
		return nil, errInvalidCredential
	}

	ok, err := s.hasher.Verify(ctx, input.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.metrics.IncLogin(metrics.LoginInvalidCredentials)
		publish(ctx, s.events, model.ActivityUserLoginFailed, "", user.ID, "wrong_password")
		return nil, errInvalidCredential
	}

	if !user.IsActive {
		s.metrics.IncLogin(metrics.LoginDeactivated)
		publish(ctx, s.events, model.ActivityUserLoginFailed, "", user.ID, "deactivated")
		return nil, errAccountInactive
	}

	s.metrics.IncLogin(metrics.LoginSuccess)
	publish(ctx, s.events, model.ActivityUserLogin, user.ID, user.ID, "")

	return s.issue(user)
}

// ProfileInput defines the fields a user may change on their own account.
// Role and active flag are not part of it.
type ProfileInput struct {
	Name  *string
	Email *string
}

// UpdateProfile changes the caller's name or email.
func (s *AuthService) UpdateProfile(ctx context.Context, caller *model.User, input ProfileInput) (*model.User, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("Not authenticated")
	}

	// Only name and email are written; role, active flag and password keep
	// whatever is stored now, not the copy loaded by the auth gate.
	updated, err := s.users.UpdateUserProfile(ctx, caller.ID, input.Name, input.Email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, errEmailInUse
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	publish(ctx, s.events, model.ActivityUserProfileUpdated, caller.ID, caller.ID, "")
	return updated, nil
}

// ChangePassword replaces the caller's password after checking the current
// one, and issues a fresh token.
func (s *AuthService) ChangePassword(ctx context.Context, caller *model.User, current, next string) (*AuthResult, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("Not authenticated")
	}

	ok, err := s.hasher.Verify(ctx, current, caller.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, errWrongPassword
	}

	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	updated, err := s.users.UpdateUserPassword(ctx, caller.ID, hash)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("change password: %w", err)
	}

	publish(ctx, s.events, model.ActivityUserPasswordChanged, caller.ID, caller.ID, "")
	s.logger.Info("password changed", slog.String("user_id", caller.ID))

	return s.issue(updated)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
