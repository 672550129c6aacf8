package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"photomemo/internal/apperr"
	"photomemo/internal/validate"
)

// MaxLoginAttempts failed logins deactivate an account.
const MaxLoginAttempts = 5

// UserStore persists users. Missing users are apperr NotFound errors and a
// duplicate email is an apperr Conflict.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	ByID(ctx context.Context, id uint64) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, u *User) error
	List(ctx context.Context) ([]User, error)
}

// CredentialsError is a rejected login. Locked means the account has just
// been, or already was, deactivated.
type CredentialsError struct {
	Remaining int
	Locked    bool
}

func (e *CredentialsError) Error() string {
	if e.Locked {
		return "account locked"
	}
	return "invalid credentials"
}

type Service struct {
	Users UserStore
	JWT   *JWT
	Log   logrus.FieldLogger
	Now   func() time.Time
}

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"required"`
	Role        Role   `json:"role"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	fields, err := validate.Fields(in, "")
	if err != nil {
		return nil, fmt.Errorf("validate registration: %w", err)
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid input", fields...)
	}

	role := RoleUser
	if in.Role == RoleAdmin {
		role = RoleAdmin
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		Email:        in.Email,
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		Role:         role,
		IsActive:     true,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("email already used", nil)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login checks credentials and returns the user with a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, "", &CredentialsError{Remaining: MaxLoginAttempts}
	}

	u, err := s.Users.ByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, "", &CredentialsError{Remaining: MaxLoginAttempts}
	}
	if err != nil {
		return nil, "", fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return nil, "", &CredentialsError{Locked: true}
	}

	if !ComparePassword(u.PasswordHash, password) {
		u.LoginAttempt++
		cerr := &CredentialsError{Remaining: max(0, MaxLoginAttempts-u.LoginAttempt)}
		if u.LoginAttempt >= MaxLoginAttempts {
			u.IsActive = false
			cerr.Locked = true
			s.log().WithField("user_id", u.ID).Warn("account locked after failed logins")
		}
		if err := s.Users.Save(ctx, u); err != nil {
			return nil, "", fmt.Errorf("save login attempt: %w", err)
		}
		return nil, "", cerr
	}

	now := s.now()
	u.LoginAttempt = 0
	u.IsLoggedIn = true
	u.LastLoginAt = &now
	if err := s.Users.Save(ctx, u); err != nil {
		return nil, "", fmt.Errorf("save login: %w", err)
	}

	token, err := s.JWT.Sign(u)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}
	return u, token, nil
}

func (s *Service) Me(ctx context.Context, userID uint64) (*User, error) {
	return s.Users.ByID(ctx, userID)
}

func (s *Service) Logout(ctx context.Context, userID uint64) error {
	u, err := s.Users.ByID(ctx, userID)
	if err != nil {
		return err
	}
	u.IsLoggedIn = false
	return s.Users.Save(ctx, u)
}

// ListUsers is admin only. The caller's role is read from the store, not
// the token, so a demoted admin loses access immediately.
func (s *Service) ListUsers(ctx context.Context, callerID uint64) ([]User, error) {
	me, err := s.Users.ByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if me.Role != RoleAdmin {
		return nil, apperr.Forbidden("admin only")
	}
	return s.Users.List(ctx)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}
