package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidCharacters is returned for names or passwords containing ':' or a newline.
	ErrInvalidCharacters = errors.New("username or password contains invalid characters")
	// ErrInvalidRole is returned for negative roles.
	ErrInvalidRole = errors.New("role must not be negative")
	// ErrEmptyCredentials is returned when name or password is empty.
	ErrEmptyCredentials = errors.New("username and password are required")
)

// expiredTokenTimestamp stamps tokens that must never verify, e.g. right after
// registration or a password change.
var expiredTokenTimestamp = time.Unix(43201, 0).UTC()

// UserService manages users and keeps their tokens consistent with password
// and role changes.
type UserService struct {
	users  UserRepository
	hasher *PasswordHasher
	issuer *TokenIssuer
}

func NewUserService(users UserRepository, hasher *PasswordHasher, issuer *TokenIssuer) *UserService {
	if users == nil || hasher == nil || issuer == nil {
		panic("core: user service needs a repository, a hasher and a token issuer")
	}
	return &UserService{users: users, hasher: hasher, issuer: issuer}
}

func validateCredentials(name, password string) error {
	if strings.TrimSpace(name) == "" || password == "" {
		return ErrEmptyCredentials
	}
	if strings.ContainsAny(name, ":\n") || strings.ContainsAny(password, ":\n") {
		return ErrInvalidCharacters
	}
	return nil
}

// Register creates a user with the given role.
func (s *UserService) Register(ctx context.Context, name, password string, role int) (*User, error) {
	if err := validateCredentials(name, password); err != nil {
		return nil, err
	}
	if role < 0 {
		return nil, ErrInvalidRole
	}
	if _, err := s.users.FindByName(ctx, name); err == nil {
		return nil, ErrAlreadyExisting
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	salt, err := s.hasher.NewSalt()
	if err != nil {
		return nil, err
	}
	token, err := randomBytes(s.issuer.TokenLength())
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:           name,
		Role:           role,
		PasswordHash:   s.hasher.Hash(password, salt),
		PasswordSalt:   salt,
		TokenTimestamp: expiredTokenTimestamp,
		Token:          token,
	}
	if _, err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Lookup returns the user with the given name.
func (s *UserService) Lookup(ctx context.Context, name string) (*User, error) {
	return s.users.FindByName(ctx, name)
}

// ChangePassword stores a new salt and digest and rotates the token.
func (s *UserService) ChangePassword(ctx context.Context, u *User, password string) error {
	if err := validateCredentials(u.Name, password); err != nil {
		return err
	}
	salt, err := s.hasher.NewSalt()
	if err != nil {
		return err
	}
	hash := s.hasher.Hash(password, salt)
	if err := s.users.Persist(ctx, u.ID, UserFields{PasswordHash: hash, PasswordSalt: salt}); err != nil {
		return fmt.Errorf("persist password for user %d: %w", u.ID, err)
	}
	u.PasswordHash, u.PasswordSalt = hash, salt
	return s.issuer.Reset(ctx, u)
}

// ChangeRole sets the role of the named user and rotates its token.
func (s *UserService) ChangeRole(ctx context.Context, name string, role int) (*User, error) {
	if role < 0 {
		return nil, ErrInvalidRole
	}
	u, err := s.users.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.users.Persist(ctx, u.ID, UserFields{Role: &role}); err != nil {
		return nil, fmt.Errorf("persist role for user %d: %w", u.ID, err)
	}
	u.Role = role
	if err := s.issuer.Reset(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Remove deletes the user.
func (s *UserService) Remove(ctx context.Context, u *User) error {
	return s.users.Delete(ctx, u.ID)
}

// List returns a page of users.
func (s *UserService) List(ctx context.Context, page, perPage int) ([]UserListItem, int, error) {
	return s.users.List(ctx, page, perPage)
}

// HasRole reports whether any user holds at least minRole.
func (s *UserService) HasRole(ctx context.Context, minRole int) (bool, error) {
	return s.users.HasRole(ctx, minRole)
}
