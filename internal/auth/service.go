// Package auth implements registration, credential verification and
// account management for users.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avdeyev/roster/internal/email"
	"github.com/avdeyev/roster/internal/errorz"
)

var (
	// ErrInvalidCredentials is deliberately the same for unknown emails
	// and wrong passwords, so callers can't tell the two cases apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Field errors reported via errorz.InvalidInput.
	ErrRequired   = errors.New("required")
	ErrEmailTaken = errors.New("email already taken")
)

// Service is the main auth service.
type Service struct {
	store Store

	// comparisonHash is used to compare passwords for non-existent users.
	comparisonHash Argon2Hash

	// NowFunc is used to determine the current time, exposed so tests can
	// pin timestamps.
	NowFunc func() time.Time
}

// NewService creates a new auth service. It hashes a random value up
// front so that authentication attempts for unknown emails still pay
// the cost of a password comparison.
func NewService(store Store) (*Service, error) {
	var random [32]byte
	if _, err := rand.Read(random[:]); err != nil {
		return nil, err
	}

	comparisonHash, err := hashBytes(random[:])
	if err != nil {
		return nil, err
	}

	return &Service{
		store:          store,
		comparisonHash: comparisonHash,
		NowFunc:        time.Now,
	}, nil
}

// Credentials are the email/password pair submitted on sign in.
type Credentials struct {
	Email    email.Address
	Password Password
}

// Authenticate checks the credentials against the user store.
//
// If no user with the given email exists, the submitted password is
// still compared against a hash. Without this, the response time would
// reveal whether an email is registered.
func (s *Service) Authenticate(ctx context.Context, c Credentials) (User, error) {
	users, err := s.store.FindUsers(ctx, &UserFilter{
		Emails: []email.Address{c.Email},
	})
	if err != nil {
		return User{}, fmt.Errorf("failed to find user: %w", err)
	}

	if len(users) != 1 {
		c.Password.Match(s.comparisonHash)
		return User{}, ErrInvalidCredentials
	}

	if !c.Password.Match(users[0].PasswordHash) {
		return User{}, ErrInvalidCredentials
	}

	return users[0], nil
}

// Registration is the input for RegisterUser.
type Registration struct {
	FirstName string
	LastName  string
	Email     email.Address
	Password  Password
}

func (r Registration) validate() error {
	var invalid errorz.InvalidInput

	if strings.TrimSpace(r.FirstName) == "" {
		invalid = append(invalid, errorz.Keyed{Key: "FirstName", Err: ErrRequired})
	}

	if strings.TrimSpace(r.LastName) == "" {
		invalid = append(invalid, errorz.Keyed{Key: "LastName", Err: ErrRequired})
	}

	if r.Email == "" {
		invalid = append(invalid, errorz.Keyed{Key: "Email", Err: ErrRequired})
	}

	if !r.Password.IsSet() {
		invalid = append(invalid, errorz.Keyed{Key: "Password", Err: ErrRequired})
	}

	if len(invalid) > 0 {
		return invalid
	}

	return nil
}

// RegisterUser creates a new user account.
//
// The email must not be in use by another account. The duplicate check
// runs inside the transaction, with the unique constraint on the email
// column as the final arbiter of races.
func (s *Service) RegisterUser(ctx context.Context, reg Registration) (User, error) {
	if err := reg.validate(); err != nil {
		return User{}, err
	}

	hash, err := reg.Password.Hash()
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.NowFunc()
	user := User{
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		Email:        reg.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.inTx(ctx, func(tx Tx) error {
		others, txErr := tx.FindUsers(&UserFilter{
			Emails: []email.Address{reg.Email},
		})
		if txErr != nil {
			return txErr
		}

		if len(others) > 0 {
			return emailTaken()
		}

		return tx.CreateUser(&user)
	})
	if err != nil {
		if errors.Is(err, errorz.ErrConstraintViolated) {
			return User{}, emailTaken()
		}
		return User{}, err
	}

	return user, nil
}

// UserUpdate is the input for UpdateUser. Password is optional, an
// unset password keeps the current one.
type UserUpdate struct {
	ID        int
	FirstName string
	LastName  string
	Email     email.Address
	Password  Password
}

func (u UserUpdate) validate() error {
	var invalid errorz.InvalidInput

	if strings.TrimSpace(u.FirstName) == "" {
		invalid = append(invalid, errorz.Keyed{Key: "FirstName", Err: ErrRequired})
	}

	if strings.TrimSpace(u.LastName) == "" {
		invalid = append(invalid, errorz.Keyed{Key: "LastName", Err: ErrRequired})
	}

	if u.Email == "" {
		invalid = append(invalid, errorz.Keyed{Key: "Email", Err: ErrRequired})
	}

	if len(invalid) > 0 {
		return invalid
	}

	return nil
}

// UpdateUser modifies an existing user account.
func (s *Service) UpdateUser(ctx context.Context, upd UserUpdate) (User, error) {
	if err := upd.validate(); err != nil {
		return User{}, err
	}

	var user User

	err := s.inTx(ctx, func(tx Tx) error {
		users, txErr := tx.FindUsers(&UserFilter{IDs: []int{upd.ID}})
		if txErr != nil {
			return txErr
		}

		if len(users) != 1 {
			return errorz.ErrNotFound
		}

		user = users[0]

		others, txErr := tx.FindUsers(&UserFilter{
			Emails: []email.Address{upd.Email},
		})
		if txErr != nil {
			return txErr
		}

		if len(others) > 0 && others[0].ID != upd.ID {
			return emailTaken()
		}

		user.FirstName = strings.TrimSpace(upd.FirstName)
		user.LastName = strings.TrimSpace(upd.LastName)
		user.Email = upd.Email

		if upd.Password.IsSet() {
			hash, hashErr := upd.Password.Hash()
			if hashErr != nil {
				return fmt.Errorf("failed to hash password: %w", hashErr)
			}
			user.PasswordHash = hash
		}

		user.UpdatedAt = s.NowFunc()

		return tx.UpdateUser(&user)
	})
	if err != nil {
		if errors.Is(err, errorz.ErrConstraintViolated) {
			return User{}, emailTaken()
		}
		return User{}, err
	}

	return user, nil
}

// DeleteUser removes a user account. It returns errorz.ErrNotFound if
// no user with the given id exists.
func (s *Service) DeleteUser(ctx context.Context, id int) error {
	return s.inTx(ctx, func(tx Tx) error {
		return tx.DeleteUser(id)
	})
}

// UserByID finds a single user by id.
func (s *Service) UserByID(ctx context.Context, id int) (User, error) {
	users, err := s.store.FindUsers(ctx, &UserFilter{IDs: []int{id}})
	if err != nil {
		return User{}, fmt.Errorf("failed to find user: %w", err)
	}

	if len(users) != 1 {
		return User{}, errorz.ErrNotFound
	}

	return users[0], nil
}

// ListUsers returns all users ordered by id.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.FindUsers(ctx, &UserFilter{})
}

// inTx runs the provided function in a transaction. The transaction is
// committed if the function returns nil, rolled back otherwise.
func (s *Service) inTx(ctx context.Context, f func(tx Tx) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func emailTaken() error {
	return errorz.InvalidInput{
		errorz.Keyed{Key: "Email", Err: ErrEmailTaken},
	}
}
