package auth

import (
	"context"

	"github.com/avdeyev/roster/internal/email"
)

// UserFilter is used to filter users.
// Returned users must match all the provided fields.
// If a field is empty or nil, it's ignored.
type UserFilter struct {
	IDs    []int
	Emails []email.Address
}

// Store provides access to the user store.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)

	// FindUsers queries outside of a transaction, for read-only callers.
	FindUsers(ctx context.Context, filter *UserFilter) ([]User, error)
}

// Tx is a transaction. If an error occurs on any of the Create/Update/Find
// methods, the transaction is considered to have failed and should be
// rolled back. Tx is not safe for concurrent use.
type Tx interface {
	Commit() error
	Rollback() error

	CreateUser(u *User) error
	UpdateUser(u *User) error
	DeleteUser(id int) error
	FindUsers(filter *UserFilter) ([]User, error)
}
