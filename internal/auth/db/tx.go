package db

import (
	"database/sql"

	"github.com/avdeyev/roster/internal/auth"
	"github.com/avdeyev/roster/internal/errorz"
)

// Tx is a transaction on the user store.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error {
	return errorz.MapDBErr(t.tx.Commit())
}

func (t *Tx) Rollback() error {
	return errorz.MapDBErr(t.tx.Rollback())
}

func (t *Tx) CreateUser(u *auth.User) error {
	return createUser(t.tx, u)
}

func (t *Tx) UpdateUser(u *auth.User) error {
	return updateUser(t.tx, u)
}

func (t *Tx) DeleteUser(id int) error {
	return deleteUser(t.tx, id)
}

func (t *Tx) FindUsers(filter *auth.UserFilter) ([]auth.User, error) {
	return findUsers(t.tx, filter)
}
