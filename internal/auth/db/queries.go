package db

import (
	"fmt"

	"github.com/avdeyev/roster/internal/auth"
	"github.com/avdeyev/roster/internal/db"
	"github.com/avdeyev/roster/internal/errorz"
)

// createUser inserts a new user and assigns the generated id to u.
func createUser(q querier, u *auth.User) error {
	var query db.Query

	query.Unsafe("INSERT INTO users (first_name, last_name, email, password_hash, created_at, updated_at) VALUES (")
	query.Params(u.FirstName, u.LastName, string(u.Email), u.PasswordHash.String(), u.CreatedAt, u.UpdatedAt)
	query.Unsafe(")")

	raw, params := query.Get()

	result, err := q.Exec(raw, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	u.ID = int(id)

	return nil
}

func updateUser(q querier, u *auth.User) error {
	var query db.Query

	query.Unsafe("UPDATE users SET first_name = ")
	query.Param(u.FirstName)
	query.Unsafe(", last_name = ")
	query.Param(u.LastName)
	query.Unsafe(", email = ")
	query.Param(string(u.Email))
	query.Unsafe(", password_hash = ")
	query.Param(u.PasswordHash.String())
	query.Unsafe(", updated_at = ")
	query.Param(u.UpdatedAt)
	query.Unsafe(" WHERE id = ")
	query.Param(u.ID)

	raw, params := query.Get()

	result, err := q.Exec(raw, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return affectedOne(result)
}

func deleteUser(q querier, id int) error {
	var query db.Query

	query.Unsafe("DELETE FROM users WHERE id = ")
	query.Param(id)

	raw, params := query.Get()

	result, err := q.Exec(raw, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return affectedOne(result)
}

func findUsers(q querier, filter *auth.UserFilter) ([]auth.User, error) {
	var query db.Query

	query.Unsafe("SELECT id, first_name, last_name, email, password_hash, created_at, updated_at FROM users")

	if filter == nil {
		filter = &auth.UserFilter{}
	}

	sep := " WHERE "

	if len(filter.IDs) > 0 {
		query.Unsafe(sep + "id IN (")
		query.Params(anySlice(filter.IDs)...)
		query.Unsafe(")")
		sep = " AND "
	}

	if len(filter.Emails) > 0 {
		query.Unsafe(sep + "email IN (")
		query.Params(anySlice(filter.Emails)...)
		query.Unsafe(")")
		sep = " AND "
	}

	query.Unsafe(" ORDER BY id ASC")

	raw, params := query.Get()

	rows, err := q.Query(raw, params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		var u auth.User
		err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return users, nil
}

// affectedOne maps "no rows affected" to errorz.ErrNotFound.
func affectedOne(result interface{ RowsAffected() (int64, error) }) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return errorz.ErrNotFound
	}

	return nil
}

func anySlice[T any](vals []T) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}

	return out
}
