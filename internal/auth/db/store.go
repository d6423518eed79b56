// Package db provides a sqlite backed implementation of the auth store.
package db

import (
	"context"
	"database/sql"

	"github.com/avdeyev/roster/internal/auth"
	"github.com/avdeyev/roster/internal/errorz"
)

// querier is the subset of database methods the queries need. It is
// implemented by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
}

// Store provides access to users stored in a sqlite database.
//
// sqlite only supports a single writer, so the store keeps separate
// write and read handles. Writes go through transactions on writeDB,
// reads outside of a transaction use readDB.
type Store struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

func New(writeDB, readDB *sql.DB) *Store {
	return &Store{
		writeDB: writeDB,
		readDB:  readDB,
	}
}

// BeginTx begins a transaction on the write database.
func (s *Store) BeginTx(ctx context.Context) (auth.Tx, error) {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return &Tx{tx: tx}, nil
}

// FindUsers queries the read database directly, outside of a transaction.
func (s *Store) FindUsers(_ context.Context, filter *auth.UserFilter) ([]auth.User, error) {
	return findUsers(s.readDB, filter)
}
