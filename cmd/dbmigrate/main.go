// Command dbmigrate runs the schema migrations against a sqlite file.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/avdeyev/roster/internal"
	"github.com/avdeyev/roster/internal/db"
	"github.com/avdeyev/roster/internal/migrate"
	"github.com/avdeyev/roster/migrations"
)

const helpText = `Usage: dbmigrate [sqlite_file]`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, helpText)
		os.Exit(1)
	}

	dbFile := os.Args[1]

	sqlDB, err := db.OpenSQLite(dbFile, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*60)
	defer cancel()

	meta := migrate.Metadata{
		AppVersion: internal.BuildRevision,
		Timestamp:  internal.BuildRevisionTime,
	}

	ran, err := migrate.RunFS(ctx, sqlDB, migrations.FS, meta)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	for _, migration := range ran {
		fmt.Printf("%d: %s\n", migration.Sequence, migration.Filename)
	}
}
