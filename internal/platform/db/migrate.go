package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate applies pending goose migrations from the given filesystem.
// It opens a short-lived database/sql connection because goose does not
// speak the native pgx interface.
func Migrate(ctx context.Context, dsn string, fsys fs.FS) error {
	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("platform/db: set dialect: %w", err)
	}

	sqldb, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("platform/db: open migration conn: %w", err)
	}
	defer func() {
		_ = sqldb.Close()
	}()

	if err := goose.UpContext(ctx, sqldb, "."); err != nil {
		return fmt.Errorf("platform/db: run migrations: %w", err)
	}
	return nil
}
