package identity

import (
	"embed"
	"io/fs"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
)

// Supported migration dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const migrationsRoot = "data/sql/migrations"

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// MigrationsFS returns the migration tree for dialect. Postgres files live
// at the root and sqlite files in the sqlite sub directory.
func MigrationsFS(dialect string) (fs.FS, error) {
	base, err := fs.Sub(migrationsFS, migrationsRoot)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve migrations")
	}

	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case DialectPostgres:
		return base, nil
	case DialectSQLite:
		sub, err := fs.Sub(base, DialectSQLite)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve sqlite migrations")
		}
		return sub, nil
	default:
		return nil, goerrors.New("unsupported migration dialect: "+dialect, goerrors.CategoryBadInput).
			WithTextCode(TextCodeInvalidInput).
			WithMetadata(map[string]any{"dialect": dialect})
	}
}

// RegisterMigrations registers the identity schema for dialect with client.
// Call client.Migrate afterwards, or hand the client to a Seeder.
func RegisterMigrations(client *persistence.Client, dialect string) error {
	if client == nil {
		return goerrors.New("persistence client is required", goerrors.CategoryBadInput).
			WithTextCode(TextCodeInvalidInput)
	}

	fsys, err := MigrationsFS(dialect)
	if err != nil {
		return err
	}

	matches, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list migrations")
	}
	if len(matches) == 0 {
		return goerrors.New("no migrations found for dialect "+dialect, goerrors.CategoryInternal)
	}

	client.RegisterSQLMigrations(fsys)
	return nil
}
