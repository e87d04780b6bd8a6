package identity

import (
	"context"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger used across the package.
type Logger = glog.Logger

// LoggerProvider hands out named loggers.
type LoggerProvider = glog.LoggerProvider

// ResolveLogger picks the logger for a component using the precedence
// provider > logger > nop. The returned logger is never nil.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	provider, logger = glog.Resolve(name, provider, logger)
	return provider, glog.Ensure(logger)
}

// Migrator brings the persistence schema to its latest version.
// A go-persistence-bun *persistence.Client satisfies it.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// MigratorFunc adapts a function into a Migrator.
type MigratorFunc func(ctx context.Context) error

// Migrate implements Migrator.
func (f MigratorFunc) Migrate(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}
