// Package cmd provides common initialization helpers for the binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sendloop/sendloop/pkg/persistence"
	"github.com/sendloop/sendloop/pkg/persistence/file"
	"github.com/sendloop/sendloop/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme. A postgres:// URL gets PostgreSQL; anything else is treated as
// a directory path for file persistence.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}
