// Package cmd holds shared factories for the binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/projectpulse/pulse/pkg/persistence"
	"github.com/projectpulse/pulse/pkg/persistence/file"
	"github.com/projectpulse/pulse/pkg/persistence/postgresql"
)

// NewPersistence picks a storage backend from the database URL scheme:
// postgres:// (or postgresql://) selects PostgreSQL, anything else is
// treated as a file storage root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseScheme(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgresql persistence: %w", err)
		}

		return p, nil
	default:
		root := strings.TrimPrefix(databaseURL, "file://")

		return file.NewPersistence(root), nil
	}
}

func parseScheme(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
