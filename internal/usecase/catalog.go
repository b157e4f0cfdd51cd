package usecase

import (
	"context"
	"fmt"

	"github.com/semmidev/mdump/internal/domain"
)

// LoadCatalog lists the user databases of server once for the current run.
func LoadCatalog(ctx context.Context, server domain.Server) (domain.Catalog, error) {
	names, err := server.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return domain.NewCatalog(names), nil
}

// ListSchemas returns every schema on server, system schemas included.
// Restore classifies archive entries against this list.
func ListSchemas(ctx context.Context, server domain.Server) ([]string, error) {
	names, err := server.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return names, nil
}
