package domain

import "context"

// Dumper produces a logical SQL dump of one database at outputPath.
type Dumper interface {
	Dump(ctx context.Context, database, outputPath string) error
}

// Loader applies the statements in sqlPath to an existing database.
type Loader interface {
	Load(ctx context.Context, database, sqlPath string) error
}

// Server is the live connection used for catalog queries and the
// drop/create statements issued around a restore.
type Server interface {
	Ping(ctx context.Context) error
	ListDatabases(ctx context.Context) ([]string, error)
	DatabaseSize(ctx context.Context, name string) (int64, error)
	CreateDatabase(ctx context.Context, name string, ifNotExists bool) error
	DropDatabase(ctx context.Context, name string) error
	Close() error
}
