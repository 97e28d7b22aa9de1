package dictionary

import (
	"context"
	"strings"
)

// OpenStore picks a backend from dsn:
//
//	""  or "memory"                      in-process map
//	"postgres://..." / "postgresql://..." PostgreSQL
//	"sqlite://<path>" or any other path  SQLite file
func OpenStore(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	}
}
