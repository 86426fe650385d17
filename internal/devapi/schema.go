package devapi

import (
	"context"
	"database/sql"
	"embed"

	"github.com/nao1215/authgate/pkg/migration"
)

//go:embed migrations
var migrationsFS embed.FS

// initSchema はマイグレーションを実行してユーザーテーブルを作成する。
func initSchema(ctx context.Context, db *sql.DB) error {
	return migration.Run(ctx, db, migrationsFS, "migrations")
}
