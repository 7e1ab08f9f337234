package users

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// UserIndexes are created after the users table. The unique index on uid is
// what rejects the second of two racing creates.
var UserIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS users_uid_key ON users (uid)`,
	`CREATE INDEX IF NOT EXISTS users_email_idx ON users (email)`,
}

// CreateSchema creates the users table and its indexes
func CreateSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*UserSchema)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create table for model %T: %w", (*UserSchema)(nil), err)
	}

	for _, indexSQL := range UserIndexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("failed to create index with SQL %q: %w", indexSQL, err)
		}
	}

	return nil
}
