package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Submission documents are stored whole in a JSON column; the two record
// kinds share the layout.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS submissions (
		id         CHAR(36)  NOT NULL PRIMARY KEY,
		doc        JSON      NOT NULL,
		created_at DATETIME  NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME  NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS regional_submissions (
		id         CHAR(36)  NOT NULL PRIMARY KEY,
		doc        JSON      NOT NULL,
		created_at DATETIME  NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME  NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS catalog_titles (
		id          VARCHAR(64)  NOT NULL PRIMARY KEY,
		iva_id      VARCHAR(64)  NOT NULL,
		title       VARCHAR(300) NOT NULL,
		title_norm  VARCHAR(300) NOT NULL,
		year        INT          NOT NULL DEFAULT 0,
		poster_path VARCHAR(300) NOT NULL DEFAULT '',
		media_type  VARCHAR(32)  NOT NULL,
		KEY idx_catalog_search (media_type, title_norm)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables.  Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
