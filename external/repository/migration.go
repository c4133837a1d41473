package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE stream_session_status AS ENUM ('streaming', 'closed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS stream_sessions (
		id UUID PRIMARY KEY,
		remote_addr TEXT NOT NULL,
		ack_mode BOOLEAN NOT NULL DEFAULT FALSE,
		status stream_session_status NOT NULL DEFAULT 'streaming',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		blocks_received BIGINT NOT NULL DEFAULT 0,
		replies_sent BIGINT NOT NULL DEFAULT 0,
		empty_results BIGINT NOT NULL DEFAULT 0,
		decode_errors BIGINT NOT NULL DEFAULT 0,
		close_code INTEGER NOT NULL DEFAULT 0,
		close_reason TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stream_sessions_started ON stream_sessions (started_at DESC)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
