package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/foxseedlab/mojiokoshin-live/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, remote_addr, ack_mode, status, started_at, ended_at,
	blocks_received, replies_sent, empty_results, decode_errors, close_code, close_reason`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO stream_sessions (id, remote_addr, ack_mode, started_at, status)
		 VALUES ($1, $2, $3, $4, 'streaming')
		 RETURNING `+sessionColumns,
		input.ID, input.RemoteAddr, input.AckMode, input.StartedAt)
	s, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("insert stream session: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) CompleteSession(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE stream_sessions
		 SET status = 'closed', ended_at = $2, blocks_received = $3, replies_sent = $4,
		     empty_results = $5, decode_errors = $6, close_code = $7, close_reason = $8
		 WHERE id = $1`,
		input.SessionID, input.EndedAt, input.BlocksReceived, input.RepliesSent,
		input.EmptyResults, input.DecodeErrors, input.CloseCode, input.CloseReason)
	if err != nil {
		return fmt.Errorf("complete stream session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM stream_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) ListRecentSessions(ctx context.Context, limit int) ([]repository.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM stream_sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) Shutdown() {
	r.pool.Close()
}

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	err := row.Scan(&s.ID, &s.RemoteAddr, &s.AckMode, &s.Status, &s.StartedAt, &s.EndedAt,
		&s.BlocksReceived, &s.RepliesSent, &s.EmptyResults, &s.DecodeErrors, &s.CloseCode, &s.CloseReason)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
