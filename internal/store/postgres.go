package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/osulel12/itc-parser/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults. One session row
	// is touched by one single-threaded run, so the pool stays small.
	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	chat_id            TEXT PRIMARY KEY,
	captcha_flag       BOOLEAN NOT NULL DEFAULT false,
	captcha_text       TEXT NOT NULL DEFAULT '',
	current_partner    TEXT NOT NULL DEFAULT '',
	partner_flag       BOOLEAN NOT NULL DEFAULT false,
	captcha_message_id TEXT NOT NULL DEFAULT '',
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RegisterSession(ctx context.Context, chatID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (chat_id) VALUES ($1) ON CONFLICT (chat_id) DO NOTHING`,
		chatID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: register session %s", chatID)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, chatID string) (*model.Session, error) {
	var sess model.Session
	err := s.pool.QueryRow(ctx,
		`SELECT chat_id, captcha_flag, captcha_text, current_partner, partner_flag, captcha_message_id, updated_at
		 FROM sessions WHERE chat_id = $1`,
		chatID,
	).Scan(&sess.ChatID, &sess.CaptchaValid, &sess.CaptchaText, &sess.CurrentPartner,
		&sess.ResumeFlag, &sess.CaptchaMessageID, &sess.UpdatedAt)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrSessionNotFound, "postgres: %s", chatID)
		}
		return nil, eris.Wrapf(err, "postgres: get session %s", chatID)
	}
	return &sess, nil
}

func (s *PostgresStore) ResumePoint(ctx context.Context, chatID string) (string, bool, error) {
	var partner string
	var flag bool
	err := s.pool.QueryRow(ctx,
		`SELECT current_partner, partner_flag FROM sessions WHERE chat_id = $1`,
		chatID,
	).Scan(&partner, &flag)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return "", false, eris.Wrapf(ErrSessionNotFound, "postgres: %s", chatID)
		}
		return "", false, eris.Wrapf(err, "postgres: resume point %s", chatID)
	}
	return partner, flag, nil
}

func (s *PostgresStore) SetCurrentPartner(ctx context.Context, chatID, partner string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET current_partner = $1, updated_at = now() WHERE chat_id = $2`,
		partner, chatID)
}

func (s *PostgresStore) MarkResume(ctx context.Context, chatID string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET partner_flag = true, updated_at = now() WHERE chat_id = $1`,
		chatID)
}

func (s *PostgresStore) ClearResumeFlag(ctx context.Context, chatID string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET partner_flag = false, updated_at = now() WHERE chat_id = $1`,
		chatID)
}

func (s *PostgresStore) CaptchaState(ctx context.Context, chatID string) (bool, string, error) {
	var valid bool
	var text string
	err := s.pool.QueryRow(ctx,
		`SELECT captcha_flag, captcha_text FROM sessions WHERE chat_id = $1`,
		chatID,
	).Scan(&valid, &text)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return false, "", eris.Wrapf(ErrSessionNotFound, "postgres: %s", chatID)
		}
		return false, "", eris.Wrapf(err, "postgres: captcha state %s", chatID)
	}
	return valid, text, nil
}

func (s *PostgresStore) SetCaptchaAnswer(ctx context.Context, chatID, text string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET captcha_text = $1, captcha_flag = true, updated_at = now() WHERE chat_id = $2`,
		text, chatID)
}

func (s *PostgresStore) InvalidateCaptcha(ctx context.Context, chatID string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET captcha_flag = false, updated_at = now() WHERE chat_id = $1`,
		chatID)
}

func (s *PostgresStore) SetCaptchaMessageID(ctx context.Context, chatID, messageID string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET captcha_message_id = $1, updated_at = now() WHERE chat_id = $2`,
		messageID, chatID)
}

func (s *PostgresStore) update(ctx context.Context, chatID, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update session %s", chatID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrSessionNotFound, "postgres: %s", chatID)
	}
	return nil
}
