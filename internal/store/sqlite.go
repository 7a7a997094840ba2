package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/osulel12/itc-parser/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for runs without a
// Postgres instance at hand.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	chat_id            TEXT PRIMARY KEY,
	captcha_flag       INTEGER NOT NULL DEFAULT 0,
	captcha_text       TEXT NOT NULL DEFAULT '',
	current_partner    TEXT NOT NULL DEFAULT '',
	partner_flag       INTEGER NOT NULL DEFAULT 0,
	captcha_message_id TEXT NOT NULL DEFAULT '',
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RegisterSession(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (chat_id) VALUES (?) ON CONFLICT (chat_id) DO NOTHING`,
		chatID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: register session %s", chatID)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, chatID string) (*model.Session, error) {
	var sess model.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, captcha_flag, captcha_text, current_partner, partner_flag, captcha_message_id, updated_at
		 FROM sessions WHERE chat_id = ?`,
		chatID,
	).Scan(&sess.ChatID, &sess.CaptchaValid, &sess.CaptchaText, &sess.CurrentPartner,
		&sess.ResumeFlag, &sess.CaptchaMessageID, &sess.UpdatedAt)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrSessionNotFound, "sqlite: %s", chatID)
		}
		return nil, eris.Wrapf(err, "sqlite: get session %s", chatID)
	}
	return &sess, nil
}

func (s *SQLiteStore) ResumePoint(ctx context.Context, chatID string) (string, bool, error) {
	var partner string
	var flag bool
	err := s.db.QueryRowContext(ctx,
		`SELECT current_partner, partner_flag FROM sessions WHERE chat_id = ?`,
		chatID,
	).Scan(&partner, &flag)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return "", false, eris.Wrapf(ErrSessionNotFound, "sqlite: %s", chatID)
		}
		return "", false, eris.Wrapf(err, "sqlite: resume point %s", chatID)
	}
	return partner, flag, nil
}

func (s *SQLiteStore) SetCurrentPartner(ctx context.Context, chatID, partner string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET current_partner = ?, updated_at = datetime('now') WHERE chat_id = ?`,
		partner, chatID)
}

func (s *SQLiteStore) MarkResume(ctx context.Context, chatID string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET partner_flag = 1, updated_at = datetime('now') WHERE chat_id = ?`,
		chatID)
}

func (s *SQLiteStore) ClearResumeFlag(ctx context.Context, chatID string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET partner_flag = 0, updated_at = datetime('now') WHERE chat_id = ?`,
		chatID)
}

func (s *SQLiteStore) CaptchaState(ctx context.Context, chatID string) (bool, string, error) {
	var valid bool
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT captcha_flag, captcha_text FROM sessions WHERE chat_id = ?`,
		chatID,
	).Scan(&valid, &text)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return false, "", eris.Wrapf(ErrSessionNotFound, "sqlite: %s", chatID)
		}
		return false, "", eris.Wrapf(err, "sqlite: captcha state %s", chatID)
	}
	return valid, text, nil
}

func (s *SQLiteStore) SetCaptchaAnswer(ctx context.Context, chatID, text string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET captcha_text = ?, captcha_flag = 1, updated_at = datetime('now') WHERE chat_id = ?`,
		text, chatID)
}

func (s *SQLiteStore) InvalidateCaptcha(ctx context.Context, chatID string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET captcha_flag = 0, updated_at = datetime('now') WHERE chat_id = ?`,
		chatID)
}

func (s *SQLiteStore) SetCaptchaMessageID(ctx context.Context, chatID, messageID string) error {
	return s.update(ctx, chatID,
		`UPDATE sessions SET captcha_message_id = ?, updated_at = datetime('now') WHERE chat_id = ?`,
		messageID, chatID)
}

func (s *SQLiteStore) update(ctx context.Context, chatID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update session %s", chatID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected %s", chatID)
	}
	if n == 0 {
		return eris.Wrapf(ErrSessionNotFound, "sqlite: %s", chatID)
	}
	return nil
}
