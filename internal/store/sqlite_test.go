package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_RegisterSessionIdempotent(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.RegisterSession(ctx, "42"))
	require.NoError(t, st.RegisterSession(ctx, "42"))

	sess, err := st.GetSession(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "42", sess.ChatID)
	assert.False(t, sess.CaptchaValid)
	assert.False(t, sess.ResumeFlag)
	assert.Empty(t, sess.CurrentPartner)
}

func TestSQLite_GetSession_Missing(t *testing.T) {
	st := newTestSQLite(t)

	_, err := st.GetSession(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestSQLite_ResumeFlow(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, st.RegisterSession(ctx, "42"))

	require.NoError(t, st.SetCurrentPartner(ctx, "42", "France"))
	require.NoError(t, st.MarkResume(ctx, "42"))

	partner, resume, err := st.ResumePoint(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "France", partner)
	assert.True(t, resume)

	require.NoError(t, st.ClearResumeFlag(ctx, "42"))
	partner, resume, err = st.ResumePoint(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "France", partner)
	assert.False(t, resume)
}

func TestSQLite_CaptchaAnswerSingleUse(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, st.RegisterSession(ctx, "42"))

	valid, _, err := st.CaptchaState(ctx, "42")
	require.NoError(t, err)
	assert.False(t, valid)

	require.NoError(t, st.SetCaptchaAnswer(ctx, "42", "AB12"))
	valid, text, err := st.CaptchaState(ctx, "42")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, "AB12", text)

	require.NoError(t, st.InvalidateCaptcha(ctx, "42"))
	valid, text, err = st.CaptchaState(ctx, "42")
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Equal(t, "AB12", text, "text is kept, only the validity flag drops")
}

func TestSQLite_SetCaptchaMessageID(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, st.RegisterSession(ctx, "42"))

	require.NoError(t, st.SetCaptchaMessageID(ctx, "42", "msg-77"))
	sess, err := st.GetSession(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "msg-77", sess.CaptchaMessageID)
}

func TestSQLite_UpdateMissingSession(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	err := st.SetCurrentPartner(ctx, "ghost", "France")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	err = st.SetCaptchaAnswer(ctx, "ghost", "AB12")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}
