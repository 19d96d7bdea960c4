package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptStoreAppendTurn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	conversationID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(sqlmock.AnyArg(), "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(conversationID))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), conversationID, ChatRoleUser, "hello").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), conversationID, ChatRoleAssistant, "hi there").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewTranscriptStore(db)
	err = store.AppendTurn(context.Background(), "user-1", "hello", "hi there")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptStoreAppendTurnSkipsExcludedUsers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewTranscriptStoreWithExclusions(db, []string{"e2e-bot"})
	err = store.AppendTurn(context.Background(), "e2e-bot", "ping", "pong")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptStoreAppendTurnRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(sqlmock.AnyArg(), "user-1").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	store := NewTranscriptStore(db)
	err = store.AppendTurn(context.Background(), "user-1", "hello", "hi")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptStoreListMessages(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "role", "content", "created_at"}).
		AddRow(uuid.New(), ChatRoleUser, "hello", now.Add(-time.Minute)).
		AddRow(uuid.New(), ChatRoleAssistant, "hi there", now)
	mock.ExpectQuery("SELECT m.id, m.role, m.content, m.created_at").
		WithArgs("user-1", 200).
		WillReturnRows(rows)

	store := NewTranscriptStore(db)
	messages, err := store.ListMessages(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, ChatRoleUser, messages[0].Role)
	assert.Equal(t, "hi there", messages[1].Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptStoreMessageCountUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT message_count FROM conversations").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"message_count"}))

	store := NewTranscriptStore(db)
	count, err := store.MessageCount(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTranscriptStoreDeleteUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM messages").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM conversations").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewTranscriptStore(db)
	require.NoError(t, store.DeleteUser(context.Background(), "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptStoreNilSafe(t *testing.T) {
	var store *TranscriptStore
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "user-1", "a", "b"))
	messages, err := store.ListMessages(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Nil(t, messages)
	count, err := store.MessageCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
	require.NoError(t, store.DeleteUser(ctx, "user-1"))
}
