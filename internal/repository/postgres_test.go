package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marrfa-assistant/internal/model"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepositoryFromDB(sqlx.NewDb(db, "postgres")), mock
}

func TestLoadKnowledgeChunks(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	columns := []string{"id", "title", "source_url", "content", "embedding", "metadata", "created_at"}
	now := time.Now()
	mock.ExpectQuery("SELECT id, title, source_url, content, embedding, metadata, created_at").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("about-1", "About Marrfa", "https://www.marrfa.com/about", "Marrfa is a platform.", "[0.5,0.25]", `{"section":"about"}`, now).
			AddRow("lead-1", "Leadership", nil, "The CEO leads Marrfa.", "[1,0]", nil, now))

	chunks, err := repo.LoadKnowledgeChunks(context.Background())
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "about-1", chunks[0].ID)
	assert.Equal(t, "https://www.marrfa.com/about", chunks[0].SourceURL)
	assert.Equal(t, []float32{0.5, 0.25}, chunks[0].Embedding)
	assert.Equal(t, "about", chunks[0].Metadata["section"])
	assert.Empty(t, chunks[1].SourceURL)
	assert.Equal(t, []float32{1, 0}, chunks[1].Embedding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadKnowledgeChunks_Error(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery("FROM knowledge_chunks").WillReturnError(errors.New("relation does not exist"))

	_, err := repo.LoadKnowledgeChunks(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load knowledge chunks")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertKnowledgeChunks(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO knowledge_chunks")
	prep.ExpectExec().
		WithArgs("a", "About", "https://m.com", "text", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("b", "Team", nil, "text", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("dimension mismatch"))
	mock.ExpectCommit()

	n, errs := repo.UpsertKnowledgeChunks(context.Background(), []model.KnowledgeChunk{
		{ID: "a", Title: "About", SourceURL: "https://m.com", Content: "text", Embedding: []float32{1, 2}},
		{ID: "b", Title: "Team", Content: "text", Embedding: []float32{1}},
	})
	assert.Equal(t, 1, n)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "chunk b")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogQuery(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	code := model.ErrorCodeListingsUnavailable

	mock.ExpectExec("INSERT INTO chat_logs").
		WithArgs("req-1", "s-1", "villas in jvc", "PROPERTY", "llm", "error",
			sqlmock.AnyArg(), sqlmock.AnyArg(), 0, false, &code, sqlmock.AnyArg(), 120).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.LogQuery(context.Background(), &model.ChatLogEntry{
		RequestID: "req-1",
		SessionID: "s-1",
		Query:     "villas in jvc",
		Intent:    "PROPERTY",
		Method:    "llm",
		Kind:      "error",
		Filters:   model.JSONMap{"location": "Jumeirah Village Circle"},
		ErrorCode: &code,
		States:    model.JSONArray{"RECEIVED", "RESPONDED"},
		TookMS:    120,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogFeedback(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec("UPDATE chat_logs").
		WithArgs("req-1", "p-9", "click").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.LogFeedback(context.Background(), "req-1", "p-9", "click"))

	mock.ExpectExec("UPDATE chat_logs").
		WithArgs("missing", "p-9", "click").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.LogFeedback(context.Background(), "missing", "p-9", "click")
	assert.ErrorIs(t, err, ErrRequestNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
