package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"marrfa-assistant/internal/model"
)

//go:embed schema.sql
var schema string

// ErrRequestNotFound is returned when feedback names an unknown request id
var ErrRequestNotFound = errors.New("request not found")

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute) // Shorter lifetime to avoid stale connections
	db.SetConnMaxIdleTime(2 * time.Minute) // Close idle connections sooner

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// NewPostgresRepositoryFromDB wraps an existing connection pool
func NewPostgresRepositoryFromDB(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks the connection
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Migrate creates the tables and indexes if they do not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// LoadKnowledgeChunks reads every embedded knowledge chunk in id order
func (r *PostgresRepository) LoadKnowledgeChunks(ctx context.Context) ([]model.KnowledgeChunk, error) {
	query := `
		SELECT id, title, source_url, content, embedding, metadata, created_at
		FROM knowledge_chunks
		WHERE embedding IS NOT NULL
		ORDER BY id
	`
	var rows []model.KnowledgeChunkRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load knowledge chunks: %w", err)
	}

	chunks := make([]model.KnowledgeChunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, row.ToChunk())
	}
	return chunks, nil
}

// UpsertKnowledgeChunks writes chunks in one transaction, replacing rows with
// the same id. It returns the number written and per-chunk errors.
func (r *PostgresRepository) UpsertKnowledgeChunks(ctx context.Context, chunks []model.KnowledgeChunk) (int, []string) {
	success := 0
	var errs []string

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		errs = append(errs, fmt.Sprintf("failed to start transaction: %v", err))
		return success, errs
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO knowledge_chunks (id, title, source_url, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			source_url = EXCLUDED.source_url,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
	`)
	if err != nil {
		errs = append(errs, fmt.Sprintf("failed to prepare statement: %v", err))
		return success, errs
	}
	defer stmt.Close()

	for _, c := range chunks {
		var sourceURL *string
		if c.SourceURL != "" {
			sourceURL = &c.SourceURL
		}
		var embedding any
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Title, sourceURL, c.Content, embedding, c.Metadata); err != nil {
			errs = append(errs, fmt.Sprintf("chunk %s: %v", c.ID, err))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		errs = append(errs, fmt.Sprintf("failed to commit transaction: %v", err))
		return 0, errs
	}

	return success, errs
}

// LogQuery records one handled chat query
func (r *PostgresRepository) LogQuery(ctx context.Context, entry *model.ChatLogEntry) error {
	query := `
		INSERT INTO chat_logs (
			request_id, session_id, query_text, intent, method, kind, filters,
			listing_ids, total_results, grounded, error_code, states, response_time_ms
		) VALUES (
			:request_id, :session_id, :query_text, :intent, :method, :kind, :filters,
			:listing_ids, :total_results, :grounded, :error_code, :states, :response_time_ms
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to log query: %w", err)
	}
	return nil
}

// LogFeedback records a user action on a listing shown in a reply
func (r *PostgresRepository) LogFeedback(ctx context.Context, requestID, listingID, action string) error {
	query := `
		UPDATE chat_logs
		SET clicked_listing_id = $2, action = $3
		WHERE request_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, requestID, listingID, action)
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("feedback for %s: %w", requestID, ErrRequestNotFound)
	}
	return nil
}
