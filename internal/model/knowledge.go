package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// KnowledgeChunk is one pre-chunked company document with its embedding
type KnowledgeChunk struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	SourceURL string    `json:"source_url,omitempty"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	Metadata  JSONMap   `json:"metadata,omitempty"`
}

// KnowledgeChunkRow is the database shape of a knowledge chunk
type KnowledgeChunkRow struct {
	ID        string          `db:"id"`
	Title     string          `db:"title"`
	SourceURL *string         `db:"source_url"`
	Content   string          `db:"content"`
	Embedding pgvector.Vector `db:"embedding"`
	Metadata  JSONMap         `db:"metadata"`
	CreatedAt time.Time       `db:"created_at"`
}

// ToChunk converts the row into the in-memory chunk
func (r KnowledgeChunkRow) ToChunk() KnowledgeChunk {
	chunk := KnowledgeChunk{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Embedding: r.Embedding.Slice(),
		Metadata:  r.Metadata,
	}
	if r.SourceURL != nil {
		chunk.SourceURL = *r.SourceURL
	}
	return chunk
}

// ScoredChunk pairs a chunk with its cosine similarity to the query
type ScoredChunk struct {
	Chunk KnowledgeChunk `json:"chunk"`
	Score float64        `json:"score"`
}

// RetrievalResult is ordered most-similar first
type RetrievalResult struct {
	Chunks []ScoredChunk `json:"chunks"`
	// ProviderUnavailable is set when the query could not be embedded
	ProviderUnavailable bool `json:"provider_unavailable,omitempty"`
}

// IsEmpty reports whether retrieval produced no grounding
func (r RetrievalResult) IsEmpty() bool {
	return len(r.Chunks) == 0
}

// Source is a citation attached to a grounded answer
type Source struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	SourceURL string  `json:"source_url,omitempty"`
	Score     float64 `json:"score"`
}

// KnowledgeStats summarizes the loaded knowledge snapshot
type KnowledgeStats struct {
	TotalChunks int            `json:"total_chunks"`
	Dimensions  int            `json:"dimensions"`
	Titles      map[string]int `json:"titles"`
	Source      string         `json:"source"`
	LoadedAt    time.Time      `json:"loaded_at"`
}
