package service

import (
	"context"
	"fmt"
	"strings"

	"marrfa-assistant/internal/model"
)

// BatchEmbedder embeds many texts in one call, preserving order
type BatchEmbedder interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkEmbeddingText is the text embedded for a knowledge chunk
func ChunkEmbeddingText(c model.KnowledgeChunk) string {
	title := strings.TrimSpace(c.Title)
	content := strings.TrimSpace(c.Content)
	if title == "" {
		return content
	}
	return title + "\n" + content
}

// EmbedMissing computes embeddings for the chunks that have none, in place,
// and returns how many were embedded
func EmbedMissing(ctx context.Context, embedder BatchEmbedder, chunks []model.KnowledgeChunk) (int, error) {
	var idx []int
	var texts []string
	for i, c := range chunks {
		if len(c.Embedding) > 0 {
			continue
		}
		idx = append(idx, i)
		texts = append(texts, ChunkEmbeddingText(c))
	}
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, err := embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed knowledge chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embed knowledge chunks: got %d vectors for %d texts", len(vectors), len(texts))
	}
	for j, i := range idx {
		chunks[i].Embedding = vectors[j]
	}
	return len(idx), nil
}
