package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"marrfa-assistant/internal/model"
)

// ErrKnowledgeEmpty is returned by Load when the source holds no usable chunks
var ErrKnowledgeEmpty = errors.New("knowledge source has no chunks with embeddings")

// ChunkLoader reads the full knowledge base from its source
type ChunkLoader interface {
	LoadKnowledgeChunks(ctx context.Context) ([]model.KnowledgeChunk, error)
}

type indexedChunk struct {
	chunk model.KnowledgeChunk
	unit  []float32 // embedding scaled to length 1
}

type knowledgeSnapshot struct {
	chunks   []indexedChunk
	dims     int
	titles   map[string]int
	source   string
	loadedAt time.Time
}

// KnowledgeStore is an in-memory exact cosine index over knowledge chunks.
// Readers never lock: every reload builds a new snapshot and swaps it in.
type KnowledgeStore struct {
	snapshot atomic.Pointer[knowledgeSnapshot]
	loader   ChunkLoader
	source   string
	logger   *zap.Logger
}

// NewKnowledgeStore creates an empty store that reloads from loader
func NewKnowledgeStore(loader ChunkLoader, source string, logger *zap.Logger) *KnowledgeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &KnowledgeStore{loader: loader, source: source, logger: logger}
	s.snapshot.Store(&knowledgeSnapshot{titles: map[string]int{}, source: source})
	return s
}

// Load reads every chunk from the loader and replaces the snapshot. On error
// the previous snapshot stays in place.
func (s *KnowledgeStore) Load(ctx context.Context) error {
	if s.loader == nil {
		return fmt.Errorf("no knowledge loader configured")
	}
	chunks, err := s.loader.LoadKnowledgeChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load knowledge chunks: %w", err)
	}
	if n := s.Replace(chunks); n == 0 {
		return ErrKnowledgeEmpty
	}
	return nil
}

// Replace indexes chunks and swaps them in, returning how many were kept.
// Chunks without an embedding or with a zero vector are skipped.
func (s *KnowledgeStore) Replace(chunks []model.KnowledgeChunk) int {
	snap := &knowledgeSnapshot{
		chunks:   make([]indexedChunk, 0, len(chunks)),
		titles:   make(map[string]int),
		source:   s.source,
		loadedAt: time.Now(),
	}

	skipped := 0
	for _, c := range chunks {
		unit, ok := unitVector(c.Embedding)
		if !ok {
			skipped++
			continue
		}
		snap.chunks = append(snap.chunks, indexedChunk{chunk: c, unit: unit})
		snap.titles[c.Title]++
		if snap.dims == 0 {
			snap.dims = len(unit)
		}
	}

	s.snapshot.Store(snap)
	s.logger.Info("knowledge snapshot replaced",
		zap.Int("chunks", len(snap.chunks)),
		zap.Int("skipped", skipped),
		zap.Int("dimensions", snap.dims),
		zap.String("source", s.source),
	)
	return len(snap.chunks)
}

// Len returns the number of indexed chunks
func (s *KnowledgeStore) Len() int {
	return len(s.snapshot.Load().chunks)
}

// Search returns the k chunks most similar to vec, most similar first.
// Equal scores keep load order; chunks of another dimensionality are skipped.
func (s *KnowledgeStore) Search(vec []float32, k int) []model.ScoredChunk {
	snap := s.snapshot.Load()
	if k <= 0 || len(snap.chunks) == 0 {
		return nil
	}
	query, ok := unitVector(vec)
	if !ok {
		return nil
	}

	scored := make([]model.ScoredChunk, 0, len(snap.chunks))
	for _, ic := range snap.chunks {
		if len(ic.unit) != len(query) {
			continue
		}
		scored = append(scored, model.ScoredChunk{Chunk: ic.chunk, Score: dot(query, ic.unit)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// Stats summarizes the current snapshot
func (s *KnowledgeStore) Stats() model.KnowledgeStats {
	snap := s.snapshot.Load()
	titles := make(map[string]int, len(snap.titles))
	for t, n := range snap.titles {
		titles[t] = n
	}
	return model.KnowledgeStats{
		TotalChunks: len(snap.chunks),
		Dimensions:  snap.dims,
		Titles:      titles,
		Source:      snap.source,
		LoadedAt:    snap.loadedAt,
	}
}

func unitVector(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if len(v) == 0 || sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, false
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}

// dot of two unit vectors, clamped to the cosine range
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return math.Max(-1, math.Min(1, sum))
}

// FileChunkLoader reads chunks from a JSON Lines file, one chunk per line
type FileChunkLoader struct {
	Path string
}

// LoadKnowledgeChunks implements ChunkLoader
func (l FileChunkLoader) LoadKnowledgeChunks(ctx context.Context) ([]model.KnowledgeChunk, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge file: %w", err)
	}
	defer f.Close()

	var chunks []model.KnowledgeChunk
	scanner := bufio.NewScanner(f)
	// 1536-dim embeddings serialize to roughly 30KB per line
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c model.KnowledgeChunk
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("knowledge file line %d: %w", line, err)
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("line-%d", line)
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read knowledge file: %w", err)
	}
	return chunks, nil
}
