package storage

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"videoAnalyze/config"
	"videoAnalyze/core"
)

// VectorStore abstracts the storage backend for analyzed segments.
type VectorStore interface {
	Upsert(jobID string, results []core.SegmentResult) int
	Search(jobID string, query string, topK int) []core.Hit
}

// NewVectorStore picks a backend via the STORE env var (memory, pgvector,
// milvus). Backends needing the embedding API fall back to memory when the
// API is not configured or the backend cannot be reached.
func NewVectorStore(cfg *config.Config) VectorStore {
	storeKind := strings.ToLower(strings.TrimSpace(os.Getenv("STORE")))
	switch storeKind {
	case "milvus":
		if !cfg.HasValidAPI() {
			config.PrintConfigInstructions()
			fmt.Println("Warning: API configuration required for Milvus store, falling back to memory store")
			return NewMemoryVectorStore()
		}
		s, err := newMilvusVectorStore(cfg)
		if err != nil {
			fmt.Printf("Warning: Failed to initialize Milvus store (%v), falling back to memory store\n", err)
			return NewMemoryVectorStore()
		}
		return s
	case "pgvector":
		if !cfg.HasValidAPI() {
			config.PrintConfigInstructions()
			fmt.Println("Warning: API configuration required for PgVector store, falling back to memory store")
			return NewMemoryVectorStore()
		}
		s, err := newPgVectorStore(cfg)
		if err != nil {
			fmt.Printf("Warning: Failed to initialize PgVector store (%v), falling back to memory store\n", err)
			return NewMemoryVectorStore()
		}
		return s
	default:
		return NewMemoryVectorStore()
	}
}

// ---------------- Memory implementation (default fallback) ----------------

type MemoryVectorStore struct {
	mu   sync.RWMutex
	docs map[string][]document // jobID -> docs
}

type document struct {
	start, end  float64
	transcript  string
	description string
	embed       map[string]float64 // term -> weight
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{docs: map[string][]document{}}
}

func (s *MemoryVectorStore) Upsert(jobID string, results []core.SegmentResult) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]document, 0, len(results))
	for _, r := range results {
		docs = append(docs, document{
			start:       r.Start,
			end:         r.End,
			transcript:  r.Transcript,
			description: r.Description,
			embed:       embedText(strings.ToLower(r.Transcript + " " + r.Description)),
		})
	}
	s.docs[jobID] = docs
	return len(docs)
}

func (s *MemoryVectorStore) Search(jobID string, query string, topK int) []core.Hit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.docs[jobID]
	qv := embedText(strings.ToLower(query))

	type scored struct {
		i     int
		score float64
	}
	scores := make([]scored, 0, len(docs))
	for i, d := range docs {
		scores = append(scores, scored{i, cosine(qv, d.embed)})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if topK <= 0 || topK > len(scores) {
		topK = len(scores)
		if topK > 5 {
			topK = 5
		}
	}
	hits := make([]core.Hit, 0, topK)
	for _, sc := range scores[:topK] {
		d := docs[sc.i]
		hits = append(hits, core.Hit{Score: sc.score, Start: d.start, End: d.end, Transcript: d.transcript, Description: d.description})
	}
	return hits
}

// embedText builds a normalized term-frequency vector. Crude, but keeps the
// memory backend dependency-free for search over a handful of segments.
func embedText(text string) map[string]float64 {
	terms := strings.Fields(text)
	vec := make(map[string]float64, len(terms))
	for _, t := range terms {
		vec[t]++
	}
	var norm float64
	for _, w := range vec {
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for t := range vec {
			vec[t] /= norm
		}
	}
	return vec
}

func cosine(a, b map[string]float64) float64 {
	var dot float64
	for t, w := range a {
		if w2, ok := b[t]; ok {
			dot += w * w2
		}
	}
	return dot
}
