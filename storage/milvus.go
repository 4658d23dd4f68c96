package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	openai "github.com/sashabaranov/go-openai"

	"videoAnalyze/config"
	"videoAnalyze/core"
)

// MilvusVectorStore keeps analyzed segments in a Milvus collection with an
// HNSW cosine index.
type MilvusVectorStore struct {
	mc   client.Client
	coll string
	dim  int
	oa   *openai.Client
	cfg  *config.Config
}

func newMilvusVectorStore(cfg *config.Config) (*MilvusVectorStore, error) {
	addr := cfg.MilvusAddr
	if addr == "" {
		addr = "localhost:19530"
	}
	coll := os.Getenv("MILVUS_COLLECTION")
	if coll == "" {
		coll = "analyzed_segments"
	}

	mc, err := client.NewClient(context.Background(), client.Config{
		Address:  addr,
		Username: os.Getenv("MILVUS_USERNAME"),
		Password: os.Getenv("MILVUS_PASSWORD"),
		APIKey:   os.Getenv("MILVUS_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusVectorStore{mc: mc, coll: coll, dim: embeddingDim, oa: apiClient(cfg), cfg: cfg}
	if err := s.ensureSchemaAndIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusVectorStore) ensureSchemaAndIndex() error {
	ctx := context.Background()
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema()
		schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("job_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128))
		schema.WithField(entity.NewField().WithName("start").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("end").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("transcript").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
		schema.WithField(entity.NewField().WithName("description").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *MilvusVectorStore) embed(text string) ([]float32, error) {
	resp, err := s.oa.CreateEmbeddings(context.Background(), openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(s.cfg.EmbeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %v", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Data[0].Embedding, nil
}

func (s *MilvusVectorStore) Upsert(jobID string, results []core.SegmentResult) int {
	if len(results) == 0 {
		return 0
	}

	jobIDs := make([]string, 0, len(results))
	starts := make([]float64, 0, len(results))
	ends := make([]float64, 0, len(results))
	transcripts := make([]string, 0, len(results))
	descriptions := make([]string, 0, len(results))
	vectors := make([][]float32, 0, len(results))

	for _, r := range results {
		v, err := s.embed(strings.ToLower(r.Transcript + " " + r.Description))
		if err != nil {
			continue
		}
		jobIDs = append(jobIDs, jobID)
		starts = append(starts, r.Start)
		ends = append(ends, r.End)
		transcripts = append(transcripts, r.Transcript)
		descriptions = append(descriptions, r.Description)
		vectors = append(vectors, v)
	}
	if len(vectors) == 0 {
		return 0
	}

	ctx := context.Background()
	_, err := s.mc.Insert(ctx, s.coll, "",
		entity.NewColumnVarChar("job_id", jobIDs),
		entity.NewColumnDouble("start", starts),
		entity.NewColumnDouble("end", ends),
		entity.NewColumnVarChar("transcript", transcripts),
		entity.NewColumnVarChar("description", descriptions),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	)
	if err != nil {
		return 0
	}
	return len(vectors)
}

func (s *MilvusVectorStore) Search(jobID string, query string, topK int) []core.Hit {
	v, err := s.embed(strings.ToLower(query))
	if err != nil {
		return nil
	}
	if topK <= 0 {
		topK = 5
	}

	ctx := context.Background()
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	filter := fmt.Sprintf("job_id == %q", jobID)
	res, err := s.mc.Search(ctx, s.coll, []string{}, filter,
		[]string{"start", "end", "transcript", "description"},
		[]entity.Vector{entity.FloatVector(v)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil
	}

	var hits []core.Hit
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			var h core.Hit
			if c, ok := cols["start"].(*entity.ColumnDouble); ok && i < len(c.Data()) {
				h.Start = c.Data()[i]
			}
			if c, ok := cols["end"].(*entity.ColumnDouble); ok && i < len(c.Data()) {
				h.End = c.Data()[i]
			}
			if c, ok := cols["transcript"].(*entity.ColumnVarChar); ok && i < len(c.Data()) {
				h.Transcript = c.Data()[i]
			}
			if c, ok := cols["description"].(*entity.ColumnVarChar); ok && i < len(c.Data()) {
				h.Description = c.Data()[i]
			}
			h.Score = float64(r.Scores[i])
			hits = append(hits, h)
		}
	}
	return hits
}
