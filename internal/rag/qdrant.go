package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// indexedFields are the payload fields that receive keyword indexes so that
// scoped searches and scans stay fast as collections grow.
var indexedFields = []string{"course_id", "module_id", "source_type"}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// and its payload indexes exist, and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// Client exposes the underlying gRPC client for health probes.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// ensureCollection creates the Qdrant collection and its payload indexes if
// they do not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}

	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
		}
	}

	// Index creation is idempotent; re-running on an existing collection is a no-op.
	for _, field := range indexedFields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.Collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to index payload field %q: %w", field, err)
		}
	}

	return nil
}

// Upsert stores or updates a batch of records with their pre-computed
// embeddings. Batching and retry policy live in the ingestion pipeline;
// this method issues a single upsert call.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(payloadMap(rec.Payload)),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search scoped by filters and returns
// the top results at or above scoreThreshold.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, f Filters, limit int, scoreThreshold float32) ([]Result, error) {
	lim := uint64(limit)
	query := &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         buildFilter(f),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if scoreThreshold > 0 {
		query.ScoreThreshold = &scoreThreshold
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, p := range points {
		results = append(results, Result{
			ID:      p.Id.GetUuid(),
			Score:   p.Score,
			Payload: payloadFromMap(p.Payload),
		})
	}

	return results, nil
}

// Scan retrieves up to limit records matching filters without similarity
// ranking, using Qdrant's scroll API. Result Score is left at zero; the
// caller assigns scores and ordering.
func (s *QdrantStore) Scan(ctx context.Context, f Filters, limit int) ([]Result, error) {
	lim := uint32(limit)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Filter:         buildFilter(f),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: scroll failed: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, p := range points {
		results = append(results, Result{
			ID:      p.Id.GetUuid(),
			Payload: payloadFromMap(p.Payload),
		})
	}

	return results, nil
}

// Delete removes records from the collection by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// buildFilter translates Filters into a Qdrant must-match filter.
// Returns nil when no fields are set so unscoped queries skip filtering.
func buildFilter(f Filters) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.CourseID != "" {
		must = append(must, qdrant.NewMatch("course_id", f.CourseID))
	}
	if f.ModuleID != "" {
		must = append(must, qdrant.NewMatch("module_id", f.ModuleID))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// payloadMap flattens a Payload into the map shape stored in Qdrant.
// Optional locators are omitted rather than stored as nulls.
func payloadMap(p Payload) map[string]any {
	m := map[string]any{
		"text":         p.Text,
		"course_id":    p.CourseID,
		"module_id":    p.ModuleID,
		"source_type":  p.SourceType,
		"source_uri":   p.SourceURI,
		"chunk_index":  int64(p.ChunkIndex),
		"content_hash": p.ContentHash,
		"created_at":   p.CreatedAt,
	}
	if p.VideoID != "" {
		m["video_id"] = p.VideoID
	}
	if p.NotesID != "" {
		m["notes_id"] = p.NotesID
	}
	if p.PageNumber != nil {
		m["page_number"] = int64(*p.PageNumber)
	}
	if p.StartTimeSeconds != nil {
		m["start_time_seconds"] = int64(*p.StartTimeSeconds)
	}
	if p.EndTimeSeconds != nil {
		m["end_time_seconds"] = int64(*p.EndTimeSeconds)
	}
	return m
}

// payloadFromMap reconstructs a Payload from a stored Qdrant value map.
func payloadFromMap(m map[string]*qdrant.Value) Payload {
	var p Payload
	if m == nil {
		return p
	}
	p.Text = stringField(m, "text")
	p.CourseID = stringField(m, "course_id")
	p.ModuleID = stringField(m, "module_id")
	p.SourceType = stringField(m, "source_type")
	p.SourceURI = stringField(m, "source_uri")
	p.VideoID = stringField(m, "video_id")
	p.NotesID = stringField(m, "notes_id")
	p.ContentHash = stringField(m, "content_hash")
	p.CreatedAt = stringField(m, "created_at")
	if v, ok := m["chunk_index"]; ok {
		p.ChunkIndex = int(v.GetIntegerValue())
	}
	p.PageNumber = intField(m, "page_number")
	p.StartTimeSeconds = intField(m, "start_time_seconds")
	p.EndTimeSeconds = intField(m, "end_time_seconds")
	return p
}

func stringField(m map[string]*qdrant.Value, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func intField(m map[string]*qdrant.Value, key string) *int {
	v, ok := m[key]
	if !ok {
		return nil
	}
	if _, isNull := v.GetKind().(*qdrant.Value_NullValue); isNull {
		return nil
	}
	n := int(v.GetIntegerValue())
	return &n
}
