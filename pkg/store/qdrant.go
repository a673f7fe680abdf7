package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/docaihq/docai/pkg/domain"
	"github.com/docaihq/docai/pkg/log"
)

const (
	dialTimeout   = 30 * time.Second
	upsertTimeout = 30 * time.Second

	distance = pb.Distance_Euclid
)

var waitTrue = true

// QdrantStore implements the partitioned vector store over qdrant's
// grpc API. Every partition is its own collection, created lazily and
// dropped when its file is deleted.
type QdrantStore struct {
	points        pb.PointsClient
	collections   pb.CollectionsClient
	conn          *grpc.ClientConn
	searchTimeout time.Duration
	logger        *slog.Logger
}

func NewQdrant(address string, searchTimeout time.Duration) (*QdrantStore, error) {
	if searchTimeout <= 0 {
		searchTimeout = 5 * time.Second
	}
	address = strings.TrimPrefix(address, "http://")
	address = strings.TrimPrefix(address, "https://")

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantStore{
		points:        pb.NewPointsClient(conn),
		collections:   pb.NewCollectionsClient(conn),
		conn:          conn,
		searchTimeout: searchTimeout,
		logger:        log.WithModule("vectorstore"),
	}, nil
}

// EnsurePartition creates the partition's collection if absent.
// Creation is idempotent; an existing collection is reused as-is.
func (s *QdrantStore) EnsurePartition(ctx context.Context, partition string, dim int) error {
	exists, err := s.HasPartition(ctx, partition)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: partition,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dim),
					Distance: distance,
				},
			},
		},
	})
	if err != nil {
		// Lost a create race: fine as long as the collection is there now.
		if again, checkErr := s.HasPartition(ctx, partition); checkErr == nil && again {
			return nil
		}
		return fmt.Errorf("%w: create partition %s: %v", domain.ErrIndexFailed, partition, err)
	}
	s.logger.Info("created vector partition", "partition", partition, "dim", dim)
	return nil
}

func (s *QdrantStore) HasPartition(ctx context.Context, partition string) (bool, error) {
	resp, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("%w: list partitions: %v", domain.ErrIndexFailed, err)
	}
	for _, col := range resp.Collections {
		if col.Name == partition {
			return true, nil
		}
	}
	return false, nil
}

func (s *QdrantStore) Insert(ctx context.Context, partition string, points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, upsertTimeout)
	defer cancel()

	now := time.Now().Unix()
	pbPoints := make([]*pb.PointStruct, 0, len(points))
	for _, p := range points {
		pbPoints = append(pbPoints, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				"file_id":     {Kind: &pb.Value_StringValue{StringValue: p.FileID}},
				"level_index": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.LevelIndex)}},
				"content":     {Kind: &pb.Value_StringValue{StringValue: p.Content}},
				"indexed_at":  {Kind: &pb.Value_IntegerValue{IntegerValue: now}},
			},
		})
	}

	// Wait=true so the insert is flushed before ingest reports success.
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: partition,
		Points:         pbPoints,
		Wait:           &waitTrue,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert into %s: %v", domain.ErrIndexFailed, partition, err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, partition string, vector []float32, limit int) ([]domain.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: partition,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %v", domain.ErrIndexFailed, partition, err)
	}

	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, point := range resp.Result {
		r := domain.SearchResult{Score: point.Score}
		if payload := point.Payload; payload != nil {
			if v, ok := payload["content"]; ok {
				r.Content = v.GetStringValue()
			}
			if v, ok := payload["file_id"]; ok {
				r.FileID = v.GetStringValue()
			}
			if v, ok := payload["level_index"]; ok {
				r.LevelIndex = int(v.GetIntegerValue())
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// DropPartition deletes the partition's collection. Dropping an absent
// partition is not an error.
func (s *QdrantStore) DropPartition(ctx context.Context, partition string) error {
	exists, err := s.HasPartition(ctx, partition)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: partition}); err != nil {
		return fmt.Errorf("%w: drop partition %s: %v", domain.ErrIndexFailed, partition, err)
	}
	s.logger.Info("dropped vector partition", "partition", partition)
	return nil
}

func (s *QdrantStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
