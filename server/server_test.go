package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/hupe1980/vecraft"
)

const bufSize = 1024 * 1024

type recorder struct {
	requests map[string]int
	last     vecraft.Stats
}

func (r *recorder) RecordRequest(method, status string) {
	r.requests[method+"/"+status]++
}

func (r *recorder) Refresh(stats vecraft.Stats) {
	r.last = stats
}

func startServer(t *testing.T, db *vecraft.DB, opts ...Option) *Client {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	srv := New(db, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		require.NoError(t, <-done)
	})
	return NewClient(conn)
}

func openDB(t *testing.T, opts ...vecraft.Option) *vecraft.DB {
	t.Helper()
	db, err := vecraft.Open(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPing(t *testing.T) {
	c := startServer(t, openDB(t))

	resp, err := c.Ping(context.Background(), &PingRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "pong: hi", resp.Message)
}

func TestCollectionFlow(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{requests: map[string]int{}}
	c := startServer(t, openDB(t), WithRequestRecorder(rec))

	created, err := c.CreateCollection(ctx, &CreateCollectionRequest{Name: "docs", Dims: 3, Metric: "cosine"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.Seq)
	assert.False(t, created.Durable)

	up, err := c.Upsert(ctx, &UpsertRequest{
		Collection: "docs",
		Points: []Point{
			{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]any{"lang": "go", "stars": 5}},
			{ID: "b", Vector: []float32{0, 1, 0}, Payload: map[string]any{"lang": "rust", "stars": 3}},
			{Vector: []float32{0.9, 0.1, 0}, Payload: map[string]any{"lang": "go", "stars": 1}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, up.Upserted)
	require.Len(t, up.IDs, 3)
	assert.NotEmpty(t, up.IDs[2])
	assert.Equal(t, uint64(4), up.LastSeq)

	q, err := c.Query(ctx, &QueryRequest{
		Collection:   "docs",
		Vector:       []float32{1, 0, 0},
		TopK:         10,
		Filters:      []Filter{{Key: "lang", Value: "go"}},
		WithPayloads: true,
	})
	require.NoError(t, err)
	require.Len(t, q.Hits, 2)
	assert.Equal(t, "a", q.Hits[0].ID)
	assert.Equal(t, up.IDs[2], q.Hits[1].ID)
	assert.Equal(t, "go", q.Hits[0].Payload["lang"])
	// Integer payloads keep their kind through the log and back.
	assert.Equal(t, json.Number("5"), q.Hits[0].Payload["stars"])

	q, err = c.Query(ctx, &QueryRequest{
		Collection: "docs",
		Vector:     []float32{1, 0, 0},
		TopK:       10,
		Filters:    []Filter{{Key: "stars", Op: ">=", Value: 3}},
	})
	require.NoError(t, err)
	require.Len(t, q.Hits, 2)
	assert.Equal(t, "a", q.Hits[0].ID)
	assert.Equal(t, "b", q.Hits[1].ID)
	assert.Nil(t, q.Hits[0].Payload)

	list, err := c.ListCollections(ctx, &ListCollectionsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Collections, 1)
	assert.Equal(t, CollectionInfo{Name: "docs", Dimension: 3, Metric: "cosine", Records: 3}, list.Collections[0])

	del, err := c.Delete(ctx, &DeleteRequest{Collection: "docs", ID: "b"})
	require.NoError(t, err)
	assert.True(t, del.Deleted)
	assert.False(t, del.Durable)

	_, err = c.DropCollection(ctx, &DropCollectionRequest{Name: "docs"})
	require.NoError(t, err)

	assert.Equal(t, 1, rec.requests["Upsert/OK"])
	assert.Equal(t, 2, rec.requests["Query/OK"])
	assert.Empty(t, rec.last.Collections)
}

func TestErrorCodes(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{requests: map[string]int{}}
	c := startServer(t, openDB(t), WithRequestRecorder(rec))

	_, err := c.CreateCollection(ctx, &CreateCollectionRequest{Name: "docs", Dims: 2, Metric: "dot"})
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{"unknown metric", func() error {
			_, err := c.CreateCollection(ctx, &CreateCollectionRequest{Name: "x", Dims: 2, Metric: "hamming"})
			return err
		}, codes.InvalidArgument},
		{"zero dims", func() error {
			_, err := c.CreateCollection(ctx, &CreateCollectionRequest{Name: "x", Dims: 0, Metric: "dot"})
			return err
		}, codes.InvalidArgument},
		{"duplicate collection", func() error {
			_, err := c.CreateCollection(ctx, &CreateCollectionRequest{Name: "docs", Dims: 2, Metric: "dot"})
			return err
		}, codes.AlreadyExists},
		{"upsert unknown collection", func() error {
			_, err := c.Upsert(ctx, &UpsertRequest{Collection: "nope", Points: []Point{{ID: "a", Vector: []float32{1, 1}}}})
			return err
		}, codes.NotFound},
		{"dimension mismatch", func() error {
			_, err := c.Upsert(ctx, &UpsertRequest{Collection: "docs", Points: []Point{{ID: "a", Vector: []float32{1}}}})
			return err
		}, codes.InvalidArgument},
		{"unsupported payload", func() error {
			_, err := c.Upsert(ctx, &UpsertRequest{Collection: "docs", Points: []Point{{ID: "a", Vector: []float32{1, 1}, Payload: map[string]any{"nested": map[string]any{"x": 1}}}}})
			return err
		}, codes.InvalidArgument},
		{"zero top_k", func() error {
			_, err := c.Query(ctx, &QueryRequest{Collection: "docs", Vector: []float32{1, 1}})
			return err
		}, codes.InvalidArgument},
		{"bad filter operator", func() error {
			_, err := c.Query(ctx, &QueryRequest{Collection: "docs", Vector: []float32{1, 1}, TopK: 1, Filters: []Filter{{Key: "k", Op: "~", Value: 1}}})
			return err
		}, codes.InvalidArgument},
		{"query unknown collection", func() error {
			_, err := c.Query(ctx, &QueryRequest{Collection: "nope", Vector: []float32{1, 1}, TopK: 1})
			return err
		}, codes.NotFound},
		{"drop unknown collection", func() error {
			_, err := c.DropCollection(ctx, &DropCollectionRequest{Name: "nope"})
			return err
		}, codes.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err), err.Error())
		})
	}

	assert.Equal(t, 1, rec.requests["Query/NotFound"])
	assert.Equal(t, 2, rec.requests["Query/InvalidArgument"])
}

func TestUpsertPartialFailureNamesAppliedPoints(t *testing.T) {
	ctx := context.Background()
	c := startServer(t, openDB(t))

	_, err := c.CreateCollection(ctx, &CreateCollectionRequest{Name: "docs", Dims: 2, Metric: "dot"})
	require.NoError(t, err)

	_, err = c.Upsert(ctx, &UpsertRequest{
		Collection: "docs",
		Points: []Point{
			{ID: "a", Vector: []float32{1, 0}},
			{ID: "b", Vector: []float32{0, 1}},
			{ID: "c", Vector: []float32{1}},
			{ID: "d", Vector: []float32{1, 1}},
		},
	})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Contains(t, st.Message(), "applied 2 of 4 points: a,b")

	list, err := c.ListCollections(ctx, &ListCollectionsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Collections, 1)
	assert.Equal(t, 2, list.Collections[0].Records)

	_, err = c.Upsert(ctx, &UpsertRequest{Collection: "docs", Points: []Point{{ID: "e", Vector: []float32{1}}}})
	require.Error(t, err)
	assert.NotContains(t, status.Convert(err).Message(), "applied")
}

func TestDurableServerRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wal.log")

	db, err := vecraft.Open(ctx, vecraft.WithWAL(path))
	require.NoError(t, err)
	c := startServer(t, db)

	created, err := c.CreateCollection(ctx, &CreateCollectionRequest{Name: "docs", Dims: 2, Metric: "l2"})
	require.NoError(t, err)
	assert.True(t, created.Durable)
	_, err = c.Upsert(ctx, &UpsertRequest{Collection: "docs", Points: []Point{{ID: "p", Vector: []float32{3, 4}}}})
	require.NoError(t, err)
	del, err := c.Delete(ctx, &DeleteRequest{Collection: "docs", ID: "missing"})
	require.NoError(t, err)
	assert.False(t, del.Deleted)
	assert.True(t, del.Durable)
	require.NoError(t, db.Close())

	c = startServer(t, openDB(t, vecraft.WithWAL(path)))
	q, err := c.Query(ctx, &QueryRequest{Collection: "docs", Vector: []float32{0, 0}, TopK: 1, WithVectors: true})
	require.NoError(t, err)
	require.Len(t, q.Hits, 1)
	assert.Equal(t, "p", q.Hits[0].ID)
	assert.InDelta(t, 5.0, q.Hits[0].Distance, 1e-6)
	assert.Equal(t, []float32{3, 4}, q.Hits[0].Vector)
}
