package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"

	"github.com/hupe1980/vecraft"
	"github.com/hupe1980/vecraft/distance"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "vecraft.v1.VectorDB"

// serviceDesc describes the service for grpc.Server.RegisterService.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VectorDBServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unary("Ping", VectorDBServer.Ping)},
		{MethodName: "CreateCollection", Handler: unary("CreateCollection", VectorDBServer.CreateCollection)},
		{MethodName: "DropCollection", Handler: unary("DropCollection", VectorDBServer.DropCollection)},
		{MethodName: "ListCollections", Handler: unary("ListCollections", VectorDBServer.ListCollections)},
		{MethodName: "Upsert", Handler: unary("Upsert", VectorDBServer.Upsert)},
		{MethodName: "Delete", Handler: unary("Delete", VectorDBServer.Delete)},
		{MethodName: "Query", Handler: unary("Query", VectorDBServer.Query)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vecraft/v1/vectordb",
}

// VectorDBServer is the server API of the VectorDB service.
type VectorDBServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	CreateCollection(context.Context, *CreateCollectionRequest) (*CreateCollectionResponse, error)
	DropCollection(context.Context, *DropCollectionRequest) (*DropCollectionResponse, error)
	ListCollections(context.Context, *ListCollectionsRequest) (*ListCollectionsResponse, error)
	Upsert(context.Context, *UpsertRequest) (*UpsertResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
}

var _ VectorDBServer = (*Service)(nil)

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(VectorDBServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(VectorDBServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		})
	}
}

// Service implements the VectorDB methods on a DB.
type Service struct {
	db *vecraft.DB
}

// NewService wraps db.
func NewService(db *vecraft.DB) *Service {
	return &Service{db: db}
}

// Register adds the service to r.
func (s *Service) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&serviceDesc, s)
}

func (s *Service) Ping(_ context.Context, req *PingRequest) (*PingResponse, error) {
	return &PingResponse{Message: "pong: " + req.Message}, nil
}

func (s *Service) CreateCollection(ctx context.Context, req *CreateCollectionRequest) (*CreateCollectionResponse, error) {
	metric, err := distance.ParseMetric(req.Metric)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %w", vecraft.ErrInvalidArgument, err))
	}
	res, err := s.db.CreateCollection(ctx, req.Name, req.Dims, metric)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateCollectionResponse{Seq: res.Seq, Durable: res.Durable}, nil
}

func (s *Service) DropCollection(ctx context.Context, req *DropCollectionRequest) (*DropCollectionResponse, error) {
	res, err := s.db.DropCollection(ctx, req.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DropCollectionResponse{Seq: res.Seq, Durable: res.Durable}, nil
}

func (s *Service) ListCollections(_ context.Context, _ *ListCollectionsRequest) (*ListCollectionsResponse, error) {
	infos := s.db.Collections()
	resp := &ListCollectionsResponse{Collections: make([]CollectionInfo, len(infos))}
	for i, info := range infos {
		resp.Collections[i] = CollectionInfo{
			Name:      info.Name,
			Dimension: info.Dimension,
			Metric:    info.Metric.String(),
			Records:   info.Records,
		}
	}
	return resp, nil
}

// Upsert applies the points in order. It is not atomic: a failing point
// aborts the call and the points before it stay applied. Their ids are
// listed in the status message.
func (s *Service) Upsert(ctx context.Context, req *UpsertRequest) (*UpsertResponse, error) {
	if _, err := s.db.Collection(req.Collection); err != nil {
		return nil, toStatus(err)
	}

	recs := make([]vecraft.Record, len(req.Points))
	for i, p := range req.Points {
		rec, err := p.record()
		if err != nil {
			return nil, toStatus(err)
		}
		recs[i] = rec
	}

	results, err := s.db.UpsertBatch(ctx, req.Collection, recs)
	if err != nil {
		return nil, toStatus(partialUpsertError(err, results, len(recs)))
	}

	resp := &UpsertResponse{IDs: make([]string, len(results))}
	for i, r := range results {
		resp.IDs[i] = r.ID
		if r.Inserted {
			resp.Upserted++
		}
		resp.LastSeq = r.Seq
		resp.Durable = r.Durable
	}
	return resp, nil
}

// partialUpsertError names the points a failed batch left applied.
func partialUpsertError(err error, applied []vecraft.MutationResult, total int) error {
	if len(applied) == 0 {
		return err
	}
	ids := make([]string, len(applied))
	for i, r := range applied {
		ids[i] = r.ID
	}
	return fmt.Errorf("%w (applied %d of %d points: %s)", err, len(applied), total, strings.Join(ids, ","))
}

func (s *Service) Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	res, err := s.db.Delete(ctx, req.Collection, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DeleteResponse{Deleted: res.Deleted, Seq: res.Seq, Durable: res.Durable}, nil
}

func (s *Service) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	fs, err := req.filterSet()
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %w", vecraft.ErrInvalidArgument, err))
	}

	opts := []vecraft.QueryOption{vecraft.WithFilter(fs)}
	if req.MetricOverride != "" {
		m, err := distance.ParseMetric(req.MetricOverride)
		if err != nil {
			return nil, toStatus(fmt.Errorf("%w: %w", vecraft.ErrInvalidArgument, err))
		}
		opts = append(opts, vecraft.WithMetric(m))
	}
	if req.WithPayloads {
		opts = append(opts, vecraft.WithMetadata())
	}
	if req.WithVectors {
		opts = append(opts, vecraft.WithVector())
	}
	if req.TimeoutMillis > 0 {
		opts = append(opts, vecraft.WithTimeout(time.Duration(req.TimeoutMillis)*time.Millisecond))
	}

	results, err := s.db.Query(ctx, req.Collection, req.Vector, req.TopK, opts...)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &QueryResponse{Hits: make([]ScoredPoint, len(results))}
	for i, r := range results {
		resp.Hits[i] = scoredPoint(r)
	}
	return resp, nil
}
