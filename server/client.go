package server

import (
	"context"

	"google.golang.org/grpc"
)

// Client is a VectorDB client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a client on cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// DialOptions returns the dial options a connection to a Server needs.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, fullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Ping(ctx context.Context, req *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c, "Ping", req, opts...)
}

func (c *Client) CreateCollection(ctx context.Context, req *CreateCollectionRequest, opts ...grpc.CallOption) (*CreateCollectionResponse, error) {
	return invoke[CreateCollectionResponse](ctx, c, "CreateCollection", req, opts...)
}

func (c *Client) DropCollection(ctx context.Context, req *DropCollectionRequest, opts ...grpc.CallOption) (*DropCollectionResponse, error) {
	return invoke[DropCollectionResponse](ctx, c, "DropCollection", req, opts...)
}

func (c *Client) ListCollections(ctx context.Context, req *ListCollectionsRequest, opts ...grpc.CallOption) (*ListCollectionsResponse, error) {
	return invoke[ListCollectionsResponse](ctx, c, "ListCollections", req, opts...)
}

func (c *Client) Upsert(ctx context.Context, req *UpsertRequest, opts ...grpc.CallOption) (*UpsertResponse, error) {
	return invoke[UpsertResponse](ctx, c, "Upsert", req, opts...)
}

func (c *Client) Delete(ctx context.Context, req *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	return invoke[DeleteResponse](ctx, c, "Delete", req, opts...)
}

func (c *Client) Query(ctx context.Context, req *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error) {
	return invoke[QueryResponse](ctx, c, "Query", req, opts...)
}
