package kvclient

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Full method names on the remote KV service. No .proto-generated stub
// backs these; conn.Invoke dispatches by name directly, using the
// jsonCodec from codec.go that Connect forces onto every call via
// grpc.ForceCodec, which is sufficient for a handful of
// simple request/response pairs.
const (
	methodPut     = "/sectbattle.kv.KV/Put"
	methodGet     = "/sectbattle.kv.KV/Get"
	methodOut     = "/sectbattle.kv.KV/Out"
	methodScan    = "/sectbattle.kv.KV/GetForwardMatchKeys"
	methodOptmize = "/sectbattle.kv.KV/Optimize"
)

// grpcClient is the production Client, talking to the remote KV store
// over a gRPC connection.
type grpcClient struct {
	conn *grpc.ClientConn
}

func NewGRPCClient() Client { return &grpcClient{} }

func (c *grpcClient) Connect(ctx context.Context, addr string) error {
	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
		grpc.WithBlock(),
	)
	if err != nil {
		return fmt.Errorf("kvclient: connect %s: %w", addr, err)
	}
	c.conn = conn
	return nil
}

func (c *grpcClient) Put(ctx context.Context, key string, value []byte) error {
	var resp putResponse
	if err := c.conn.Invoke(ctx, methodPut, &putRequest{Key: key, Value: value}, &resp); err != nil {
		return fmt.Errorf("kvclient: put %s: %w", key, err)
	}
	return nil
}

func (c *grpcClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var resp getResponse
	if err := c.conn.Invoke(ctx, methodGet, &getRequest{Key: key}, &resp); err != nil {
		return nil, false, fmt.Errorf("kvclient: get %s: %w", key, err)
	}
	return resp.Value, resp.Found, nil
}

func (c *grpcClient) Out(ctx context.Context, key string) error {
	var resp outResponse
	if err := c.conn.Invoke(ctx, methodOut, &outRequest{Key: key}, &resp); err != nil {
		return fmt.Errorf("kvclient: out %s: %w", key, err)
	}
	return nil
}

func (c *grpcClient) GetForwardMatchKeys(ctx context.Context, prefix string, limit int, sink func(key string) bool) error {
	var resp scanResponse
	if err := c.conn.Invoke(ctx, methodScan, &scanRequest{Prefix: prefix, Limit: limit}, &resp); err != nil {
		return fmt.Errorf("kvclient: scan %s: %w", prefix, err)
	}
	for _, k := range resp.Keys {
		if !sink(k) {
			break
		}
	}
	return nil
}

func (c *grpcClient) Optimize(ctx context.Context) error {
	var resp optimizeResponse
	if err := c.conn.Invoke(ctx, methodOptmize, &optimizeRequest{}, &resp); err != nil {
		return fmt.Errorf("kvclient: optimize: %w", err)
	}
	return nil
}

func (c *grpcClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
