package noderpc

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const checkVectorIndexMethod = "/vexdb.node.Node/CheckVectorIndex"

// Checker asks peers whether they hold a vector index. Split validation uses
// it to confirm followers before permitting an index-region split.
type Checker interface {
	CheckVectorIndex(ctx context.Context, vectorIndexID uint64, addr string) (bool, error)
}

// Client is a grpc-backed Checker with cached connections per peer address.
type Client struct {
	mu      sync.Mutex
	conns   map[string]*grpc.ClientConn
	timeout time.Duration
}

// NewClient builds a peer RPC client.
func NewClient() *Client {
	return &Client{
		conns:   make(map[string]*grpc.ClientConn),
		timeout: 2 * time.Second,
	}
}

func (c *Client) conn(addr string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, err
	}
	c.conns[addr] = conn
	return conn, nil
}

// CheckVectorIndex queries one peer for index presence.
func (c *Client) CheckVectorIndex(ctx context.Context, vectorIndexID uint64, addr string) (bool, error) {
	conn, err := c.conn(addr)
	if err != nil {
		return false, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &CheckVectorIndexRequest{VectorIndexID: vectorIndexID}
	resp := &CheckVectorIndexResponse{}
	if err := conn.Invoke(callCtx, checkVectorIndexMethod, req, resp); err != nil {
		return false, err
	}
	return resp.IsExist, nil
}

// Close releases every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	for addr, conn := range c.conns {
		if e := conn.Close(); err == nil {
			err = e
		}
		delete(c.conns, addr)
	}
	return err
}
