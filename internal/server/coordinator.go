package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"vexdb/internal/heartbeat"
	logpkg "vexdb/internal/log"
	"vexdb/internal/noderpc"
)

const storeHeartbeatMethod = "/vexdb.coordinator.Coordinator/StoreHeartbeat"

// StoreHeartbeatRequest wraps the heartbeat for the coordinator RPC.
type StoreHeartbeatRequest struct {
	Heartbeat heartbeat.StoreHeartbeat `json:"heartbeat"`
}

// StoreHeartbeatResponse is the coordinator's (currently empty) reply.
type StoreHeartbeatResponse struct{}

// CoordinatorClient implements heartbeat.Coordinator over gRPC.
type CoordinatorClient struct {
	conn *grpc.ClientConn
	log  *logpkg.Logger
}

// NewCoordinatorClient connects to the coordinator; target may be empty, in
// which case nil is returned and heartbeats stay local.
func NewCoordinatorClient(target string) (*CoordinatorClient, error) {
	if target == "" {
		return nil, nil
	}
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(noderpc.CodecName)),
	)
	if err != nil {
		return nil, err
	}
	return &CoordinatorClient{conn: conn, log: logpkg.New("coordinator")}, nil
}

// HandleHeartbeat posts one store heartbeat; failures are logged, the next
// beat retries.
func (c *CoordinatorClient) HandleHeartbeat(hb heartbeat.StoreHeartbeat) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := &StoreHeartbeatRequest{Heartbeat: hb}
	resp := &StoreHeartbeatResponse{}
	if err := c.conn.Invoke(ctx, storeHeartbeatMethod, req, resp); err != nil {
		c.log.Warnf("store heartbeat failed: %v", err)
	}
}

// Close releases the connection.
func (c *CoordinatorClient) Close() error {
	return c.conn.Close()
}
