package noderpc

import (
	"context"

	"google.golang.org/grpc"
)

// CheckVectorIndexRequest asks a peer whether it holds a vector index.
type CheckVectorIndexRequest struct {
	VectorIndexID uint64 `json:"vector_index_id"`
}

// CheckVectorIndexResponse reports index presence on the peer.
type CheckVectorIndexResponse struct {
	IsExist bool `json:"is_exist"`
}

// NodeServer is the peer-facing service every store exposes.
type NodeServer interface {
	CheckVectorIndex(context.Context, *CheckVectorIndexRequest) (*CheckVectorIndexResponse, error)
}

type nodeServerWrapper interface {
	NodeServer
}

var nodeServiceDesc = grpc.ServiceDesc{
	ServiceName: "vexdb.node.Node",
	HandlerType: (*nodeServerWrapper)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckVectorIndex", Handler: _Node_CheckVectorIndex_Handler},
	},
}

// RegisterNodeServer registers the node service on a grpc server.
func RegisterNodeServer(s *grpc.Server, srv NodeServer) {
	s.RegisterService(&nodeServiceDesc, srv)
}

func _Node_CheckVectorIndex_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CheckVectorIndexRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NodeServer).CheckVectorIndex(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vexdb.node.Node/CheckVectorIndex"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NodeServer).CheckVectorIndex(ctx, req.(*CheckVectorIndexRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Service answers peer queries from the local vector index manager.
type Service struct {
	holdsIndex func(regionID uint64) bool
}

// NewService builds the node service over an index presence check.
func NewService(holdsIndex func(regionID uint64) bool) *Service {
	return &Service{holdsIndex: holdsIndex}
}

// CheckVectorIndex reports whether this store holds the index.
func (s *Service) CheckVectorIndex(_ context.Context, req *CheckVectorIndexRequest) (*CheckVectorIndexResponse, error) {
	return &CheckVectorIndexResponse{IsExist: s.holdsIndex(req.VectorIndexID)}, nil
}
