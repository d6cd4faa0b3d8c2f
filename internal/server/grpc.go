package server

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"vexdb/internal/command"
	"vexdb/internal/controller"
	"vexdb/internal/errs"
	logpkg "vexdb/internal/log"
	"vexdb/internal/noderpc"
	"vexdb/internal/vectorindex"
)

// DispatchRegionCmdRequest carries one coordinator command.
type DispatchRegionCmdRequest struct {
	Command *command.RegionCmd `json:"command"`
}

// DispatchRegionCmdResponse reports the synchronous dispatch outcome.
type DispatchRegionCmdResponse struct{}

// RegionControlServer is the coordinator-facing dispatch service.
type RegionControlServer interface {
	DispatchRegionCmd(context.Context, *DispatchRegionCmdRequest) (*DispatchRegionCmdResponse, error)
}

type regionControlServerWrapper interface {
	RegionControlServer
}

var regionControlServiceDesc = grpc.ServiceDesc{
	ServiceName: "vexdb.store.RegionControl",
	HandlerType: (*regionControlServerWrapper)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "DispatchRegionCmd", Handler: _RegionControl_DispatchRegionCmd_Handler},
	},
}

// RegisterRegionControlServer registers the dispatch service.
func RegisterRegionControlServer(s *grpc.Server, srv RegionControlServer) {
	s.RegisterService(&regionControlServiceDesc, srv)
}

func _RegionControl_DispatchRegionCmd_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DispatchRegionCmdRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegionControlServer).DispatchRegionCmd(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vexdb.store.RegionControl/DispatchRegionCmd"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RegionControlServer).DispatchRegionCmd(ctx, req.(*DispatchRegionCmdRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// grpcServer hosts the region control dispatch service and the peer-facing
// node service.
type grpcServer struct {
	addr       string
	controller *controller.Controller
	indexes    *vectorindex.Manager
	server     *grpc.Server
	log        *logpkg.Logger
}

func newGRPCServer(addr string, ctrl *controller.Controller, indexes *vectorindex.Manager) *grpcServer {
	return &grpcServer{
		addr:       addr,
		controller: ctrl,
		indexes:    indexes,
		log:        logpkg.New("grpc"),
	}
}

func (g *grpcServer) Start() error {
	if g.addr == "" {
		return nil
	}
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return err
	}
	g.server = grpc.NewServer()
	RegisterRegionControlServer(g.server, g)
	noderpc.RegisterNodeServer(g.server, noderpc.NewService(func(regionID uint64) bool {
		return g.indexes.GetVectorIndex(regionID) != nil
	}))

	go func() {
		if err := g.server.Serve(lis); err != nil {
			g.log.Errorf("grpc serve: %v", err)
		}
	}()
	g.log.Infof("grpc listening on %s", g.addr)
	return nil
}

func (g *grpcServer) Stop() {
	if g.server != nil {
		g.server.GracefulStop()
	}
}

// DispatchRegionCmd pre-validates cheaply at ingress, then persists and
// routes the command.
func (g *grpcServer) DispatchRegionCmd(ctx context.Context, req *DispatchRegionCmdRequest) (*DispatchRegionCmdResponse, error) {
	if req.Command == nil {
		return nil, errs.GRPCStatus(errs.New(errs.KindIllegalParameters, "command is missing")).Err()
	}
	if validate := g.controller.GetValidater(req.Command.Type); validate != nil {
		if err := validate(req.Command); err != nil {
			return nil, errs.GRPCStatus(err).Err()
		}
	}
	if err := g.controller.DispatchRegionControlCommand(ctx, req.Command); err != nil {
		return nil, errs.GRPCStatus(err).Err()
	}
	return &DispatchRegionCmdResponse{}, nil
}
