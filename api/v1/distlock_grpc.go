package distlockv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

const ServiceName = "distlock.v1.Distlock"

const (
	Distlock_CreateLock_FullMethodName  = "/" + ServiceName + "/CreateLock"
	Distlock_AcquireLock_FullMethodName = "/" + ServiceName + "/AcquireLock"
	Distlock_ReleaseLock_FullMethodName = "/" + ServiceName + "/ReleaseLock"
	Distlock_GetLock_FullMethodName     = "/" + ServiceName + "/GetLock"
	Distlock_ListLocks_FullMethodName   = "/" + ServiceName + "/ListLocks"
	Distlock_DeleteLock_FullMethodName  = "/" + ServiceName + "/DeleteLock"
)

// DistlockClient is the client API for the Distlock service.
type DistlockClient interface {
	CreateLock(ctx context.Context, in *CreateLockRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)
	AcquireLock(ctx context.Context, in *AcquireLockRequest, opts ...grpc.CallOption) (*Lock, error)
	ReleaseLock(ctx context.Context, in *ReleaseLockRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)
	GetLock(ctx context.Context, in *GetLockRequest, opts ...grpc.CallOption) (*Lock, error)
	ListLocks(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*ListLocksResponse, error)
	DeleteLock(ctx context.Context, in *DeleteLockRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type distlockClient struct {
	cc grpc.ClientConnInterface
}

func NewDistlockClient(cc grpc.ClientConnInterface) DistlockClient {
	return &distlockClient{cc}
}

// invoke runs one unary call with the json codec forced
func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *distlockClient) CreateLock(ctx context.Context, in *CreateLockRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, Distlock_CreateLock_FullMethodName, in, opts)
}

func (c *distlockClient) AcquireLock(ctx context.Context, in *AcquireLockRequest, opts ...grpc.CallOption) (*Lock, error) {
	return invoke[Lock](ctx, c.cc, Distlock_AcquireLock_FullMethodName, in, opts)
}

func (c *distlockClient) ReleaseLock(ctx context.Context, in *ReleaseLockRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, Distlock_ReleaseLock_FullMethodName, in, opts)
}

func (c *distlockClient) GetLock(ctx context.Context, in *GetLockRequest, opts ...grpc.CallOption) (*Lock, error) {
	return invoke[Lock](ctx, c.cc, Distlock_GetLock_FullMethodName, in, opts)
}

func (c *distlockClient) ListLocks(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*ListLocksResponse, error) {
	return invoke[ListLocksResponse](ctx, c.cc, Distlock_ListLocks_FullMethodName, in, opts)
}

func (c *distlockClient) DeleteLock(ctx context.Context, in *DeleteLockRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, Distlock_DeleteLock_FullMethodName, in, opts)
}

// DistlockServer is the server API for the Distlock service.
// Implementations must embed UnimplementedDistlockServer.
type DistlockServer interface {
	CreateLock(context.Context, *CreateLockRequest) (*emptypb.Empty, error)
	AcquireLock(context.Context, *AcquireLockRequest) (*Lock, error)
	ReleaseLock(context.Context, *ReleaseLockRequest) (*emptypb.Empty, error)
	GetLock(context.Context, *GetLockRequest) (*Lock, error)
	ListLocks(context.Context, *emptypb.Empty) (*ListLocksResponse, error)
	DeleteLock(context.Context, *DeleteLockRequest) (*emptypb.Empty, error)
	mustEmbedUnimplementedDistlockServer()
}

// UnimplementedDistlockServer answers every method with codes.Unimplemented.
type UnimplementedDistlockServer struct{}

func (UnimplementedDistlockServer) CreateLock(context.Context, *CreateLockRequest) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateLock not implemented")
}
func (UnimplementedDistlockServer) AcquireLock(context.Context, *AcquireLockRequest) (*Lock, error) {
	return nil, status.Error(codes.Unimplemented, "method AcquireLock not implemented")
}
func (UnimplementedDistlockServer) ReleaseLock(context.Context, *ReleaseLockRequest) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method ReleaseLock not implemented")
}
func (UnimplementedDistlockServer) GetLock(context.Context, *GetLockRequest) (*Lock, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLock not implemented")
}
func (UnimplementedDistlockServer) ListLocks(context.Context, *emptypb.Empty) (*ListLocksResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListLocks not implemented")
}
func (UnimplementedDistlockServer) DeleteLock(context.Context, *DeleteLockRequest) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteLock not implemented")
}
func (UnimplementedDistlockServer) mustEmbedUnimplementedDistlockServer() {}

func RegisterDistlockServer(s grpc.ServiceRegistrar, srv DistlockServer) {
	s.RegisterService(&Distlock_ServiceDesc, srv)
}

// unaryHandler decodes Req and runs call, through interceptor if one is set
func unaryHandler[Req any](fullMethod string, call func(DistlockServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(DistlockServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Distlock_ServiceDesc is the grpc.ServiceDesc for the Distlock service.
var Distlock_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DistlockServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateLock",
			Handler: unaryHandler(Distlock_CreateLock_FullMethodName, func(s DistlockServer, ctx context.Context, in *CreateLockRequest) (any, error) {
				return s.CreateLock(ctx, in)
			}),
		},
		{
			MethodName: "AcquireLock",
			Handler: unaryHandler(Distlock_AcquireLock_FullMethodName, func(s DistlockServer, ctx context.Context, in *AcquireLockRequest) (any, error) {
				return s.AcquireLock(ctx, in)
			}),
		},
		{
			MethodName: "ReleaseLock",
			Handler: unaryHandler(Distlock_ReleaseLock_FullMethodName, func(s DistlockServer, ctx context.Context, in *ReleaseLockRequest) (any, error) {
				return s.ReleaseLock(ctx, in)
			}),
		},
		{
			MethodName: "GetLock",
			Handler: unaryHandler(Distlock_GetLock_FullMethodName, func(s DistlockServer, ctx context.Context, in *GetLockRequest) (any, error) {
				return s.GetLock(ctx, in)
			}),
		},
		{
			MethodName: "ListLocks",
			Handler: unaryHandler(Distlock_ListLocks_FullMethodName, func(s DistlockServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.ListLocks(ctx, in)
			}),
		},
		{
			MethodName: "DeleteLock",
			Handler: unaryHandler(Distlock_DeleteLock_FullMethodName, func(s DistlockServer, ctx context.Context, in *DeleteLockRequest) (any, error) {
				return s.DeleteLock(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/v1/distlock.proto",
}
