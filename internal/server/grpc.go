package server

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/commentfeed/internal/events"
	"github.com/alfredjeanlab/commentfeed/internal/metrics"
	"github.com/alfredjeanlab/commentfeed/internal/rpc"
)

// commentServiceServer is the handler type registered for board.v1.CommentService.
type commentServiceServer interface {
	ListCommentsRPC(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CreateCommentRPC(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteCommentRPC(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	HealthRPC(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	SubscribeInsertsRPC(*emptypb.Empty, grpc.ServerStream) error
}

var _ commentServiceServer = (*BoardServer)(nil)

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the CommentService and reflection, and returns it ready to serve.
func NewGRPCServer(bs *BoardServer, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
		grpc.ChainStreamInterceptor(
			StreamRecoveryInterceptor,
			StreamLoggingInterceptor,
			StreamAuthInterceptor(authToken),
		),
	)
	srv.RegisterService(&commentServiceDesc, bs)
	reflection.Register(srv)
	return srv
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error, what string) error {
	var ie inputError
	switch {
	case errors.As(err, &ie):
		return status.Error(codes.InvalidArgument, ie.Error())
	case isNotFound(err):
		return status.Error(codes.NotFound, "comment not found")
	default:
		return status.Errorf(codes.Internal, "failed to %s: %v", what, err)
	}
}

func (s *BoardServer) ListCommentsRPC(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	comments, err := s.ListComments(ctx)
	if err != nil {
		return nil, toStatus(err, "list comments")
	}
	out, err := rpc.CommentsToStruct(comments)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode comments: %v", err)
	}
	return out, nil
}

func (s *BoardServer) CreateCommentRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	c, err := s.CreateComment(ctx, f["name"].GetStringValue(), f["message"].GetStringValue())
	if err != nil {
		return nil, toStatus(err, "create comment")
	}
	out, err := rpc.CommentToStruct(c)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode comment: %v", err)
	}
	return out, nil
}

func (s *BoardServer) DeleteCommentRPC(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.DeleteComment(ctx, req.GetValue()); err != nil {
		return nil, toStatus(err, "delete comment")
	}
	return &emptypb.Empty{}, nil
}

func (s *BoardServer) HealthRPC(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	if _, err := s.Health(ctx); err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return wrapperspb.String("ok"), nil
}

// SubscribeInsertsRPC streams every comment inserted after the call starts
// until the client goes away.
func (s *BoardServer) SubscribeInsertsRPC(_ *emptypb.Empty, stream grpc.ServerStream) error {
	sub, _ := s.sseHub.subscribe([]string{events.TopicCommentCreated}, "")
	defer s.sseHub.unsubscribe(sub)

	gauge := metrics.StreamSubscribers.WithLabelValues("grpc")
	gauge.Inc()
	defer gauge.Dec()

	// Headers go out immediately so the client knows the subscription is live.
	if err := stream.SendHeader(nil); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-sub.ch:
			created, err := events.DecodeCommentCreated(evt.Data)
			if err != nil {
				s.logger.Warn("dropping undecodable insert event", "error", err)
				continue
			}
			msg, err := rpc.CommentToStruct(created.Comment)
			if err != nil {
				return status.Errorf(codes.Internal, "encode comment: %v", err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func unaryHandler[Req any, Resp any](
	method string,
	call func(commentServiceServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		svc := srv.(commentServiceServer)
		if interceptor == nil {
			return call(svc, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(svc, ctx, req.(*Req))
		})
	}
}

var commentServiceDesc = grpc.ServiceDesc{
	ServiceName: rpc.ServiceName,
	HandlerType: (*commentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListComments",
			Handler:    unaryHandler(rpc.MethodListComments, commentServiceServer.ListCommentsRPC),
		},
		{
			MethodName: "CreateComment",
			Handler:    unaryHandler(rpc.MethodCreateComment, commentServiceServer.CreateCommentRPC),
		},
		{
			MethodName: "DeleteComment",
			Handler:    unaryHandler(rpc.MethodDeleteComment, commentServiceServer.DeleteCommentRPC),
		},
		{
			MethodName: "Health",
			Handler:    unaryHandler(rpc.MethodHealth, commentServiceServer.HealthRPC),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    rpc.StreamSubscribeInserts,
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(emptypb.Empty)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(commentServiceServer).SubscribeInsertsRPC(in, stream)
			},
		},
	},
}
