package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/commentfeed/internal/model"
	"github.com/alfredjeanlab/commentfeed/internal/rpc"
)

// GRPCClient implements RemoteStore using the gRPC transport.
type GRPCClient struct {
	conn   *grpc.ClientConn
	token  string
	logger *slog.Logger
}

var _ RemoteStore = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token, logger: slog.Default()}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// authCtx attaches the bearer token, if any, to outgoing metadata.
func (c *GRPCClient) authCtx(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

func (c *GRPCClient) FetchComments(ctx context.Context) ([]*model.Comment, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.authCtx(ctx), rpc.MethodListComments, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return rpc.StructToComments(out)
}

func (c *GRPCClient) InsertComment(ctx context.Context, name, message string) (*model.Comment, error) {
	req, err := rpc.NewCommentRequest(name, message)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.authCtx(ctx), rpc.MethodCreateComment, req, out); err != nil {
		return nil, err
	}
	return rpc.StructToComment(out)
}

func (c *GRPCClient) DeleteComment(ctx context.Context, id string) error {
	return c.conn.Invoke(c.authCtx(ctx), rpc.MethodDeleteComment, wrapperspb.String(id), new(emptypb.Empty))
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, rpc.MethodHealth, &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

var subscribeInsertsDesc = &grpc.StreamDesc{
	StreamName:    rpc.StreamSubscribeInserts,
	ServerStreams: true,
}

// SubscribeInserts opens the SubscribeInserts server stream. The call returns
// once the server has acknowledged the stream; broken streams are reopened
// with exponential backoff. The gRPC stream has no replay, so inserts made
// while reconnecting are not delivered.
func (c *GRPCClient) SubscribeInserts(fn InsertHandler) (Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := c.openInsertStream(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribing to inserts: %w", err)
	}
	go c.runInsertStream(ctx, stream, fn)
	return newSubscription(cancel), nil
}

func (c *GRPCClient) openInsertStream(ctx context.Context) (grpc.ClientStream, error) {
	stream, err := c.conn.NewStream(c.authCtx(ctx), subscribeInsertsDesc, rpc.MethodSubscribeInserts)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	md, err := stream.Header()
	if err != nil {
		return nil, err
	}
	if md == nil {
		// Trailers-only response: the server rejected the stream and the
		// status is only available from RecvMsg.
		if err := stream.RecvMsg(new(structpb.Struct)); err != nil {
			return nil, err
		}
		return nil, errors.New("insert stream closed by server")
	}
	return stream, nil
}

func (c *GRPCClient) runInsertStream(ctx context.Context, stream grpc.ClientStream, fn InsertHandler) {
	b := reconnectBackOff()
	for {
		err := receiveInserts(ctx, stream, fn, c.logger)
		if ctx.Err() != nil {
			return
		}
		c.logger.Debug("insert stream dropped", "error", err)
		if status.Code(err) == codes.Unauthenticated {
			c.logger.Warn("insert stream rejected", "error", err)
			return
		}

		for {
			if !sleepCtx(ctx, b.NextBackOff()) {
				return
			}
			stream, err = c.openInsertStream(ctx)
			if err == nil {
				b.Reset()
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("insert stream reopen failed", "error", err)
		}
	}
}

func receiveInserts(ctx context.Context, stream grpc.ClientStream, fn InsertHandler, logger *slog.Logger) error {
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			return err
		}
		comment, err := rpc.StructToComment(msg)
		if err != nil {
			logger.Warn("skipping malformed streamed comment", "error", err)
			continue
		}
		if ctx.Err() != nil {
			return errors.New("unsubscribed")
		}
		fn(comment)
	}
}
