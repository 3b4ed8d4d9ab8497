package featureflaggrpc

import (
	"context"
	"time"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/featureflagx"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/tracex"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Server struct {
	s *featureflagx.Store
}

var _ FeatureFlagServiceServer = (*Server)(nil)

func NewServer(s *featureflagx.Store) *Server {
	return &Server{s: s}
}

func parseFlag(in *wrapperspb.StringValue) (featureflagx.FeatureFlag, error) {
	ff, err := featureflagx.ParseFeatureFlag(in.GetValue())
	if err != nil {
		return "", ToStatus(err)
	}
	return ff, nil
}

func (srv *Server) IsEnabled(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	ff, err := parseFlag(in)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(srv.s.IsEnabled(ctx, ff)), nil
}

func (srv *Server) Enable(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	ff, err := parseFlag(in)
	if err != nil {
		return nil, err
	}
	srv.s.Enable(ctx, ff)
	return wrapperspb.Bool(srv.s.IsEnabled(ctx, ff)), nil
}

func (srv *Server) Disable(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	ff, err := parseFlag(in)
	if err != nil {
		return nil, err
	}
	srv.s.Disable(ctx, ff)
	return wrapperspb.Bool(srv.s.IsEnabled(ctx, ff)), nil
}

func (srv *Server) Toggle(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	ff, err := parseFlag(in)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(srv.s.Toggle(ctx, ff)), nil
}

// ToStatus converts an errorx error to a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	rErr, ok := errorx.IsRentappError(err)
	if !ok {
		return status.Error(codes.Internal, "internal error")
	}

	code := codes.Internal
	switch rErr.Type {
	case errorx.ErrorTypeAlreadyExists:
		code = codes.AlreadyExists
	case errorx.ErrorTypeFailedPrecondition:
		code = codes.FailedPrecondition
	case errorx.ErrorTypeInvalidArgument:
		code = codes.InvalidArgument
	case errorx.ErrorTypeNotFound:
		code = codes.NotFound
	case errorx.ErrorTypeUnimplemented:
		code = codes.Unimplemented
	case errorx.ErrorTypeUnavailable:
		code = codes.Unavailable
	}
	return status.Error(code, rErr.Message)
}

// FromStatus converts a gRPC status error back to an errorx error.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return errorx.InternalErrorf("%v", err)
	}

	switch st.Code() {
	case codes.AlreadyExists:
		return errorx.AlreadyExistsErrorf("%s", st.Message())
	case codes.FailedPrecondition:
		return errorx.FailedPreconditionErrorf("%s", st.Message())
	case codes.InvalidArgument:
		return errorx.InvalidArgumentErrorf("%s", st.Message())
	case codes.NotFound:
		return errorx.NotFoundErrorf("%s", st.Message())
	case codes.Unimplemented:
		return errorx.UnimplementedErrorf("%s", st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return errorx.UnavailableErrorf("%s", st.Message())
	default:
		return errorx.InternalErrorf("%s", st.Message())
	}
}

// UnaryServerInterceptor logs every call and turns panics into Internal
// errors.
func UnaryServerInterceptor(l *loggerx.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				l.Error(ctx, "grpc handler panicked", append(tracex.StackTraceAttrs(r), attribute.String("method", info.FullMethod))...)
				err = status.Error(codes.Internal, "internal error")
			}

			kvs := []attribute.KeyValue{
				attribute.String("method", info.FullMethod),
				attribute.String("code", status.Code(err).String()),
				attribute.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				l.WithSpanContext(ctx).Warn(ctx, "grpc call failed", kvs...)
				return
			}
			l.WithSpanContext(ctx).Info(ctx, "grpc call handled", kvs...)
		}()

		return handler(ctx, req)
	}
}
