package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoicebot/constants"
	"github.com/joseph-ayodele/invoicebot/internal/common"
	"github.com/joseph-ayodele/invoicebot/internal/repository"
)

// InvoicesServiceName is the fully qualified gRPC service name.
const InvoicesServiceName = "invoicebot.v1.Invoices"

// InvoicesServer is the gRPC surface. Messages are structpb.Struct so the
// service needs no generated code; field names match the HTTP JSON bodies.
type InvoicesServer interface {
	ProcessInvoice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var InvoicesServiceDesc = grpc.ServiceDesc{
	ServiceName: InvoicesServiceName,
	HandlerType: (*InvoicesServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessInvoice", Handler: unaryHandler("ProcessInvoice", InvoicesServer.ProcessInvoice)},
		{MethodName: "GetRun", Handler: unaryHandler("GetRun", InvoicesServer.GetRun)},
		{MethodName: "ListRuns", Handler: unaryHandler("ListRuns", InvoicesServer.ListRuns)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterInvoicesServer(s grpc.ServiceRegistrar, srv InvoicesServer) {
	s.RegisterService(&InvoicesServiceDesc, srv)
}

type unaryMethod func(InvoicesServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, m unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + InvoicesServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m(srv.(InvoicesServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return m(srv.(InvoicesServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// InvoicesClient calls the Invoices service on an existing connection.
type InvoicesClient struct {
	cc grpc.ClientConnInterface
}

func NewInvoicesClient(cc grpc.ClientConnInterface) *InvoicesClient {
	return &InvoicesClient{cc: cc}
}

func (c *InvoicesClient) ProcessInvoice(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ProcessInvoice", in, opts...)
}

func (c *InvoicesClient) GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetRun", in, opts...)
}

func (c *InvoicesClient) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListRuns", in, opts...)
}

func (c *InvoicesClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+InvoicesServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// InvoicesService implements InvoicesServer on top of the processor and
// run history.
type InvoicesService struct {
	proc     InvoiceProcessor
	runs     RunReader
	maxBytes int
	logger   *slog.Logger
}

func NewInvoicesService(proc InvoiceProcessor, runs RunReader, maxUploadBytes int, logger *slog.Logger) *InvoicesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoicesService{proc: proc, runs: runs, maxBytes: maxUploadBytes, logger: logger}
}

func (s *InvoicesService) ProcessInvoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	filename := strings.TrimSpace(fields["filename"].GetStringValue())
	if filename == "" {
		return nil, common.InvalidArgumentError("filename is required")
	}
	if _, ok := constants.DetectFileType(filename); !ok {
		return nil, common.InvalidArgumentErrorf("%v: %s", common.ErrUnsupportedFormat, filename)
	}
	content, err := base64.StdEncoding.DecodeString(fields["content_base64"].GetStringValue())
	if err != nil {
		return nil, common.InvalidArgumentError("content_base64 must be standard base64")
	}
	if len(content) == 0 {
		return nil, common.InvalidArgumentError("content_base64 is required")
	}
	if s.maxBytes > 0 && len(content) > s.maxBytes {
		return nil, common.InvalidArgumentErrorf("document exceeds %d bytes", s.maxBytes)
	}

	res := s.proc.ProcessInvoice(ctx, content, filename)
	return toStruct(newProcessResponse(res))
}

func (s *InvoicesService) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil {
		return nil, status.Error(codes.Unavailable, "run history is not configured")
	}
	raw := strings.TrimSpace(req.GetFields()["id"].GetStringValue())
	if err := common.ValidateAndReturnError(common.NewValidator().Field("id", raw, common.Required, common.UUID)); err != nil {
		return nil, err
	}
	run, err := s.runs.Get(ctx, uuid.MustParse(raw))
	if err != nil {
		return nil, s.statusError("get_run", err)
	}
	return toStruct(run)
}

func (s *InvoicesService) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil {
		return nil, status.Error(codes.Unavailable, "run history is not configured")
	}
	fields := req.GetFields()
	var f repository.ListFilter
	if raw := fields["status"].GetStringValue(); raw != "" {
		st, ok := constants.ParseRunStatus(raw)
		if !ok {
			return nil, common.InvalidArgumentErrorf("unknown status %s", raw)
		}
		f.Status = st
	}
	n := fields["limit"].GetNumberValue()
	if n < 0 {
		return nil, common.InvalidArgumentError("limit must not be negative")
	}
	f.Limit = int(n)
	runs, err := s.runs.List(ctx, f)
	if err != nil {
		return nil, s.statusError("list_runs", err)
	}
	return toStruct(map[string]any{"runs": runs, "count": len(runs)})
}

func (s *InvoicesService) statusError(op string, err error) error {
	switch code := common.GRPCCode(err); code {
	case codes.NotFound:
		return common.NotFoundError(err.Error())
	case codes.Internal:
		s.logger.Error("grpc.failed", "op", op, "error", err)
		return common.InternalError("internal error")
	default:
		return status.Error(code, err.Error())
	}
}

// toStruct converts any JSON-serialisable value through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

// NewGRPCServer registers the Invoices and health services on a new server.
func NewGRPCServer(svc InvoicesServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	gs := grpc.NewServer(opts...)
	RegisterInvoicesServer(gs, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(InvoicesServiceName, healthpb.HealthCheckResponse_SERVING)
	return gs, hs
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rid := uuid.NewString()
		ctx = common.WithRequestID(ctx, rid)
		resp, err := handler(ctx, req)
		logger.Info("grpc.request",
			"req_id", rid,
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
