package server

import (
	"context"
	"encoding/base64"
	"net"
	"strings"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestGRPC(t *testing.T, d testDeps) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(NewInvoicesService(d.proc, d.runs, 1<<20, nil), nil)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestGRPCProcessInvoice(t *testing.T) {
	d := newTestDeps(t)
	client := NewInvoicesClient(newTestGRPC(t, d))
	ctx := t.Context()

	out, err := client.ProcessInvoice(ctx, mustStruct(t, map[string]any{
		"filename":       "acme.txt",
		"content_base64": base64.StdEncoding.EncodeToString([]byte("Invoice INV-7")),
	}))
	if err != nil {
		t.Fatalf("ProcessInvoice: %v", err)
	}
	f := out.GetFields()
	if f["status"].GetStringValue() != "SUCCEEDED" {
		t.Errorf("status = %v", f["status"])
	}
	vendor := f["extracted_data"].GetStructValue().GetFields()["vendor_name"].GetStringValue()
	if vendor != "Acme" {
		t.Errorf("vendor = %q", vendor)
	}
	if string(d.proc.seen[0]) != "Invoice INV-7" {
		t.Errorf("processor saw %q", d.proc.seen[0])
	}

	runID := f["run_id"].GetStringValue()
	got, err := client.GetRun(ctx, mustStruct(t, map[string]any{"id": runID}))
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.GetFields()["filename"].GetStringValue() != "acme.txt" {
		t.Errorf("run = %v", got)
	}

	list, err := client.ListRuns(ctx, mustStruct(t, map[string]any{"status": "succeeded", "limit": 10}))
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if list.GetFields()["count"].GetNumberValue() != 1 {
		t.Errorf("list = %v", list)
	}
}

func TestGRPCErrors(t *testing.T) {
	d := newTestDeps(t)
	client := NewInvoicesClient(newTestGRPC(t, d))
	ctx := t.Context()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"missing filename", func() error {
			_, err := client.ProcessInvoice(ctx, mustStruct(t, map[string]any{"content_base64": "aGk="}))
			return err
		}, codes.InvalidArgument},
		{"unsupported extension", func() error {
			_, err := client.ProcessInvoice(ctx, mustStruct(t, map[string]any{"filename": "x.docx", "content_base64": "aGk="}))
			return err
		}, codes.InvalidArgument},
		{"bad base64", func() error {
			_, err := client.ProcessInvoice(ctx, mustStruct(t, map[string]any{"filename": "x.pdf", "content_base64": "%%%"}))
			return err
		}, codes.InvalidArgument},
		{"empty content", func() error {
			_, err := client.ProcessInvoice(ctx, mustStruct(t, map[string]any{"filename": "x.pdf"}))
			return err
		}, codes.InvalidArgument},
		{"bad run id", func() error {
			_, err := client.GetRun(ctx, mustStruct(t, map[string]any{"id": "nope"}))
			return err
		}, codes.InvalidArgument},
		{"missing run id", func() error {
			_, err := client.GetRun(ctx, mustStruct(t, map[string]any{}))
			return err
		}, codes.InvalidArgument},
		{"unknown run", func() error {
			_, err := client.GetRun(ctx, mustStruct(t, map[string]any{"id": uuid.NewString()}))
			return err
		}, codes.NotFound},
		{"bad status filter", func() error {
			_, err := client.ListRuns(ctx, mustStruct(t, map[string]any{"status": "weird"}))
			return err
		}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(tt.call()); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
	if len(d.proc.calls) != 0 {
		t.Errorf("processor ran for rejected requests: %v", d.proc.calls)
	}
}

func TestGRPCRunIDMessage(t *testing.T) {
	client := NewInvoicesClient(newTestGRPC(t, newTestDeps(t)))
	_, err := client.GetRun(t.Context(), mustStruct(t, map[string]any{"id": "nope"}))
	if got := status.Convert(err).Message(); !strings.Contains(got, "must be a valid UUID") {
		t.Errorf("message = %q", got)
	}
}

func TestGRPCHealth(t *testing.T) {
	d := newTestDeps(t)
	hc := healthpb.NewHealthClient(newTestGRPC(t, d))
	resp, err := hc.Check(t.Context(), &healthpb.HealthCheckRequest{Service: InvoicesServiceName})
	if err != nil {
		t.Fatal(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v", resp.GetStatus())
	}
}
