package common

import (
	"context"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if RequestIDFromContext(ctx) != "" || FilenameFromContext(ctx) != "" {
		t.Fatal("empty context should carry no values")
	}
	ctx = WithFilename(WithRequestID(ctx, "req-1"), "acme.pdf")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("request id = %q", got)
	}
	if got := FilenameFromContext(ctx); got != "acme.pdf" {
		t.Errorf("filename = %q", got)
	}
}
