package common

import (
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCCode(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{nil, codes.OK},
		{fmt.Errorf("run 7: %w", ErrNotFound), codes.NotFound},
		{NewValidator().Field("id", "x", UUID).Error(), codes.InvalidArgument},
		{ErrUnsupportedFormat, codes.InvalidArgument},
		{ErrUnauthorized, codes.Unauthenticated},
		{fmt.Errorf("query: %w", ErrDatabase), codes.Internal},
	}
	for _, tt := range tests {
		if got := GRPCCode(tt.err); got != tt.want {
			t.Errorf("GRPCCode(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestValidateAndReturnError(t *testing.T) {
	if err := ValidateAndReturnError(NewValidator().Field("id", "7d3f0a4e-4b1c-4d0e-9a55-2c1f8e6b9a10", Required, UUID)); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
	err := ValidateAndReturnError(NewValidator().Field("id", "", Required, UUID))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v", status.Code(err))
	}
	if !IsValidation(NewValidator().Field("id", "", Required).Error()) {
		t.Error("validator error not recognised")
	}
}
