package chain

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"geth funds error", errors.New("insufficient funds for gas * price + value"), ErrInsufficientFunds},
		{"metamask style rejection", errors.New("user denied transaction signature"), ErrUserRejected},
		{"wallet rejection", errors.New("user rejected the request"), ErrUserRejected},
		{"wrapped timeout", fmt.Errorf("%w: context deadline exceeded", ErrConfirmTimeout), ErrConfirmTimeout},
		{"generic rpc error", errors.New("connection refused"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("registerUser", tt.err)

			var chainErr *ChainError
			if !errors.As(got, &chainErr) {
				t.Fatalf("expected *ChainError, got %T", got)
			}
			if chainErr.Op != "registerUser" {
				t.Fatalf("expected op registerUser, got %q", chainErr.Op)
			}

			if tt.want == nil {
				for _, sentinel := range []error{ErrInsufficientFunds, ErrUserRejected, ErrConfirmTimeout} {
					if errors.Is(got, sentinel) {
						t.Fatalf("generic error must not match sentinel %v", sentinel)
					}
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("expected %v classification, got %v", tt.want, got)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if got := classify("users", nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
