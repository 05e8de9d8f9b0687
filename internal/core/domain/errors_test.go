package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *DomainError
		want string
	}{
		{"plain", ErrUsernameTaken, "[CH-ACCT-4090] username already taken"},
		{"details", ErrBadRequest.WithDetails("bad json"), "[CH-SYS-4000] bad request: bad json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDomainError_IsComparesCode(t *testing.T) {
	wrapped := fmt.Errorf("register: %w", ErrUsernameTaken.WithDetails("ann"))
	if !errors.Is(wrapped, ErrUsernameTaken) {
		t.Fatal("errors.Is should match by code through wrapping")
	}
	if errors.Is(wrapped, ErrInvalidUsername) {
		t.Fatal("errors.Is should not match a different code")
	}
}

func TestDomainError_CauseHiddenFromMessage(t *testing.T) {
	a := ErrInvalidCredentials.WithCause(ErrUnknownAccount)
	b := ErrInvalidCredentials.WithCause(ErrPasswordMismatch)

	if a.Error() != b.Error() {
		t.Fatalf("messages differ: %q vs %q", a.Error(), b.Error())
	}
	if !errors.Is(a, ErrUnknownAccount) || errors.Is(a, ErrPasswordMismatch) {
		t.Fatal("cause should remain inspectable via errors.Is")
	}
}

func TestGetErrorCodeAndIsValidation(t *testing.T) {
	if got := GetErrorCode(errors.New("x")); got != "" {
		t.Errorf("GetErrorCode(plain) = %q, want empty", got)
	}
	if !IsValidation(ErrEmptyMessage) || !IsValidation(ErrInvalidCredentials) {
		t.Error("4xxx codes should be validation errors")
	}
	if IsValidation(ErrInternal) || IsValidation(errors.New("x")) {
		t.Error("5xxx codes and plain errors are not validation errors")
	}
	if !IsDomainError(ErrStorage.WithCause(errors.New("io")), "CH-SYS-5001") {
		t.Error("IsDomainError should match code")
	}
}
