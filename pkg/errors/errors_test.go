package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := NewError(ErrorTypeUnavailable, CodeServiceUnavailable, "no live instance")
	want := "service_unavailable: no live instance"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := NewError(ErrorTypeInternal, CodeInternalError, "proxy failed").
		WithCause(fmt.Errorf("boom"))
	want = "internal_error: proxy failed: boom"
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		errType ErrorType
		code    string
		want    int
	}{
		{ErrorTypeUnauthorized, CodeMissingCredential, 401},
		{ErrorTypeRateLimit, CodeRateLimitExceeded, 429},
		{ErrorTypeNotFound, CodeServiceNotFound, 404},
		{ErrorTypeUnavailable, CodeServiceUnavailable, 503},
		{ErrorTypeTimeout, CodeGatewayTimeout, 504},
		{ErrorTypeInternal, CodeInternalError, 500},
		{ErrorTypeBadRequest, "", 400},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			err := NewError(tt.errType, tt.code, "test")
			if got := err.HTTPStatusCode(); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsMatchesTypeAndCode(t *testing.T) {
	err := NewError(ErrorTypeUnauthorized, CodeExpiredToken, "token expired")

	if !errors.Is(err, NewError(ErrorTypeUnauthorized, CodeExpiredToken, "")) {
		t.Error("expected match on type and code")
	}
	if !errors.Is(err, NewError(ErrorTypeUnauthorized, "", "")) {
		t.Error("expected match on bare type")
	}
	if errors.Is(err, NewError(ErrorTypeUnauthorized, CodeRevokedToken, "")) {
		t.Error("unexpected match on different code")
	}
	if errors.Is(err, NewError(ErrorTypeRateLimit, "", "")) {
		t.Error("unexpected match on different type")
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewError(ErrorTypeUnavailable, CodeServiceUnavailable, "backend down").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	var gwErr *Error
	if !As(err, &gwErr) {
		t.Fatal("expected As to match *Error")
	}
	if gwErr.Code != CodeServiceUnavailable {
		t.Errorf("Code = %q, want %q", gwErr.Code, CodeServiceUnavailable)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	base := fmt.Errorf("base")
	wrapped := Wrap(base, "context")
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should unwrap to base")
	}
}
