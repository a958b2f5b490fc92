package fetcherr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain", New(DecodeError, "bad base64"), DecodeError},
		{"wrapped", fmt.Errorf("outer: %w", Wrap(Timeout, io.EOF, "read")), Timeout},
		{"foreign", io.EOF, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(FileReadError, io.ErrUnexpectedEOF, "read %s", "/tmp/x")
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatal("cause not reachable through errors.Is")
	}
	if got := err.Error(); got != "FILE_READ_ERROR: read /tmp/x: unexpected EOF" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestTemporary(t *testing.T) {
	if !Temporary(New(Timeout, "x")) || !Temporary(New(ConnectionFailure, "x")) {
		t.Error("timeouts and connection failures should be temporary")
	}
	if Temporary(New(ProtocolError, "x")) || Temporary(io.EOF) {
		t.Error("protocol errors and foreign errors should not be temporary")
	}
}

func TestRetry(t *testing.T) {
	t.Run("retriesOnlyMarkedErrors", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, 0, func(int) error {
			calls++
			return io.EOF
		})
		if calls != 1 || !errors.Is(err, io.EOF) {
			t.Fatalf("calls = %d, err = %v", calls, err)
		}
	})

	t.Run("succeedsOnSecondAttempt", func(t *testing.T) {
		var attempts []int
		err := Retry(context.Background(), 2, 0, func(attempt int) error {
			attempts = append(attempts, attempt)
			if attempt == 0 {
				return Retryable(io.EOF)
			}
			return nil
		})
		if err != nil || len(attempts) != 2 || attempts[1] != 1 {
			t.Fatalf("attempts = %v, err = %v", attempts, err)
		}
	})

	t.Run("returnsUnwrappedLastError", func(t *testing.T) {
		err := Retry(context.Background(), 2, 0, func(int) error {
			return Retryable(New(ConnectionFailure, "reset"))
		})
		if IsRetryable(err) {
			t.Fatal("retry marker leaked to caller")
		}
		if !Is(err, ConnectionFailure) {
			t.Fatalf("err = %v", err)
		}
	})
}
