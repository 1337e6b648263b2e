package texttospeech

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestIsOffline(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "sentinel", err: fmt.Errorf("wrapped: %w", ErrOffline), expected: true},
		{name: "deadline", err: context.DeadlineExceeded, expected: true},
		{name: "canceled", err: context.Canceled, expected: false},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "example.invalid"}, expected: true},
		{name: "canceled dial", err: &net.OpError{Op: "dial", Net: "tcp", Err: context.Canceled}, expected: false},
		{name: "dial", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, expected: true},
		{name: "connection refused", err: fmt.Errorf("post: %w", syscall.ECONNREFUSED), expected: true},
		{name: "connection reset", err: syscall.ECONNRESET, expected: true},
		{name: "bad request", err: errors.New("400 bad request"), expected: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := IsOffline(testCase.err); got != testCase.expected {
				t.Fatalf("expected %v, got %v", testCase.expected, got)
			}
		})
	}
}
