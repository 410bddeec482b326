package poll

import (
	"context"
	"io"
	"net"
	"strings"

	"github.com/dreamtide/veod/errors"
)

// IsTransient reports whether a poll error is a recoverable network-layer
// failure that is expected to self-resolve on retry. Transient errors are
// tolerated indefinitely up to the overall attempt cap; anything else
// fails the job.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// Classify based on error message patterns
	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "connection refused"),
		strings.Contains(errLower, "connection reset"),
		strings.Contains(errLower, "broken pipe"),
		strings.Contains(errLower, "no such host"),
		strings.Contains(errLower, "network is unreachable"),
		strings.Contains(errLower, "network is down"),
		strings.Contains(errLower, "timeout"),
		strings.Contains(errLower, "temporary failure"),
		strings.Contains(errLower, "eof"):
		return true
	}

	return false
}
