package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"syscall"

	"github.com/example/dish-advisor/internal/inference"
)

// FailureKind classifies why an interaction could not produce an answer.
type FailureKind string

const (
	FailureStorage       FailureKind = "transient_storage"
	FailureConnection    FailureKind = "service_connection"
	FailureTimeout       FailureKind = "service_timeout"
	FailureProtocol      FailureKind = "service_protocol"
	FailureEmptyResponse FailureKind = "empty_response"
	FailureRequest       FailureKind = "request_failed"
	FailureUnclassified  FailureKind = "unclassified"
)

// FailureKinds lists every kind in a stable order.
var FailureKinds = []FailureKind{
	FailureStorage,
	FailureConnection,
	FailureTimeout,
	FailureProtocol,
	FailureEmptyResponse,
	FailureRequest,
	FailureUnclassified,
}

// Failure is a classified error returned by the invoker.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure returns err as a *Failure, classifying it when it is not one yet.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	return &Failure{Kind: Classify(err), Err: err}
}

// Classify maps an error from the staging or inference path to a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, inference.ErrEmptyResponse) {
		return FailureEmptyResponse
	}
	if errors.Is(err, inference.ErrMalformedResponse) {
		return FailureProtocol
	}
	var statusErr *inference.StatusError
	if errors.As(err, &statusErr) {
		return FailureProtocol
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return FailureStorage
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return FailureRequest
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return FailureConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureConnection
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return FailureRequest
	}

	return FailureUnclassified
}
