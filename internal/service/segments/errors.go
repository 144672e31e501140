package segments

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed page request.
type Kind int

const (
	// KindNetwork - transport failure (connection refused, reset, DNS).
	KindNetwork Kind = iota
	// KindTimeout - request exceeded RequestTimeout.
	KindTimeout
	// KindServer - backend answered with a non-success status.
	KindServer
	// KindCancelled - intentional abort. Never user visible.
	KindCancelled
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Sentinel errors matched with errors.Is against a *FetchError.
var (
	ErrNetwork   = errors.New("network error")
	ErrTimeout   = errors.New("request timed out")
	ErrServer    = errors.New("server error")
	ErrCancelled = errors.New("request cancelled")

	errBusy = errors.New("another request is in flight")
)

func (k Kind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindServer:
		return ErrServer
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrNetwork
	}
}

// FetchError describes one failed request of the store.
type FetchError struct {
	Kind   Kind
	Op     LoadKind
	Offset int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch at offset %d: %s: %v", e.Op, e.Offset, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

// statusCoder is implemented by fetcher errors carrying an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// Classify maps a fetcher error onto the error taxonomy.
func Classify(err error) Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	var sc statusCoder
	if errors.As(err, &sc) || errors.Is(err, ErrServer) {
		return KindServer
	}
	return KindNetwork
}

// IsCancelled reports whether err is an intentional abort.
func IsCancelled(err error) bool {
	return err != nil && Classify(err) == KindCancelled
}
