package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// Provider bundles the platform backend for the current OS.
type Provider struct {
	Backend Backend
	// Close releases OS resources held by the backend. May be nil.
	Close func() error
}

// ErrUnsupported is returned on platforms without a native backend.
var ErrUnsupported = fmt.Errorf("no native desktop backend for %s/%s; use --backend memory or poll", runtime.GOOS, runtime.GOARCH)

// ErrInvalidated is returned by accessors of windows and applications that
// no longer exist.
var ErrInvalidated = errors.New("entity invalidated")

// NewProviderFunc is set by platform-specific packages via init().
var NewProviderFunc func() (*Provider, error)

// NewProvider returns a Provider for the current OS.
func NewProvider() (*Provider, error) {
	if NewProviderFunc == nil {
		return nil, ErrUnsupported
	}
	return NewProviderFunc()
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the correlation id of a write.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the write correlation id carried by ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
