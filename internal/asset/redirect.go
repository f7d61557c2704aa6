package asset

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Redirector turns an archive name into an external download URL.
type Redirector interface {
	URL(ctx context.Context, name string) (string, error)
}

// BaseURLRedirector appends the archive name to a fixed base URL.
type BaseURLRedirector struct {
	base string
}

func NewBaseURLRedirector(base string) (*BaseURLRedirector, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, fmt.Errorf("download base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid download base url: %w", err)
	}
	return &BaseURLRedirector{base: base}, nil
}

func (r *BaseURLRedirector) URL(_ context.Context, name string) (string, error) {
	return r.base + "/" + url.PathEscape(strings.TrimSpace(name)), nil
}
