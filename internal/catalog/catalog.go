// Package catalog reads the offerable widgets. The file is re-read on every
// call so editors can change it while the service runs.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gookit/validate"
	"github.com/kursadbilgin/widget-claims/internal/domain"
	"go.uber.org/zap"
)

// Provider lists the widgets currently on offer.
type Provider interface {
	List(ctx context.Context) ([]domain.Widget, error)
}

// Find returns the widget with the given id from a fresh listing.
func Find(ctx context.Context, p Provider, id string) (domain.Widget, bool, error) {
	widgets, err := p.List(ctx)
	if err != nil {
		return domain.Widget{}, false, err
	}
	id = strings.TrimSpace(id)
	for _, w := range widgets {
		if w.ID == id {
			return w, true, nil
		}
	}
	return domain.Widget{}, false, nil
}

// FileProvider reads a JSON array of widgets from disk.
type FileProvider struct {
	path   string
	logger *zap.Logger
}

func NewFileProvider(path string, logger *zap.Logger) (*FileProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("catalog path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileProvider{path: path, logger: logger}, nil
}

func (p *FileProvider) List(ctx context.Context) ([]domain.Widget, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read widget catalog: %w", err)
	}

	var entries []domain.Widget
	if err := json.UnmarshalContext(ctx, raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode widget catalog: %w", err)
	}

	return sanitize(entries, p.logger), nil
}

// StaticProvider serves a fixed list; handy for tests and single-widget deployments.
type StaticProvider []domain.Widget

func (s StaticProvider) List(context.Context) ([]domain.Widget, error) {
	return sanitize(s, zap.NewNop()), nil
}

func sanitize(entries []domain.Widget, logger *zap.Logger) []domain.Widget {
	widgets := make([]domain.Widget, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i := range entries {
		w := entries[i]
		w.ID = strings.TrimSpace(w.ID)
		w.Zip = strings.TrimSpace(w.Zip)

		v := validate.Struct(&w)
		if !v.Validate() {
			logger.Warn("skipping invalid catalog entry",
				zap.Int("index", i),
				zap.String("widgetId", w.ID),
				zap.String("reason", v.Errors.One()),
			)
			continue
		}
		if _, dup := seen[w.ID]; dup {
			logger.Warn("skipping duplicate catalog entry", zap.String("widgetId", w.ID))
			continue
		}
		seen[w.ID] = struct{}{}
		widgets = append(widgets, w)
	}
	return widgets
}
