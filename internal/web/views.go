// Package web renders the visitor-facing HTML pages.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/widget-claims/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

var pages = []string{"claim", "check_email", "confirmed", "error"}

// Site carries the branding shown on every page.
type Site struct {
	BrandName    string
	SupportEmail string
	ShopURL      string
	GuideURL     string
}

// Page is the template data for all views. Fields a page does not use stay zero.
type Page struct {
	Site
	Title       string
	Error       string
	Message     string
	Email       string
	Widgets     []domain.Widget
	Widget      domain.Widget
	DownloadURL string
}

var _ fiber.Views = (*Views)(nil)

// Views implements fiber.Views over the embedded templates. Each page is
// parsed together with the shared layout.
type Views struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

func NewViews() *Views {
	return &Views{}
}

func (v *Views) Load() error {
	loaded := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		tmpl, err := template.ParseFS(templateFS, layoutFile, "templates/"+name+".html")
		if err != nil {
			return fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		loaded[name] = tmpl
	}

	v.mu.Lock()
	v.templates = loaded
	v.mu.Unlock()
	return nil
}

func (v *Views) Render(w io.Writer, name string, binding interface{}, _ ...string) error {
	v.mu.RLock()
	tmpl, ok := v.templates[name]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout.html", binding)
}
