// Package render produces HTML email bodies from embedded templates.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path"
	"strings"

	"github.com/lalithlochan/postbox/internal/db"
	"github.com/lalithlochan/postbox/internal/mail"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer holds every parsed template keyed by file name without extension.
type Renderer struct {
	templates map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("render: read templates: %w", err)
	}

	r := &Renderer{templates: make(map[string]*template.Template)}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		tmpl, err := template.ParseFS(templateFS, "templates/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("render: parse %s: %w", entry.Name(), err)
		}
		r.templates[name] = tmpl
	}

	if _, ok := r.templates[mail.TemplateEmail]; !ok {
		return nil, fmt.Errorf("render: missing %q template", mail.TemplateEmail)
	}
	return r, nil
}

// Render executes the named template. Unknown names are a db.ErrNotFound.
func (r *Renderer) Render(name string, rc mail.RenderContext) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template %q: %w", name, db.ErrNotFound)
	}

	if rc.Language == "" {
		rc.Language = db.LanguageEnglish
	}
	rc.Language = strings.ToLower(rc.Language)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, rc); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
