// Package template renders job scripts from the built-in script templates.
package template

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer is the script rendering contract the executors depend on. It is
// pure and safe for concurrent use; the work directory path is one of the
// variables, injected by the caller.
type Renderer interface {
	Render(templateID string, vars map[string]any) (string, error)
}

// ScriptRenderer renders the embedded templates. Construct it once and
// share it; parsing happens at construction time.
type ScriptRenderer struct {
	templates *template.Template
}

func NewScriptRenderer() (*ScriptRenderer, error) {
	t, err := template.New("scripts").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse job script templates: %w", err)
	}
	return &ScriptRenderer{templates: t}, nil
}

// Render executes the named template with the given variables.
func (r *ScriptRenderer) Render(templateID string, vars map[string]any) (string, error) {
	t := r.templates.Lookup(templateID)
	if t == nil {
		return "", fmt.Errorf("unknown job script template %q", templateID)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateID, err)
	}
	return buf.String(), nil
}
