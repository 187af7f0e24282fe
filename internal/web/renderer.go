package web

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// FS holds the page templates and the badge client.
//
//go:embed templates static
var FS embed.FS

var pages = []string{"verify.html", "not_found.html"}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.UTC().Format("January 2, 2006")
	},
	"join": strings.Join,
}

// TemplateRenderer is a html/template renderer for echo. Every page is
// parsed together with layout.html.
type TemplateRenderer struct {
	Templates map[string]*template.Template
}

// NewRenderer parses all pages from fsys.
func NewRenderer(fsys fs.FS) (*TemplateRenderer, error) {
	r := &TemplateRenderer{Templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(fsys, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, errors.Wrapf(err, "parse template %s", page)
		}
		r.Templates[page] = tmpl
	}
	return r, nil
}

func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.Templates[name]
	if !ok {
		return errors.Errorf("template %s not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout.html", data)
}
