package profilesvc

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
)

// ErrUnknownView is returned when rendering a page that was not parsed.
var ErrUnknownView = errors.New("unknown view")

//go:embed views/*.html
var viewFS embed.FS

//nolint:gochecknoglobals
var viewNames = []string{"home", "login", "edit", "logout", "not_found"}

type homeView struct {
	Email string
}

type loginView struct {
	Messages []string
}

type editView struct {
	CurrentEmail string
}

// views holds one template set per page, each combined with the shared layout.
type views struct {
	pages map[string]*template.Template
}

func parseViews() (*views, error) {
	pages := make(map[string]*template.Template, len(viewNames))

	for _, name := range viewNames {
		tmpl, err := template.ParseFS(viewFS, "views/layout.html", "views/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse view %q: %w", name, err)
		}

		pages[name] = tmpl
	}

	return &views{pages: pages}, nil
}

// render executes a page into a buffer first, so a template error can still
// be answered with a 500.
func (v *views) render(w http.ResponseWriter, status int, name string, data any) error {
	tmpl, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownView, name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("execute view %q: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write view %q: %w", name, err)
	}

	return nil
}
