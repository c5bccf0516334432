package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"go-image-playground/internal/i18n"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// pageNames lists the renderable pages. Each has a templates/<name>.html
// file defining the "content" block.
var pageNames = []string{"home", "playground", "about", "settings", "login"}

// Pages renders the server-side HTML surface. Every page shares the layout
// shell and resolves its strings through the request locale.
type Pages struct {
	templates map[string]*template.Template
}

// NewPages parses the embedded page templates against the shared layout.
func NewPages() (*Pages, error) {
	templates := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %q: %w", name, err)
		}
		templates[name] = tmpl
	}
	return &Pages{templates: templates}, nil
}

// pageData is the execution context for every page template.
type pageData struct {
	Page   string
	Locale string
	Path   string
	tr     i18n.Translator
}

// T resolves a message key in the request locale.
func (d pageData) T(key string) string { return d.tr(key) }

func (p *Pages) Home(w http.ResponseWriter, r *http.Request)       { p.render(w, r, "home") }
func (p *Pages) Playground(w http.ResponseWriter, r *http.Request) { p.render(w, r, "playground") }
func (p *Pages) About(w http.ResponseWriter, r *http.Request)      { p.render(w, r, "about") }
func (p *Pages) Settings(w http.ResponseWriter, r *http.Request)   { p.render(w, r, "settings") }
func (p *Pages) Login(w http.ResponseWriter, r *http.Request)      { p.render(w, r, "login") }

func (p *Pages) render(w http.ResponseWriter, r *http.Request, name string) {
	locale := i18n.FromRequest(r)
	data := pageData{
		Page:   name,
		Locale: locale,
		Path:   r.URL.Path,
		tr:     i18n.NewTranslator(locale),
	}

	// Render to a buffer first so a template failure never leaks a half
	// written page.
	var buf bytes.Buffer
	if err := p.templates[name].ExecuteTemplate(&buf, "layout.html", data); err != nil {
		slog.Error("failed to render page", "page", name, "error", err)
		http.Error(w, "Unexpected server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// StaticHandler serves the embedded stylesheet and scripts under /static/.
func StaticHandler() http.Handler {
	assets, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(assets)))
}
