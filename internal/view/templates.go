package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/web"
)

// Engine renders HTML templates.
type Engine struct {
	pages     map[string]*template.Template
	documents map[string]*template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	CurrentPath string
	User        *shared.Principal
	Data        any
}

// Funcs returns the helpers available to every template.
func Funcs() template.FuncMap {
	printer := message.NewPrinter(language.English)
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"formatDay": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"formatMoney": func(v float64) string {
			return printer.Sprintf("%.2f", v)
		},
		"formatNumber": func(v int) string {
			return printer.Sprintf("%d", v)
		},
		"title": func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"isRole": func(p *shared.Principal, role string) bool {
			return p != nil && string(p.Role) == role
		},
	}
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	base, err := template.New("root").Funcs(Funcs()).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, err
	}
	e := &Engine{pages: map[string]*template.Template{}, documents: map[string]*template.Template{}}

	pageFiles, err := globAll(web.Templates, "templates/pages/*.html", "templates/pages/*/*.html")
	if err != nil {
		return nil, err
	}
	for _, file := range pageFiles {
		tpl, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := tpl.ParseFS(web.Templates, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		e.pages[strings.TrimPrefix(file, "templates/")] = tpl
	}

	docFiles, err := fs.Glob(web.Templates, "templates/documents/*.html")
	if err != nil {
		return nil, err
	}
	for _, file := range docFiles {
		tpl, err := template.New(path.Base(file)).Funcs(Funcs()).ParseFS(web.Templates, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		e.documents[strings.TrimPrefix(file, "templates/")] = tpl
	}
	return e, nil
}

func globAll(fsys fs.FS, patterns ...string) ([]string, error) {
	var out []string
	for _, p := range patterns {
		matches, err := fs.Glob(fsys, p)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

// Render executes a page inside the base layout. The page is rendered into a
// buffer first and the status is written only on success.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus is Render with an explicit status code.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	tpl, ok := e.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderDocument executes a standalone document such as a printable invoice.
func (e *Engine) RenderDocument(w io.Writer, name string, data any) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	tpl, ok := e.documents[name]
	if !ok {
		return fmt.Errorf("document %q not found", name)
	}
	return tpl.Execute(w, data)
}

// NewTemplateData collects the per-request values every page needs. Pending
// flashes are consumed.
func NewTemplateData(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	td := TemplateData{Title: title, CurrentPath: r.URL.Path, Data: data}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if csrf != nil {
			td.CSRFToken, _ = csrf.EnsureToken(sess)
		}
		td.Flashes = sess.PopFlashes()
	}
	if p, ok := shared.PrincipalFromContext(r.Context()); ok {
		td.User = &p
	}
	return td
}
