package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/claimwildcats/internal/attachment"
	"github.com/erazemk/claimwildcats/internal/auth"
	"github.com/erazemk/claimwildcats/internal/listing"
	"github.com/erazemk/claimwildcats/internal/model"
	webembed "github.com/erazemk/claimwildcats/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrator"
			case model.RoleStaff:
				return "Staff"
			case model.RoleUser:
				return "Student"
			default:
				return role
			}
		},
		"statusName": func(status string) string {
			switch status {
			case model.ItemStatusLost:
				return "Lost"
			case model.ItemStatusFound:
				return "Found"
			case model.ItemStatusClaimed:
				return "Claimed"
			default:
				return status
			}
		},
		"zoneName": func(z model.CampusZone) string {
			s := string(z)
			if strings.HasPrefix(s, "Gate") {
				return "Gate " + strings.TrimPrefix(s, "Gate")
			}
			return s
		},
		"formatTime": func(t time.Time) string { return listing.FormatTime(t, "Unknown") },
		"formatTimePtr": func(t *time.Time) string {
			if t == nil {
				return "Not specified"
			}
			return listing.FormatTime(*t, "Not specified")
		},
		"formatSize": attachment.FormatSize,
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	// Read layout and shared partials.
	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}
	cardsBytes, err := fs.ReadFile(tfs, "cards.html")
	if err != nil {
		return nil, fmt.Errorf("reading cards template: %w", err)
	}

	pages := []string{
		"home.html",
		"items.html",
		"item_detail.html",
		"report_form.html",
		"report_success.html",
		"login.html",
		"register.html",
		"profile.html",
		"settings.html",
		"placeholder.html",
		"not_found.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		for _, src := range []struct {
			name string
			data []byte
		}{{"layout", layoutBytes}, {"cards", cardsBytes}, {page, pageBytes}} {
			tmpl, err = tmpl.Parse(string(src.data))
			if err != nil {
				return nil, fmt.Errorf("parsing %s for %s: %w", src.name, page, err)
			}
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with the given status code.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, buf.String())
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	User    *model.User
	Error   string
	Success string
	Notice  string
}

// pageData returns the base data for a page rendered to the session in r.
func pageData(r *http.Request, title string) PageData {
	pd := PageData{Title: title}
	if sess := auth.SessionFrom(r.Context()); sess != nil {
		u := sess.User()
		pd.User = &u
	}
	return pd
}
