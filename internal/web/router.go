// Package web serves the ClaimWildCats pages.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/erazemk/claimwildcats/internal/apiclient"
	"github.com/erazemk/claimwildcats/internal/auth"
	"github.com/erazemk/claimwildcats/internal/model"
	"github.com/erazemk/claimwildcats/internal/objstore"
	"github.com/erazemk/claimwildcats/internal/report"
	"github.com/erazemk/claimwildcats/internal/resolver"
	webembed "github.com/erazemk/claimwildcats/web"
)

// ItemsAPI is the part of the items API the pages use.
type ItemsAPI interface {
	ListItems(ctx context.Context, q apiclient.Query) (*model.ItemPage, error)
	GetItem(ctx context.Context, id string) (*model.Item, error)
	SimilarItems(ctx context.Context, id string) ([]model.Item, error)
	report.ItemCreator
}

// Storage signs attachment download URLs and serves the objects behind them.
type Storage interface {
	objstore.Signer
	Open(bucket, path, token string) (*os.File, string, error)
}

// Options holds the collaborators of a Server.
type Options struct {
	Provider       *auth.Provider
	Items          ItemsAPI
	Storage        Storage
	Uploader       report.Uploader
	Drafts         *report.Drafts
	ResolverMaxAge time.Duration
	SecureCookies  bool
	Logger         *slog.Logger
}

// Gallery views. Each owns one resolver.
const (
	galleryHome    = "home"
	galleryLost    = "lost"
	galleryFound   = "found"
	gallerySearch  = "search"
	galleryReports = "reports"
	gallerySimilar = "similar"
)

// Server holds all dependencies for page handlers.
type Server struct {
	provider  *auth.Provider
	items     ItemsAPI
	storage   Storage
	drafts    *report.Drafts
	submitter *report.Submitter
	templates *Templates
	secure    bool
	logger    *slog.Logger

	galleries   map[string]*resolver.Resolver
	unsubscribe func()
}

// NewServer parses the templates and wires the page handlers. Drafts of a
// user are dropped when they sign out.
func NewServer(opts Options) (*Server, error) {
	if opts.Provider == nil || opts.Items == nil || opts.Storage == nil || opts.Uploader == nil {
		return nil, errors.New("web: provider, items, storage and uploader are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Drafts == nil {
		opts.Drafts = report.NewDrafts(0, 0)
	}

	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		provider:  opts.Provider,
		items:     opts.Items,
		storage:   opts.Storage,
		drafts:    opts.Drafts,
		submitter: report.NewSubmitter(opts.Uploader, opts.Items, opts.Drafts, opts.Logger),
		templates: templates,
		secure:    opts.SecureCookies,
		logger:    opts.Logger,
		galleries: make(map[string]*resolver.Resolver),
	}
	for _, view := range []string{galleryHome, galleryLost, galleryFound, gallerySearch, galleryReports, gallerySimilar} {
		s.galleries[view] = resolver.New(opts.Storage, opts.ResolverMaxAge, opts.Logger.With("gallery", view))
	}

	s.unsubscribe = opts.Provider.Subscribe(func(ev auth.Event) {
		if ev.Kind != auth.EventSignedOut {
			return
		}
		if n := s.drafts.DropOwner(ev.User.ID); n > 0 {
			s.logger.Info("dropped drafts on sign-out", "user", ev.User.Email, "drafts", n)
		}
	})

	return s, nil
}

// Close stops the session subscription and tears down the gallery resolvers.
func (s *Server) Close() {
	s.unsubscribe()
	for _, r := range s.galleries {
		r.Close()
	}
}

// Handler returns the page router with all page routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	protected := s.requireSession
	publicOnly := s.publicOnly

	// Static assets and stored attachments.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))
	mux.HandleFunc("GET /storage/{bucket}/{path...}", s.StorageObject)

	// Public routes.
	mux.HandleFunc("GET /{$}", s.HomePage)
	mux.HandleFunc("GET /get-started", s.placeholder(getStartedPage))
	mux.HandleFunc("GET /search", s.SearchPage)
	mux.HandleFunc("GET /lost", s.LostPage)
	mux.HandleFunc("GET /found", s.FoundPage)
	mux.HandleFunc("GET /items/{id}", s.ItemDetailPage)

	// Authenticated routes.
	mux.Handle("GET /items/new/lost", protected(s.ReportPage(model.ItemStatusLost)))
	mux.Handle("POST /items/new/lost", protected(s.ReportSubmit(model.ItemStatusLost)))
	mux.Handle("GET /items/new/found", protected(s.ReportPage(model.ItemStatusFound)))
	mux.Handle("POST /items/new/found", protected(s.ReportSubmit(model.ItemStatusFound)))
	mux.Handle("GET /items/{id}/edit", protected(s.placeholder(editItemPage)))
	mux.Handle("GET /items/{id}/claim", protected(s.placeholder(claimItemPage)))
	mux.Handle("GET /me", protected(http.HandlerFunc(s.ProfilePage)))
	mux.Handle("GET /me/reports", protected(http.HandlerFunc(s.MyReportsPage)))
	mux.Handle("GET /settings", protected(http.HandlerFunc(s.SettingsPage)))
	mux.Handle("POST /settings", protected(http.HandlerFunc(s.SettingsSubmit)))
	mux.Handle("POST /settings/delete", protected(http.HandlerFunc(s.DeleteAccount)))
	mux.Handle("GET /admin", protected(s.placeholder(adminDashboardPage)))
	mux.Handle("GET /admin/users", protected(s.placeholder(adminUsersPage)))
	mux.Handle("GET /admin/reports", protected(s.placeholder(adminReportsPage)))
	mux.Handle("GET /admin/moderation", protected(s.placeholder(adminModerationPage)))
	mux.Handle("GET /admin/analytics", protected(s.placeholder(adminAnalyticsPage)))

	// Public-only routes.
	mux.Handle("GET /auth/login", publicOnly(http.HandlerFunc(s.LoginPage)))
	mux.Handle("POST /auth/login", publicOnly(http.HandlerFunc(s.LoginSubmit)))
	mux.Handle("GET /auth/register", publicOnly(http.HandlerFunc(s.RegisterPage)))
	mux.Handle("POST /auth/register", publicOnly(http.HandlerFunc(s.RegisterSubmit)))
	mux.Handle("POST /auth/federated", publicOnly(http.HandlerFunc(s.FederatedSubmit)))
	mux.HandleFunc("POST /auth/logout", s.Logout)

	mux.HandleFunc("/", s.NotFoundPage)

	return s.sessionMiddleware(mux)
}
