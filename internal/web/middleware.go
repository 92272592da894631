package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/claimwildcats/internal/auth"
	"github.com/erazemk/claimwildcats/internal/objstore"
)

const sessionCookie = "session"

// sessionMiddleware restores the session from the cookie and adds it, and the
// matching storage principal, to the context. Requests without a valid session
// continue signed out.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.provider.Verify(r.Context(), cookie.Value)
		if err != nil {
			if auth.Code(err) == auth.CodeInvalidCredential {
				s.clearSessionCookie(w)
			} else {
				s.logger.Error("failed to verify session", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := auth.WithSession(r.Context(), sess)
		ctx = objstore.WithPrincipal(ctx, strconv.FormatInt(sess.User().ID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSession redirects signed-out visitors to the login page, which
// returns them here afterwards.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.SessionFrom(r.Context()) == nil {
			http.Redirect(w, r, "/auth/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// publicOnly sends signed-in users on to their destination.
func (s *Server) publicOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.SessionFrom(r.Context()) != nil {
			http.Redirect(w, r, safeNext(r.FormValue("next")), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// safeNext returns next if it is a local path outside the auth pages,
// otherwise /me.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return "/me"
	}
	if next == "/auth" || strings.HasPrefix(next, "/auth/") {
		return "/me"
	}
	return next
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token(),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(sess.ExpiresAt()).Seconds()),
	})
}

// clearSessionCookie clears the session cookie with consistent attributes.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
