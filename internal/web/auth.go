package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/erazemk/claimwildcats/internal/auth"
)

type authData struct {
	PageData
	Next        string
	Email       string
	DisplayName string
	Federated   string
}

// LoginPage handles GET /auth/login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := &authData{PageData: pageData(r, "Sign in"), Next: r.FormValue("next")}
	if r.FormValue("registered") != "" {
		data.Success = "Account created. Sign in to continue."
	}
	s.templates.Render(w, "login.html", data)
}

// LoginSubmit handles POST /auth/login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	next := r.FormValue("next")

	sess, err := s.provider.SignIn(r.Context(), email, password)
	if err != nil {
		if auth.Code(err) != auth.CodeInvalidCredential && auth.Code(err) != auth.CodeInvalidEmail {
			s.logger.Error("sign-in failed", "user", email, "error", err)
		}
		data := &authData{PageData: pageData(r, "Sign in"), Next: next, Email: email}
		data.Error = auth.Message(err)
		s.templates.Render(w, "login.html", data)
		return
	}

	s.setSessionCookie(w, sess)
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

// FederatedSubmit handles POST /auth/federated.
func (s *Server) FederatedSubmit(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("provider")
	if name == "" {
		name = "Google"
	}
	next := r.FormValue("next")

	sess, err := s.provider.SignInFederated(r.Context(), name)
	if err != nil {
		data := &authData{PageData: pageData(r, "Sign in"), Next: next}
		data.Error = auth.Message(err)
		s.templates.Render(w, "login.html", data)
		return
	}

	s.setSessionCookie(w, sess)
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

// RegisterPage handles GET /auth/register.
func (s *Server) RegisterPage(w http.ResponseWriter, r *http.Request) {
	s.templates.Render(w, "register.html", &authData{PageData: pageData(r, "Create account"), Next: r.FormValue("next")})
}

// RegisterSubmit handles POST /auth/register.
func (s *Server) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	data := &authData{
		PageData:    pageData(r, "Create account"),
		Next:        r.FormValue("next"),
		Email:       strings.TrimSpace(r.FormValue("email")),
		DisplayName: strings.TrimSpace(r.FormValue("display_name")),
	}
	password := r.FormValue("password")

	if password != r.FormValue("confirm_password") {
		data.Error = "Passwords do not match."
		s.templates.Render(w, "register.html", data)
		return
	}

	if _, err := s.provider.Register(r.Context(), data.Email, password, data.DisplayName); err != nil {
		if auth.Code(err) == auth.CodeInternal {
			s.logger.Error("registration failed", "user", data.Email, "error", err)
		}
		data.Error = auth.Message(err)
		s.templates.Render(w, "register.html", data)
		return
	}

	target := "/auth/login?registered=1"
	if data.Next != "" {
		target += "&next=" + url.QueryEscape(data.Next)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout handles POST /auth/logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := auth.SessionFrom(r.Context()); sess != nil {
		if err := s.provider.SignOut(r.Context(), sess); err != nil {
			s.logger.Error("failed to revoke session", "user", sess.User().Email, "error", err)
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
