package web

import (
	"net/http"

	"github.com/erazemk/claimwildcats/internal/auth"
	"github.com/erazemk/claimwildcats/internal/listing"
	"github.com/erazemk/claimwildcats/internal/model"
)

// recentLimit is the number of found items on the home page.
const recentLimit = 6

type homeData struct {
	PageData
	Recent []card
}

// HomePage handles GET /.
func (s *Server) HomePage(w http.ResponseWriter, r *http.Request) {
	data := &homeData{PageData: pageData(r, "Find & Recover With Ease")}

	page, err := s.items.ListItems(r.Context(), listing.Query{Status: model.ItemStatusFound, PageSize: recentLimit})
	if err != nil {
		s.logger.Warn("failed to load recent items", "error", err)
	} else {
		data.Recent = s.cards(r.Context(), galleryHome, page.Items)
	}

	s.templates.Render(w, "home.html", data)
}

// ProfilePage handles GET /me.
func (s *Server) ProfilePage(w http.ResponseWriter, r *http.Request) {
	s.templates.Render(w, "profile.html", &struct {
		PageData
		Page placeholderPage
	}{
		PageData: pageData(r, "Profile"),
		Page:     profilePage,
	})
}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	data := &struct {
		PageData
		Page placeholderPage
	}{
		PageData: pageData(r, "Settings"),
		Page:     settingsPage,
	}
	if r.FormValue("saved") != "" {
		data.Success = "Profile updated."
	}
	s.templates.Render(w, "settings.html", data)
}

// SettingsSubmit handles POST /settings.
func (s *Server) SettingsSubmit(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFrom(r.Context())
	if err := s.provider.UpdateProfile(r.Context(), sess, r.FormValue("display_name")); err != nil {
		s.logger.Error("failed to update profile", "user", sess.User().Email, "error", err)
		s.settingsError(w, r, http.StatusOK, auth.Message(err))
		return
	}
	http.Redirect(w, r, "/settings?saved=1", http.StatusSeeOther)
}

// DeleteAccount handles POST /settings/delete. The password is asked for
// again before the account is closed.
func (s *Server) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFrom(r.Context())
	if err := s.provider.DeleteAccount(r.Context(), sess, r.FormValue("password")); err != nil {
		if auth.Code(err) == auth.CodeInvalidCredential {
			s.settingsError(w, r, http.StatusUnauthorized, "Incorrect password. Your account was not deleted.")
			return
		}
		s.logger.Error("failed to delete account", "user", sess.User().Email, "error", err)
		s.settingsError(w, r, http.StatusInternalServerError, auth.Message(err))
		return
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) settingsError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	data := &struct {
		PageData
		Page placeholderPage
	}{
		PageData: pageData(r, "Settings"),
		Page:     settingsPage,
	}
	data.Error = msg
	s.templates.RenderStatus(w, status, "settings.html", data)
}

// placeholderPage is a page whose feature is described but not built yet.
type placeholderPage struct {
	Title       string
	Description string
	Heading     string
	Points      []string
	Ordered     bool
	Links       []pageLink
}

type pageLink struct {
	Label string
	Href  string
}

var (
	getStartedPage = placeholderPage{
		Title:       "How ClaimWildCats Works",
		Description: "Follow these steps to reunite items with their owners quickly.",
		Heading:     "Three Simple Steps",
		Ordered:     true,
		Points: []string{
			"Report a lost or found item with as much detail as possible.",
			"Track matches and manage claims from your dashboard.",
			"Coordinate pickup using secure in-app messages.",
		},
		Links: []pageLink{{"Report a lost item", "/items/new/lost"}, {"Report a found item", "/items/new/found"}},
	}
	profilePage = placeholderPage{
		Title:       "Profile",
		Description: "Personal hub showing verified identity, role, and quick access to posts and claims.",
		Heading:     "Sections",
		Points: []string{
			"Profile overview with avatar, contact info, and verification status.",
			"Tabs for My Posts, My Claims, Saved Searches, and Notifications.",
			"Placeholder metrics like successful reunites and open cases.",
		},
	}
	settingsPage = placeholderPage{
		Title:       "Settings",
		Description: "Control notification preferences, privacy options, and account security.",
		Heading:     "Preferences",
		Points: []string{
			"Email, SMS, and push toggle placeholders.",
			"Privacy controls for anonymous postings and contact visibility.",
			"Two-factor authentication and delete account workflows.",
		},
	}
	editItemPage = placeholderPage{
		Title:       "Edit Report",
		Description: "Manage an existing lost or found report, update status, or close it after resolution.",
		Heading:     "Capabilities",
		Points: []string{
			"Pre-filled form mirroring the create experience.",
			"Quick actions to mark as returned, close the report, or duplicate.",
			"Audit trail placeholder so admins can trace changes.",
		},
	}
	claimItemPage = placeholderPage{
		Title:       "Claim Item",
		Description: "Structured flow for owners to verify items and for finders/admins to review claims.",
		Heading:     "Workflow",
		Points: []string{
			"Step 1: Owner provides proof of ownership and secret details.",
			"Step 2: Submission confirmation with pending status updates.",
			"Step 3: Finder/admin review panel with approve/deny controls and audit trail.",
		},
	}
	adminDashboardPage = placeholderPage{
		Title:       "Admin Dashboard",
		Description: "High-level overview of lost and found activity, queues, and hot spots.",
		Heading:     "Dashboard Widgets",
		Points: []string{
			"KPIs like claim rate, average match time, and weekly volume.",
			"Heatmap widget highlighting campus loss hotspots.",
			"Queues for pending claims, flagged posts, and suspected duplicates.",
		},
		Links: []pageLink{{"Manage Users", "/admin/users"}, {"Moderation Queue", "/admin/moderation"}},
	}
	adminUsersPage = placeholderPage{
		Title:       "Manage Users",
		Description: "Moderation panel to oversee user roles, status, and activity.",
		Heading:     "User Table",
		Points: []string{
			"Columns for name, email, role, status, and post counts.",
			"Actions to promote, demote, or disable accounts.",
			"Filters for role, status, and recent activity.",
		},
	}
	adminReportsPage = placeholderPage{
		Title:       "Manage Reports",
		Description: "Admin view over every lost and found report across the system.",
		Heading:     "Moderation Tools",
		Points: []string{
			"Bulk actions for hiding, merging duplicates, or deleting with reasons.",
			"Advanced filters for category, status, custodian, and date ranges.",
			"Inline flags showing dispute or abuse reports.",
		},
	}
	adminModerationPage = placeholderPage{
		Title:       "Moderation Queue",
		Description: "Handle flagged content, suspected duplicates, and removal workflows.",
		Heading:     "Queue Priorities",
		Points: []string{
			"Flag review with reason codes like spam or inappropriate content.",
			"Duplicate detection list with merge suggestions.",
			"Soft delete controls with audit logging and reversal options.",
		},
	}
	adminAnalyticsPage = placeholderPage{
		Title:       "Analytics & Exports",
		Description: "Generate reports and visualize trends across categories, locations, and time.",
		Heading:     "Insights",
		Points: []string{
			"Charts by category, building, and time-of-day distributions.",
			"Download options for CSV and PDF exports.",
			"Integrations placeholder for data warehousing or BI tools.",
		},
	}
)

// placeholder renders a page of description copy.
func (s *Server) placeholder(p placeholderPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.templates.Render(w, "placeholder.html", &struct {
			PageData
			Page placeholderPage
		}{
			PageData: pageData(r, p.Title),
			Page:     p,
		})
	}
}

// NotFoundPage renders the 404 page.
func (s *Server) NotFoundPage(w http.ResponseWriter, r *http.Request) {
	s.templates.RenderStatus(w, http.StatusNotFound, "not_found.html", &struct{ PageData }{
		PageData: pageData(r, "Page Not Found"),
	})
}
