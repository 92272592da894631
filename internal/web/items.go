package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/claimwildcats/internal/apiclient"
	"github.com/erazemk/claimwildcats/internal/auth"
	"github.com/erazemk/claimwildcats/internal/listing"
	"github.com/erazemk/claimwildcats/internal/model"
	"github.com/erazemk/claimwildcats/internal/resolver"
)

// card is one item of a gallery.
type card struct {
	Item    model.Item
	Image   string
	Snippet string
	Tags    []string
	Updated string
}

// cards resolves the gallery images of items with the view's resolver.
func (s *Server) cards(ctx context.Context, view string, items []model.Item) []card {
	images := s.galleries[view].Resolve(ctx, items)
	out := make([]card, 0, len(items))
	for _, it := range items {
		out = append(out, card{
			Item:    it,
			Image:   images[it.ID],
			Snippet: listing.Snippet(it.Description, listing.SnippetLength),
			Tags:    listing.CardTags(it.Tags, listing.CardTagLimit),
			Updated: listing.FormatTime(it.CreatedAt, "Unknown"),
		})
	}
	return out
}

type listData struct {
	PageData
	Heading     string
	Intro       string
	Action      string
	Status      string
	Query       string
	Zone        string
	Sort        listing.Sort
	SortOptions []listing.SortOption
	Zones       []model.CampusZone
	Search      bool
	Cards       []card
	Total       int
	Empty       string
}

// LostPage handles GET /lost.
func (s *Server) LostPage(w http.ResponseWriter, r *http.Request) {
	s.browse(w, r, galleryLost, &listData{
		PageData: pageData(r, "Lost items"),
		Heading:  "Lost Items",
		Intro:    "Browse items reported missing around campus.",
		Action:   "/lost",
		Status:   model.ItemStatusLost,
		Empty:    "No lost items match your search.",
	})
}

// FoundPage handles GET /found.
func (s *Server) FoundPage(w http.ResponseWriter, r *http.Request) {
	s.browse(w, r, galleryFound, &listData{
		PageData: pageData(r, "Found items"),
		Heading:  "Found Items",
		Intro:    "Browse items turned in around campus.",
		Action:   "/found",
		Status:   model.ItemStatusFound,
		Empty:    "No found items match your search.",
	})
}

// SearchPage handles GET /search.
func (s *Server) SearchPage(w http.ResponseWriter, r *http.Request) {
	data := &listData{
		PageData: pageData(r, "Search"),
		Heading:  "Search Items",
		Intro:    "Search lost and found reports by keyword, status and campus zone.",
		Action:   "/search",
		Search:   true,
		Zones:    model.CampusZones,
		Empty:    "No items match your search.",
	}

	status := r.FormValue("status")
	if status == model.ItemStatusLost || status == model.ItemStatusFound || status == model.ItemStatusClaimed {
		data.Status = status
	}
	if zone, err := model.ParseCampusZone(r.FormValue("campusZone")); err == nil {
		data.Zone = string(zone)
	}

	s.browse(w, r, gallerySearch, data)
}

// browse fills data with the items matching the request's filters.
func (s *Server) browse(w http.ResponseWriter, r *http.Request, view string, data *listData) {
	q := listing.BrowseQuery(data.Status, r.FormValue("q"))
	q.CampusZone = data.Zone
	data.Query = q.Q
	data.Sort = listing.ParseSort(r.FormValue("sort"))
	data.SortOptions = listing.SortOptions

	page, err := s.items.ListItems(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to list items", "view", view, "error", err)
		data.Error = "Unable to load items: " + err.Error()
		s.templates.Render(w, "items.html", data)
		return
	}

	data.Total = page.TotalItems
	data.Cards = s.cards(r.Context(), view, listing.SortItems(page.Items, data.Sort))
	s.templates.Render(w, "items.html", data)
}

// MyReportsPage handles GET /me/reports.
func (s *Server) MyReportsPage(w http.ResponseWriter, r *http.Request) {
	user := auth.SessionFrom(r.Context()).User()
	data := &listData{
		PageData: pageData(r, "My reports"),
		Heading:  "My Reports",
		Intro:    "Reports you have filed.",
		Action:   "/me/reports",
		Empty:    "You have not filed any reports yet.",
	}
	data.Sort = listing.ParseSort(r.FormValue("sort"))
	data.SortOptions = listing.SortOptions

	page, err := s.items.ListItems(r.Context(), listing.Query{
		ReporterID: strconv.FormatInt(user.ID, 10),
		PageSize:   listing.DefaultPageSize,
	})
	if err != nil {
		s.logger.Error("failed to list reports", "user", user.Email, "error", err)
		data.Error = "Unable to load your reports: " + err.Error()
		s.templates.Render(w, "items.html", data)
		return
	}

	data.Total = page.TotalItems
	data.Cards = s.cards(r.Context(), galleryReports, listing.SortItems(page.Items, data.Sort))
	s.templates.Render(w, "items.html", data)
}

type detailData struct {
	PageData
	Item        *model.Item
	Attachments resolver.Attachments
	Similar     []card
	Reported    string
	LastSeen    string
	IsReporter  bool
}

// ItemDetailPage handles GET /items/{id}.
func (s *Server) ItemDetailPage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	item, err := s.items.GetItem(r.Context(), id)
	if err != nil {
		var se *apiclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			s.NotFoundPage(w, r)
			return
		}
		s.logger.Error("failed to get item", "item", id, "error", err)
		data := &detailData{PageData: pageData(r, "Item")}
		data.Error = "Unable to load this item: " + err.Error()
		s.templates.RenderStatus(w, http.StatusBadGateway, "item_detail.html", data)
		return
	}

	data := &detailData{
		PageData:    pageData(r, item.Title),
		Item:        item,
		Attachments: resolver.Classify(r.Context(), s.storage, item.DocURLs),
		Reported:    listing.FormatTime(item.CreatedAt, "Unknown"),
		LastSeen:    "Not specified",
	}
	if item.LastSeenAt != nil {
		data.LastSeen = listing.FormatTime(*item.LastSeenAt, "Not specified")
	}
	if data.User != nil && strconv.FormatInt(data.User.ID, 10) == item.ReporterID {
		data.IsReporter = true
	}

	similar, err := s.items.SimilarItems(r.Context(), id)
	if err != nil {
		s.logger.Debug("similar items unavailable", "item", id, "error", err)
	} else {
		data.Similar = s.cards(r.Context(), gallerySimilar, similar)
	}

	s.templates.Render(w, "item_detail.html", data)
}
