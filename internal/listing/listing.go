// Package listing sorts, filters and formats item lists for the browse and
// search pages.
package listing

import (
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/claimwildcats/internal/model"
)

// DefaultPageSize is the page size the browse pages request.
const DefaultPageSize = 60

// SnippetLength is the length of card description snippets.
const SnippetLength = 140

// CardTagLimit is the number of tags shown on a card.
const CardTagLimit = 5

// Sort is a list ordering.
type Sort string

// Orderings.
const (
	SortNewest Sort = "newest"
	SortOldest Sort = "oldest"
	SortName   Sort = "name"
)

// SortOption is an entry of the sort selector.
type SortOption struct {
	Value Sort
	Label string
}

// SortOptions lists the orderings in selector order.
var SortOptions = []SortOption{
	{SortNewest, "Newest first"},
	{SortOldest, "Oldest first"},
	{SortName, "Name A-Z"},
}

// ParseSort returns the ordering named by s, defaulting to newest first.
func ParseSort(s string) Sort {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case SortOldest:
		return SortOldest
	case SortName:
		return SortName
	default:
		return SortNewest
	}
}

// SortItems returns a sorted copy of items. Equal keys keep their input order.
func SortItems(items []model.Item, s Sort) []model.Item {
	out := slices.Clone(items)
	switch s {
	case SortOldest:
		slices.SortStableFunc(out, func(a, b model.Item) int { return a.CreatedAt.Compare(b.CreatedAt) })
	case SortName:
		slices.SortStableFunc(out, func(a, b model.Item) int { return strings.Compare(a.Title, b.Title) })
	default:
		slices.SortStableFunc(out, func(a, b model.Item) int { return b.CreatedAt.Compare(a.CreatedAt) })
	}
	return out
}

// Query is a list request to the items API.
type Query struct {
	Status     string
	CampusZone string
	Q          string
	ReporterID string
	Page       int
	PageSize   int
}

// Values encodes the query. Empty filters are omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.CampusZone != "" {
		v.Set("campusZone", q.CampusZone)
	}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.ReporterID != "" {
		v.Set("reporterId", q.ReporterID)
	}
	v.Set("page", strconv.Itoa(max(q.Page, 0)))
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	v.Set("pageSize", strconv.Itoa(pageSize))
	return v
}

// BrowseQuery is the query of the lost and found pages.
func BrowseQuery(status, q string) Query {
	return Query{Status: status, Q: strings.TrimSpace(q), PageSize: DefaultPageSize}
}

var spaceRun = regexp.MustCompile(`[\s\x{2000}-\x{200B}\x{FEFF}]+`)

// Snippet normalizes whitespace and shortens s to at most maxLen characters,
// cutting at the last space and appending "...".
func Snippet(s string, maxLen int) string {
	cleaned := strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}
	truncated := string(runes[:maxLen])
	if i := strings.LastIndex(truncated, " "); i > 0 {
		truncated = truncated[:i]
	}
	return truncated + "..."
}

// CardTags returns the first n tags.
func CardTags(tags []string, n int) []string {
	if len(tags) <= n {
		return tags
	}
	return tags[:n]
}

var manila = loadManila()

func loadManila() *time.Location {
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		return time.FixedZone("PHT", 8*60*60)
	}
	return loc
}

// FormatTime renders t in Manila time, or fallback when t is zero.
func FormatTime(t time.Time, fallback string) string {
	if t.IsZero() {
		return fallback
	}
	return t.In(manila).Format("Jan 2, 2006, 3:04 PM")
}
