// Package report implements the lost and found report form and its
// submission flow.
package report

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/erazemk/claimwildcats/internal/model"
)

// Philippines is the fixed +08:00 zone the form's date input is read in.
var Philippines = time.FixedZone("PHT", 8*60*60)

// datetime-local layouts.
var lastSeenLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05"}

// Form holds the raw report input.
type Form struct {
	Title        string
	Description  string
	LocationText string
	CampusZone   string
	LastSeenAt   string
	Tags         string
}

// FormFromValues reads the form fields of a submitted request.
func FormFromValues(v url.Values) Form {
	return Form{
		Title:        v.Get("title"),
		Description:  v.Get("description"),
		LocationText: v.Get("locationText"),
		CampusZone:   v.Get("campusZone"),
		LastSeenAt:   v.Get("lastSeenAt"),
		Tags:         v.Get("tags"),
	}
}

// ValidationError lists the fields that need fixing, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

// fieldOrder is the order fields are reported in.
var fieldOrder = []string{"title", "description", "locationText", "campusZone", "lastSeenAt"}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range fieldOrder {
		if m, ok := e.Fields[f]; ok {
			msgs = append(msgs, m)
		}
	}
	return strings.Join(msgs, " ")
}

// Validate checks required fields and the zone and date formats.
func (f Form) Validate() error {
	fields := make(map[string]string)
	if strings.TrimSpace(f.Title) == "" {
		fields["title"] = "Title is required."
	}
	if strings.TrimSpace(f.Description) == "" {
		fields["description"] = "Description is required."
	}
	if strings.TrimSpace(f.LocationText) == "" {
		fields["locationText"] = "Location details are required."
	}
	if _, err := model.ParseCampusZone(f.CampusZone); err != nil {
		fields["campusZone"] = "Select a valid campus zone."
	}
	if strings.TrimSpace(f.LastSeenAt) == "" {
		fields["lastSeenAt"] = "Last seen date and time is required."
	} else if _, err := ParseLastSeen(f.LastSeenAt); err != nil {
		fields["lastSeenAt"] = "Enter a valid date and time."
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ParseLastSeen reads a datetime-local value as Philippines time and returns
// it in UTC. A bare date is read as midnight UTC.
func ParseLastSeen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "T") {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing last seen date: %w", err)
		}
		return t.UTC(), nil
	}
	var lastErr error
	for _, layout := range lastSeenLayouts {
		t, err := time.ParseInLocation(layout, s, Philippines)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("parsing last seen time: %w", lastErr)
}

var tagSeparator = regexp.MustCompile(`\r?\n|,`)

// SplitTags splits on commas and newlines, trims, drops empty entries and
// lowercases. Order and duplicates are kept.
func SplitTags(s string) []string {
	tags := []string{}
	for _, t := range tagSeparator.Split(s, -1) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, strings.ToLower(t))
		}
	}
	return tags
}

// Payload builds the item creation request for the given attachment refs.
func (f Form) Payload(docURLs []string) (model.CreateItemRequest, error) {
	req := model.CreateItemRequest{
		Title:        strings.TrimSpace(f.Title),
		Description:  strings.TrimSpace(f.Description),
		LocationText: strings.TrimSpace(f.LocationText),
		Tags:         SplitTags(f.Tags),
		DocURLs:      docURLs,
	}
	if req.DocURLs == nil {
		req.DocURLs = []string{}
	}

	zone, err := model.ParseCampusZone(f.CampusZone)
	if err != nil {
		return req, err
	}
	if zone != "" {
		req.CampusZone = &zone
	}

	if strings.TrimSpace(f.LastSeenAt) != "" {
		t, err := ParseLastSeen(f.LastSeenAt)
		if err != nil {
			return req, err
		}
		req.LastSeenAt = &t
	}
	return req, nil
}
