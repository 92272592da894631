package model

import (
	"fmt"
	"strings"
	"time"
)

// Item is a lost or found report.
type Item struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	LocationText string     `json:"locationText"`
	CampusZone   CampusZone `json:"campusZone,omitempty"`
	LastSeenAt   *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	Status       string     `json:"status"`
	Tags         []string   `json:"tags"`
	DocURLs      []string   `json:"docUrls"`
	ReporterID   string     `json:"reporterId,omitempty"`
}

// Item statuses.
const (
	ItemStatusLost    = "lost"
	ItemStatusFound   = "found"
	ItemStatusClaimed = "claimed"
)

// ValidReportStatus reports whether status can be used to file a new report.
func ValidReportStatus(status string) bool {
	return status == ItemStatusLost || status == ItemStatusFound
}

// ItemPage is one page of a filtered item listing.
type ItemPage struct {
	Items      []Item `json:"items"`
	TotalItems int    `json:"totalItems"`
	PageSize   int    `json:"pageSize"`
}

// CreateItemRequest is the body of POST /api/items/lost and /api/items/found.
// A nil CampusZone or LastSeenAt is sent as JSON null.
type CreateItemRequest struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	LocationText string      `json:"locationText"`
	CampusZone   *CampusZone `json:"campusZone"`
	LastSeenAt   *time.Time  `json:"lastSeenAt"`
	Tags         []string    `json:"tags"`
	DocURLs      []string    `json:"docUrls"`
}

// CampusZone is a coarse area of the campus.
type CampusZone string

// Campus zones.
const (
	ZoneMain    CampusZone = "Main"
	ZoneLibrary CampusZone = "Library"
	ZoneGym     CampusZone = "Gym"
	ZoneLabs    CampusZone = "Labs"
	ZoneCanteen CampusZone = "Canteen"
	ZoneParking CampusZone = "Parking"
	ZoneGate1   CampusZone = "Gate1"
	ZoneGate2   CampusZone = "Gate2"
	ZoneOther   CampusZone = "Other"
)

// CampusZones lists every zone in display order.
var CampusZones = []CampusZone{
	ZoneMain, ZoneLibrary, ZoneGym, ZoneLabs, ZoneCanteen,
	ZoneParking, ZoneGate1, ZoneGate2, ZoneOther,
}

// ParseCampusZone matches a zone case-insensitively. An empty value yields
// an empty zone and no error.
func ParseCampusZone(s string) (CampusZone, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, z := range CampusZones {
		if strings.EqualFold(string(z), s) {
			return z, nil
		}
	}
	return "", fmt.Errorf("unknown campus zone: %s", s)
}
