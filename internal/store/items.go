package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/claimwildcats/internal/model"
)

// ItemFilter narrows ListItems. Page is zero-based.
type ItemFilter struct {
	Status     string
	CampusZone string
	Query      string
	ReporterID string
	Page       int
	PageSize   int
}

const itemColumns = `id, title, description, location_text, campus_zone, status, tags, doc_urls,
	reporter_id, last_seen_at, created_at`

// CreateItem stores a new report.
func CreateItem(ctx context.Context, db *sql.DB, item *model.Item) (*model.Item, error) {
	tags, err := json.Marshal(nonNil(item.Tags))
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}
	docs, err := json.Marshal(nonNil(item.DocURLs))
	if err != nil {
		return nil, fmt.Errorf("encoding doc urls: %w", err)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	var zone sql.NullString
	if item.CampusZone != "" {
		zone = sql.NullString{String: string(item.CampusZone), Valid: true}
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Description, item.LocationText, zone, item.Status,
		string(tags), string(docs), item.ReporterID, item.LastSeenAt, item.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, db, item.ID)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	row := db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns one page of items, newest first, and the total number of
// items matching the filter.
func ListItems(ctx context.Context, db *sql.DB, f ItemFilter) ([]model.Item, int, error) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.CampusZone != "" {
		where = append(where, "campus_zone = ?")
		args = append(args, f.CampusZone)
	}
	if f.ReporterID != "" {
		where = append(where, "reporter_id = ?")
		args = append(args, f.ReporterID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, `(lower(title) LIKE ? OR lower(description) LIKE ?
			OR lower(location_text) LIKE ? OR lower(tags) LIKE ?)`)
		args = append(args, like, like, like, like)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting items: %w", err)
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := max(f.Page, 0)

	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items`+clause+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, pageSize, page*pageSize)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateItemStatus changes the status of an item. It reports false if the
// item does not exist.
func UpdateItemStatus(ctx context.Context, db *sql.DB, id, status string) (bool, error) {
	result, err := db.ExecContext(ctx, `UPDATE items SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return false, fmt.Errorf("updating item status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating item status: %w", err)
	}
	return n > 0, nil
}

// SimilarItems returns up to limit reports of the opposite kind that share
// the campus zone or at least one tag with the item.
func SimilarItems(ctx context.Context, db *sql.DB, item *model.Item, limit int) ([]model.Item, error) {
	opposite := model.ItemStatusFound
	if item.Status == model.ItemStatusFound {
		opposite = model.ItemStatusLost
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE status = ? AND id != ?
		 ORDER BY created_at DESC LIMIT 200`, opposite, item.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing similar items: %w", err)
	}
	candidates, err := scanItems(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	tags := make(map[string]bool, len(item.Tags))
	for _, t := range item.Tags {
		tags[t] = true
	}

	var similar []model.Item
	for _, c := range candidates {
		match := item.CampusZone != "" && c.CampusZone == item.CampusZone
		for _, t := range c.Tags {
			if tags[t] {
				match = true
				break
			}
		}
		if match {
			similar = append(similar, c)
			if len(similar) == limit {
				break
			}
		}
	}
	return similar, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	var item model.Item
	var zone sql.NullString
	var tags, docs string
	if err := row.Scan(&item.ID, &item.Title, &item.Description, &item.LocationText, &zone,
		&item.Status, &tags, &docs, &item.ReporterID, &item.LastSeenAt, &item.CreatedAt); err != nil {
		return nil, err
	}
	item.CampusZone = model.CampusZone(zone.String)
	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of item %s: %w", item.ID, err)
	}
	if err := json.Unmarshal([]byte(docs), &item.DocURLs); err != nil {
		return nil, fmt.Errorf("decoding doc urls of item %s: %w", item.ID, err)
	}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
