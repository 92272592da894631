// Package attachment uploads the images attached to an item report.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/claimwildcats/internal/objstore"
)

// ErrMissingTarget is returned when no item id was given for the uploads.
var ErrMissingTarget = errors.New("missing target item id for uploads")

var (
	nonSlug    = regexp.MustCompile(`[^a-z0-9-]+`)
	dashRun    = regexp.MustCompile(`-+`)
	extPattern = regexp.MustCompile(`\.[^./]+$`)
)

// ObjectName builds the stored name for the index-th file of a batch:
// a sanitized base, the upload time in milliseconds, the index and the
// lowercased original extension.
func ObjectName(name string, index int, now time.Time) string {
	ext := strings.ToLower(extPattern.FindString(name))
	base := strings.ToLower(extPattern.ReplaceAllString(name, ""))
	base = nonSlug.ReplaceAllString(base, "-")
	base = dashRun.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "attachment"
	}
	return base + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + strconv.Itoa(index) + ext
}

// Uploader writes attachments to object storage.
type Uploader struct {
	store  objstore.Store
	bucket string
	logger *slog.Logger
	now    func() time.Time
}

// NewUploader creates an uploader writing into bucket.
func NewUploader(store objstore.Store, bucket string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{store: store, bucket: bucket, logger: logger, now: time.Now}
}

// Upload stores files one after another under items/<itemID>/ and returns
// their references in input order. If any upload fails, the objects written
// so far are deleted and the error is returned. The deletes run even when
// ctx has been cancelled.
func (u *Uploader) Upload(ctx context.Context, itemID string, files []File) ([]objstore.Ref, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, ErrMissingTarget
	}
	if len(files) == 0 {
		return []objstore.Ref{}, nil
	}

	refs := make([]objstore.Ref, 0, len(files))
	for i, f := range files {
		ref := objstore.Ref{
			Bucket: u.bucket,
			Path:   path.Join("items", itemID, ObjectName(f.Name, i, u.now())),
		}
		if err := u.store.Put(ctx, ref, f.ContentType, bytes.NewReader(f.Data)); err != nil {
			u.Rollback(context.WithoutCancel(ctx), refs)
			return nil, fmt.Errorf("uploading %s: %w", f.Name, err)
		}
		refs = append(refs, ref)
	}

	u.logger.Info("attachments uploaded", "item", itemID, "count", len(refs))
	return refs, nil
}

// Rollback deletes refs in reverse order. Failures are logged and ignored.
func (u *Uploader) Rollback(ctx context.Context, refs []objstore.Ref) {
	for i := len(refs) - 1; i >= 0; i-- {
		if err := u.store.Delete(ctx, refs[i]); err != nil {
			u.logger.Warn("failed to delete attachment during rollback", "ref", refs[i].String(), "error", err)
		}
	}
	if len(refs) > 0 {
		u.logger.Info("attachments rolled back", "count", len(refs))
	}
}

// RefStrings converts references to their storage:// form.
func RefStrings(refs []objstore.Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}
