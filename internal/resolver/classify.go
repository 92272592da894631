package resolver

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/claimwildcats/internal/objstore"
)

var (
	imageExt = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|bmp)(\?.*)?$`)
	pdfExt   = regexp.MustCompile(`(?i)\.pdf(\?.*)?$`)
)

// LooksLikeImage reports whether a direct URL points at an image file.
func LooksLikeImage(u string) bool { return imageExt.MatchString(u) }

// IsPDF reports whether a URL points at a PDF.
func IsPDF(u string) bool { return pdfExt.MatchString(u) }

// Document is a non-image attachment link.
type Document struct {
	URL   string
	Label string
	PDF   bool
}

// Attachments are the displayable attachments of one item.
type Attachments struct {
	Images    []string
	Documents []Document
}

// Classify splits docURLs into images and document links, keeping input
// order. Storage references are treated as images; ones that cannot be
// resolved are left out.
func Classify(ctx context.Context, signer objstore.Signer, docURLs []string) Attachments {
	type slot struct {
		image string
		doc   string
	}
	slots := make([]slot, len(docURLs))

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, raw := range docURLs {
		u := normalizeSpace(raw)
		switch {
		case u == "":
		case objstore.IsRef(u):
			g.Go(func() error {
				ref, err := objstore.ParseRef(u)
				if err != nil {
					slog.Warn("invalid storage reference", "ref", u, "error", err)
					return nil
				}
				resolved, err := signer.DownloadURL(ctx, ref)
				if err != nil {
					slog.Warn("failed to resolve storage URL", "ref", u, "error", err)
					return nil
				}
				slots[i].image = resolved
				return nil
			})
		case LooksLikeImage(u):
			slots[i].image = u
		default:
			slots[i].doc = u
		}
	}
	g.Wait()

	var out Attachments
	for _, s := range slots {
		if s.image != "" {
			out.Images = append(out.Images, s.image)
		}
		if s.doc != "" {
			out.Documents = append(out.Documents, Document{
				URL:   s.doc,
				Label: "Document " + strconv.Itoa(len(out.Documents)+1),
				PDF:   IsPDF(s.doc),
			})
		}
	}
	return out
}
