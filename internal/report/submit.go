package report

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/erazemk/claimwildcats/internal/apiclient"
	"github.com/erazemk/claimwildcats/internal/attachment"
	"github.com/erazemk/claimwildcats/internal/model"
	"github.com/erazemk/claimwildcats/internal/objstore"
)

// SuccessDelay is how long the success message shows before redirecting.
const SuccessDelay = 800 * time.Millisecond

// SuccessMessage is shown after a report was created.
const SuccessMessage = "Report submitted! Redirecting to the item page..."

// ItemCreator files reports with the items API.
type ItemCreator interface {
	CreateItem(ctx context.Context, status string, req model.CreateItemRequest) (*model.Item, error)
}

// Uploader stores attachments and removes them again on failure.
type Uploader interface {
	Upload(ctx context.Context, itemID string, files []attachment.File) ([]objstore.Ref, error)
	Rollback(ctx context.Context, refs []objstore.Ref)
}

// Result describes a successful submission.
type Result struct {
	Item     *model.Item
	Redirect string
}

// Submitter runs the submission flow for drafts.
type Submitter struct {
	uploader Uploader
	items    ItemCreator
	drafts   *Drafts
	logger   *slog.Logger
}

// NewSubmitter creates a submitter. drafts may be nil.
func NewSubmitter(uploader Uploader, items ItemCreator, drafts *Drafts, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{uploader: uploader, items: items, drafts: drafts, logger: logger}
}

// Submit validates the draft, uploads its attachments under the draft's item
// id and creates the item. If creating the item fails the uploads are rolled
// back before the error is returned. On success the draft is discarded.
func (s *Submitter) Submit(ctx context.Context, d *Draft) (*Result, error) {
	form, itemID, files, err := d.begin()
	if err != nil {
		return nil, err
	}

	refs, err := s.uploader.Upload(ctx, itemID, files)
	if err != nil {
		s.logger.Warn("report attachment upload failed", "draft", d.ID, "error", err)
		d.fail(err)
		return nil, err
	}

	d.setState(StateSubmitting)

	payload, err := form.Payload(attachment.RefStrings(refs))
	if err == nil {
		var created *model.Item
		created, err = s.items.CreateItem(ctx, d.Status, payload)
		if err == nil {
			return s.finish(d, created), nil
		}
	}

	s.uploader.Rollback(context.WithoutCancel(ctx), refs)
	s.logger.Error("report submission failed", "draft", d.ID, "status", d.Status, "error", err)
	d.fail(err)
	return nil, err
}

func (s *Submitter) finish(d *Draft, created *model.Item) *Result {
	redirect := "/me/reports"
	var id string
	if created != nil && created.ID != "" {
		id = created.ID
		redirect = "/items/" + created.ID
	}
	d.succeed(id)
	if s.drafts != nil {
		s.drafts.Discard(d.ID)
	}
	s.logger.Info("report submitted", "item", id, "status", d.Status, "owner", d.OwnerID)
	return &Result{Item: created, Redirect: redirect}
}

// UserMessage returns the text shown for a failed submission.
func UserMessage(err error) string {
	var ve *ValidationError
	var se *apiclient.StatusError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, objstore.ErrUnauthorized):
		return "We could not upload your images because storage access was denied. Try signing in again."
	case errors.Is(err, attachment.ErrMissingTarget):
		return "Unable to determine where to store the uploads."
	case errors.Is(err, ErrSubmitInProgress):
		return "Your report is already being submitted."
	case errors.As(err, &se):
		return se.Error()
	default:
		return "Unable to submit the report right now."
	}
}
