package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/erazemk/claimwildcats/internal/attachment"
	"github.com/erazemk/claimwildcats/internal/auth"
	"github.com/erazemk/claimwildcats/internal/imaging"
	"github.com/erazemk/claimwildcats/internal/model"
	"github.com/erazemk/claimwildcats/internal/report"
)

// maxUploadMemory is the multipart memory limit of the report form.
const maxUploadMemory = 32 << 20

// maxFormFieldBytes is the allowance for the report's text fields on top of
// its attachments.
const maxFormFieldBytes = 1 << 20

var errFileTooLarge = errors.New("file too large")

// Form actions.
const (
	actionAttach = "attach"
	actionReset  = "reset"
	actionSubmit = "submit"
	removePrefix = "remove:"
)

type reportData struct {
	PageData
	Heading     string
	Action      string
	Draft       report.View
	Zones       []model.CampusZone
	FieldErrors map[string]string
	MaxFileSize int64
}

type successData struct {
	PageData
	Message  string
	Redirect string
	Delay    string
}

func reportHeading(status string) string {
	if status == model.ItemStatusFound {
		return "Report a Found Item"
	}
	return "Report a Lost Item"
}

// ReportPage handles GET /items/new/{lost,found}. A draft query parameter
// resumes that draft; otherwise the user's latest draft for the status is
// reopened, or a new one is started.
func (s *Server) ReportPage(status string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.SessionFrom(r.Context()).User()

		d, ok := s.drafts.Get(r.FormValue("draft"), user.ID)
		if !ok || d.Status != status {
			d = s.drafts.Open(user.ID, status)
		}
		s.renderReportStatus(w, r, d, "", http.StatusOK)
	})
}

// maxReportBytes bounds the report form body: a full set of attachments
// plus the text fields.
func (s *Server) maxReportBytes() int64 {
	return int64(s.drafts.Limit())*attachment.MaxFileSize + maxFormFieldBytes
}

// ReportSubmit handles POST /items/new/{lost,found}: attaching and removing
// images, clearing the form and submitting the report.
func (s *Server) ReportSubmit(status string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.SessionFrom(r.Context()).User()

		r.Body = http.MaxBytesReader(w, r.Body, s.maxReportBytes())
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			s.logger.Warn("failed to parse report form", "user", user.Email, "error", err)
			d, ok := s.drafts.Get(r.URL.Query().Get("draft"), user.ID)
			if !ok || d.Status != status {
				d = s.drafts.Open(user.ID, status)
			}
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				msg := fmt.Sprintf("The upload is too large. Attach up to %d images of at most %s each.",
					s.drafts.Limit(), attachment.FormatSize(attachment.MaxFileSize))
				s.renderReportStatus(w, r, d, msg, http.StatusRequestEntityTooLarge)
				return
			}
			s.renderReportStatus(w, r, d, "Could not read the form. Try again.", http.StatusBadRequest)
			return
		}

		var notice string
		d, ok := s.drafts.Get(r.FormValue("draft"), user.ID)
		if !ok || d.Status != status {
			d = s.drafts.New(user.ID, status)
			notice = "Your draft expired. Review the details and submit again."
		}

		form := report.FormFromValues(r.Form)
		files, err := s.readAttachments(r)
		if err != nil {
			s.logger.Warn("failed to read attachments", "user", user.Email, "error", err)
			notice = attachment.MsgSkipped
		}

		action := r.FormValue("action")
		switch {
		case action == actionReset:
			err = d.Reset()
		case strings.HasPrefix(action, removePrefix):
			err = d.Remove(form, strings.TrimPrefix(action, removePrefix))
		case len(files) > 0:
			err = d.Attach(form, files)
		case action == actionAttach:
			err = d.Attach(form, nil)
		default:
			err = d.SetForm(form)
		}
		if err != nil {
			s.renderReport(w, r, d, report.UserMessage(err))
			return
		}

		if action != actionSubmit || notice != "" {
			s.renderReport(w, r, d, notice)
			return
		}

		result, err := s.submitter.Submit(r.Context(), d)
		if err != nil {
			s.renderReport(w, r, d, report.UserMessage(err))
			return
		}

		data := &successData{
			PageData: pageData(r, "Report submitted"),
			Message:  report.SuccessMessage,
			Redirect: result.Redirect,
			Delay:    fmt.Sprintf("%.1f", report.SuccessDelay.Seconds()),
		}
		s.templates.Render(w, "report_success.html", data)
	})
}

// readAttachments reads the selected files. Images are normalized; files
// that fail to decode are passed on as non-images so the selection rejects
// them. Files over attachment.MaxFileSize are left out and reported with
// errFileTooLarge after the others have been read.
func (s *Server) readAttachments(r *http.Request) ([]attachment.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	var (
		files    []attachment.File
		oversize error
	)
	for _, fh := range r.MultipartForm.File["files"] {
		if fh.Filename == "" {
			continue
		}
		if fh.Size > attachment.MaxFileSize {
			s.logger.Warn("rejected attachment", "name", fh.Filename, "size", fh.Size)
			oversize = fmt.Errorf("%s: %w", fh.Filename, errFileTooLarge)
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return files, fmt.Errorf("opening %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, attachment.MaxFileSize))
		f.Close()
		if err != nil {
			return files, fmt.Errorf("reading %s: %w", fh.Filename, err)
		}

		file := attachment.File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}
		if file.IsImage() {
			res, err := imaging.Normalize(data)
			if err != nil {
				s.logger.Warn("rejected attachment", "name", fh.Filename, "error", err)
				file.ContentType = "application/octet-stream"
			} else {
				file.Data = res.Data
				file.ContentType = res.MIME
			}
		}
		files = append(files, file)
	}
	return files, oversize
}

// renderReport renders the draft. msg overrides the draft's own error text.
func (s *Server) renderReport(w http.ResponseWriter, r *http.Request, d *report.Draft, msg string) {
	s.renderReportStatus(w, r, d, msg, 0)
}

// renderReportStatus renders the draft with the given status code, or with
// one derived from the draft's state when status is 0.
func (s *Server) renderReportStatus(w http.ResponseWriter, r *http.Request, d *report.Draft, msg string, status int) {
	view := d.View()
	data := &reportData{
		PageData:    pageData(r, reportHeading(view.Status)),
		Heading:     reportHeading(view.Status),
		Action:      "/items/new/" + view.Status + "?draft=" + url.QueryEscape(view.ID),
		Draft:       view,
		Zones:       model.CampusZones,
		MaxFileSize: attachment.MaxFileSize,
	}
	data.Notice = view.Notice

	switch {
	case msg != "":
		data.Error = msg
	case view.Err != nil:
		data.Error = report.UserMessage(view.Err)
	}

	var ve *report.ValidationError
	if errors.As(view.Err, &ve) {
		data.FieldErrors = ve.Fields
	}

	if status == 0 {
		status = http.StatusOK
		if view.State == report.StateError {
			status = http.StatusUnprocessableEntity
		}
	}
	s.templates.RenderStatus(w, status, "report_form.html", data)
}
