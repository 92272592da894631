package attachment

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultLimit is the number of images a report may carry.
const DefaultLimit = 5

// MaxFileSize is the largest accepted image, in bytes.
const MaxFileSize int64 = 5 << 20

// Selection messages.
const (
	MsgNonImage = "Only image files are supported. Non-image files were ignored."
	MsgSkipped  = "Some files were skipped due to format or upload limit."
	MsgEmpty    = "Select image files to attach."
)

// LimitMessage is reported when the selection is already full.
func LimitMessage(limit int) string {
	return "You can upload up to " + strconv.Itoa(limit) + " images per report."
}

// File is a selected attachment waiting to be uploaded.
type File struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the file size in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

// IsImage reports whether the declared content type is an image type.
func (f File) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(f.ContentType), "image/")
}

// Selection is the ordered set of files attached to a draft. It is not safe
// for concurrent use; the owning draft serializes access.
type Selection struct {
	limit int
	files []File
}

// NewSelection returns an empty selection holding at most limit files.
func NewSelection(limit int) *Selection {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Selection{limit: limit}
}

// Add appends the image files among selected, up to the remaining capacity,
// and returns a message for the user ("" when everything was accepted).
func (s *Selection) Add(selected []File) string {
	if len(selected) == 0 {
		return ""
	}

	remaining := s.limit - len(s.files)
	if remaining <= 0 {
		return LimitMessage(s.limit)
	}

	var message string
	images := make([]File, 0, len(selected))
	for _, f := range selected {
		if f.IsImage() {
			images = append(images, f)
		}
	}
	if len(images) != len(selected) {
		message = MsgNonImage
	}

	usable := images
	if len(usable) > remaining {
		usable = usable[:remaining]
	}
	if len(usable) == 0 {
		if message == "" {
			message = MsgEmpty
		}
		return message
	}

	if len(images) > len(usable) || len(selected) > len(images) {
		message = MsgSkipped
	}

	for _, f := range usable {
		f.ID = uuid.NewString()
		s.files = append(s.files, f)
	}
	return message
}

// Remove drops the file with the given id.
func (s *Selection) Remove(id string) bool {
	for i, f := range s.files {
		if f.ID == id {
			s.files = append(s.files[:i], s.files[i+1:]...)
			return true
		}
	}
	return false
}

// Reset drops every file.
func (s *Selection) Reset() { s.files = nil }

// Files returns the selected files in selection order.
func (s *Selection) Files() []File {
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

func (s *Selection) Len() int   { return len(s.files) }
func (s *Selection) Limit() int { return s.limit }
func (s *Selection) Full() bool { return len(s.files) >= s.limit }

// FormatSize renders a byte count as B, KB or MB with one decimal at most.
func FormatSize(n int64) string {
	if n < 0 {
		return ""
	}
	if n < 1024 {
		return strconv.FormatInt(n, 10) + " B"
	}
	if n < 1024*1024 {
		return strconv.FormatFloat(math.Round(float64(n)/102.4)/10, 'f', -1, 64) + " KB"
	}
	return strconv.FormatFloat(math.Round(float64(n)/1024/102.4)/10, 'f', -1, 64) + " MB"
}
