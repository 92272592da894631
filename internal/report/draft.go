package report

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/claimwildcats/internal/attachment"
)

// ErrSubmitInProgress is returned when a draft is changed or submitted while
// its submission is running.
var ErrSubmitInProgress = errors.New("report submission already in progress")

// State is a step of the submission flow.
type State int

// Submission states.
const (
	StateEditing State = iota
	StateUploading
	StateSubmitting
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateUploading:
		return "uploading"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Busy reports whether a submission is running.
func (s State) Busy() bool { return s == StateUploading || s == StateSubmitting }

// Draft is one user's in-progress report. All methods are safe for
// concurrent use.
type Draft struct {
	ID      string
	Status  string
	OwnerID int64

	mu        sync.Mutex
	form      Form
	selection *attachment.Selection
	itemID    string
	state     State
	notice    string
	err       error
	createdID string
	touched   time.Time
}

func newDraft(ownerID int64, status string, limit int, now time.Time) *Draft {
	return &Draft{
		ID:        uuid.NewString(),
		Status:    status,
		OwnerID:   ownerID,
		selection: attachment.NewSelection(limit),
		itemID:    uuid.NewString(),
		touched:   now,
	}
}

// View is a copy of the draft for rendering.
type View struct {
	ID        string
	Status    string
	Form      Form
	Files     []attachment.File
	Limit     int
	Full      bool
	Notice    string
	Err       error
	State     State
	CreatedID string
}

// View returns a snapshot of the draft.
func (d *Draft) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return View{
		ID:        d.ID,
		Status:    d.Status,
		Form:      d.form,
		Files:     d.selection.Files(),
		Limit:     d.selection.Limit(),
		Full:      d.selection.Full(),
		Notice:    d.notice,
		Err:       d.err,
		State:     d.state,
		CreatedID: d.createdID,
	}
}

// State returns the current submission state.
func (d *Draft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// edit runs fn unless a submission is in flight; a failed draft returns to
// editing.
func (d *Draft) edit(fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Busy() {
		return ErrSubmitInProgress
	}
	if d.state == StateError {
		d.state = StateEditing
		d.err = nil
	}
	fn()
	return nil
}

// SetForm replaces the field values.
func (d *Draft) SetForm(f Form) error {
	return d.edit(func() { d.form = f })
}

// Attach adds files to the selection and records the selection message.
func (d *Draft) Attach(f Form, files []attachment.File) error {
	return d.edit(func() {
		d.form = f
		d.notice = d.selection.Add(files)
	})
}

// Remove drops one attached file.
func (d *Draft) Remove(f Form, fileID string) error {
	return d.edit(func() {
		d.form = f
		d.selection.Remove(fileID)
		d.notice = ""
	})
}

// Reset clears the fields and attachments and picks a new item id.
func (d *Draft) Reset() error {
	return d.edit(func() {
		d.form = Form{}
		d.selection.Reset()
		d.notice = ""
		d.itemID = uuid.NewString()
	})
}

// begin moves the draft into uploading and returns what to submit.
func (d *Draft) begin() (Form, string, []attachment.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Busy() {
		return Form{}, "", nil, ErrSubmitInProgress
	}
	if d.state == StateSuccess {
		return Form{}, "", nil, ErrSubmitInProgress
	}
	if err := d.form.Validate(); err != nil {
		d.state = StateError
		d.err = err
		return Form{}, "", nil, err
	}
	d.state = StateUploading
	d.err = nil
	return d.form, d.itemID, d.selection.Files(), nil
}

func (d *Draft) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Draft) fail(err error) {
	d.mu.Lock()
	d.state = StateError
	d.err = err
	d.mu.Unlock()
}

func (d *Draft) succeed(createdID string) {
	d.mu.Lock()
	d.state = StateSuccess
	d.createdID = createdID
	d.selection.Reset()
	d.mu.Unlock()
}

// MaxDraftsPerOwner bounds the open drafts of a single user.
const MaxDraftsPerOwner = 4

// Drafts holds the open drafts of all users.
type Drafts struct {
	ttl   time.Duration
	limit int
	now   func() time.Time

	mu     sync.Mutex
	drafts map[string]*Draft
}

// NewDrafts creates a registry whose drafts expire after ttl without use and
// accept up to limit attachments.
func NewDrafts(ttl time.Duration, limit int) *Drafts {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Drafts{
		ttl:    ttl,
		limit:  limit,
		now:    time.Now,
		drafts: make(map[string]*Draft),
	}
}

// New opens a draft for ownerID reporting an item with the given status.
// An owner keeps at most MaxDraftsPerOwner drafts; beyond that the least
// recently used idle one is dropped.
func (r *Drafts) New(ownerID int64, status string) *Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(ownerID)
	d := newDraft(ownerID, status, r.limit, r.now())
	r.drafts[d.ID] = d
	return d
}

// Open returns the owner's most recently used live draft for status, or a
// new one if there is none.
func (r *Drafts) Open(ownerID int64, status string) *Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()

	var latest *Draft
	var latestAt time.Time
	for _, d := range r.drafts {
		if d.OwnerID != ownerID || d.Status != status {
			continue
		}
		d.mu.Lock()
		touched, busy := d.touched, d.state.Busy()
		d.mu.Unlock()
		if now.Sub(touched) > r.ttl && !busy {
			continue
		}
		if latest == nil || touched.After(latestAt) {
			latest, latestAt = d, touched
		}
	}
	if latest != nil {
		latest.mu.Lock()
		latest.touched = now
		latest.mu.Unlock()
		return latest
	}

	r.evictLocked(ownerID)
	d := newDraft(ownerID, status, r.limit, now)
	r.drafts[d.ID] = d
	return d
}

// evictLocked makes room for one more draft of ownerID. r.mu must be held.
func (r *Drafts) evictLocked(ownerID int64) {
	for {
		var (
			count    int
			oldest   *Draft
			oldestAt time.Time
		)
		for _, d := range r.drafts {
			if d.OwnerID != ownerID {
				continue
			}
			count++
			d.mu.Lock()
			touched, busy := d.touched, d.state.Busy()
			d.mu.Unlock()
			if busy {
				continue
			}
			if oldest == nil || touched.Before(oldestAt) {
				oldest, oldestAt = d, touched
			}
		}
		if count < MaxDraftsPerOwner || oldest == nil {
			return
		}
		delete(r.drafts, oldest.ID)
	}
}

// Limit returns the number of attachments a draft accepts.
func (r *Drafts) Limit() int {
	if r.limit <= 0 {
		return attachment.DefaultLimit
	}
	return r.limit
}

// Get returns the owner's draft with the given id if it has not expired.
func (r *Drafts) Get(id string, ownerID int64) (*Draft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok || d.OwnerID != ownerID {
		return nil, false
	}
	now := r.now()
	d.mu.Lock()
	expired := now.Sub(d.touched) > r.ttl && !d.state.Busy()
	if !expired {
		d.touched = now
	}
	d.mu.Unlock()
	if expired {
		delete(r.drafts, id)
		return nil, false
	}
	return d, true
}

// Discard removes a draft.
func (r *Drafts) Discard(id string) {
	r.mu.Lock()
	delete(r.drafts, id)
	r.mu.Unlock()
}

// DropOwner removes every draft of ownerID and returns how many were removed.
func (r *Drafts) DropOwner(ownerID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, d := range r.drafts {
		if d.OwnerID == ownerID {
			delete(r.drafts, id)
			n++
		}
	}
	return n
}

// Sweep removes expired drafts and returns how many were removed.
func (r *Drafts) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, d := range r.drafts {
		d.mu.Lock()
		expired := now.Sub(d.touched) > r.ttl && !d.state.Busy()
		d.mu.Unlock()
		if expired {
			delete(r.drafts, id)
			n++
		}
	}
	return n
}

// Len returns the number of open drafts.
func (r *Drafts) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drafts)
}
