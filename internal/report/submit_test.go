package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/claimwildcats/internal/apiclient"
	"github.com/erazemk/claimwildcats/internal/attachment"
	"github.com/erazemk/claimwildcats/internal/model"
	"github.com/erazemk/claimwildcats/internal/objstore"
)

type fakeUploader struct {
	mu         sync.Mutex
	uploads    int
	itemIDs    []string
	rolledBack []objstore.Ref
	err        error
	gate       chan struct{}
	started    chan struct{}
}

func (f *fakeUploader) Upload(ctx context.Context, itemID string, files []attachment.File) ([]objstore.Ref, error) {
	f.mu.Lock()
	f.uploads++
	f.itemIDs = append(f.itemIDs, itemID)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	refs := make([]objstore.Ref, len(files))
	for i, file := range files {
		refs[i] = objstore.Ref{Bucket: "b", Path: "items/" + itemID + "/" + file.Name}
	}
	return refs, nil
}

func (f *fakeUploader) Rollback(ctx context.Context, refs []objstore.Ref) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolledBack = append(f.rolledBack, refs...)
}

type fakeItems struct {
	got    []model.CreateItemRequest
	status string
	id     string
	err    error
}

func (f *fakeItems) CreateItem(ctx context.Context, status string, req model.CreateItemRequest) (*model.Item, error) {
	f.got = append(f.got, req)
	f.status = status
	if f.err != nil {
		return nil, f.err
	}
	return &model.Item{ID: f.id, Title: req.Title, Status: status}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func draftItemID(d *Draft) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.itemID
}

func newDraftWithFiles(t *testing.T, drafts *Drafts, n int) *Draft {
	t.Helper()
	d := drafts.New(1, model.ItemStatusLost)
	files := make([]attachment.File, n)
	for i := range files {
		files[i] = attachment.File{Name: fmt.Sprintf("p%d.jpg", i), ContentType: "image/jpeg", Data: []byte("x")}
	}
	require.NoError(t, d.Attach(validForm(), files))
	return d
}

func TestSubmitSuccess(t *testing.T) {
	drafts := NewDrafts(time.Hour, 5)
	up := &fakeUploader{}
	items := &fakeItems{id: "item-9"}
	s := NewSubmitter(up, items, drafts, quietLogger())

	d := newDraftWithFiles(t, drafts, 2)
	itemID := draftItemID(d)

	res, err := s.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "/items/item-9", res.Redirect)
	assert.Equal(t, model.ItemStatusLost, items.status)
	assert.Equal(t, []string{itemID}, up.itemIDs)
	require.Len(t, items.got, 1)
	assert.Equal(t, []string{
		"storage://b/items/" + itemID + "/p0.jpg",
		"storage://b/items/" + itemID + "/p1.jpg",
	}, items.got[0].DocURLs)
	assert.Equal(t, []string{"blue", "backpack"}, items.got[0].Tags)

	assert.Equal(t, StateSuccess, d.State())
	assert.Empty(t, d.View().Files)
	_, ok := drafts.Get(d.ID, 1)
	assert.False(t, ok)
}

func TestSubmitWithoutCreatedID(t *testing.T) {
	drafts := NewDrafts(time.Hour, 5)
	s := NewSubmitter(&fakeUploader{}, &fakeItems{}, drafts, quietLogger())

	d := newDraftWithFiles(t, drafts, 0)
	res, err := s.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "/me/reports", res.Redirect)
}

func TestSubmitValidationFailsBeforeNetwork(t *testing.T) {
	drafts := NewDrafts(time.Hour, 5)
	up := &fakeUploader{}
	items := &fakeItems{}
	s := NewSubmitter(up, items, drafts, quietLogger())

	d := drafts.New(1, model.ItemStatusFound)
	_, err := s.Submit(context.Background(), d)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 0, up.uploads)
	assert.Empty(t, items.got)
	assert.Equal(t, StateError, d.State())

	require.NoError(t, d.SetForm(validForm()))
	assert.Equal(t, StateEditing, d.State())
}

func TestSubmitRollsBackWhenCreateFails(t *testing.T) {
	drafts := NewDrafts(time.Hour, 5)
	up := &fakeUploader{}
	items := &fakeItems{err: &apiclient.StatusError{StatusCode: 500, Status: "Internal Server Error"}}
	s := NewSubmitter(up, items, drafts, quietLogger())

	d := newDraftWithFiles(t, drafts, 3)
	_, err := s.Submit(context.Background(), d)

	var se *apiclient.StatusError
	require.True(t, errors.As(err, &se))
	assert.Len(t, up.rolledBack, 3)
	assert.Equal(t, StateError, d.State())
	assert.Equal(t, "500 Internal Server Error", UserMessage(err))

	_, ok := drafts.Get(d.ID, 1)
	assert.True(t, ok, "failed draft stays open for another attempt")
	assert.Len(t, d.View().Files, 3)
}

func TestSubmitUploadFailure(t *testing.T) {
	drafts := NewDrafts(time.Hour, 5)
	up := &fakeUploader{err: fmt.Errorf("uploading a.jpg: %w", objstore.ErrUnauthorized)}
	items := &fakeItems{}
	s := NewSubmitter(up, items, drafts, quietLogger())

	d := newDraftWithFiles(t, drafts, 1)
	_, err := s.Submit(context.Background(), d)

	assert.ErrorIs(t, err, objstore.ErrUnauthorized)
	assert.Empty(t, items.got)
	assert.Equal(t,
		"We could not upload your images because storage access was denied. Try signing in again.",
		UserMessage(err))
}

func TestSubmitInProgress(t *testing.T) {
	drafts := NewDrafts(time.Hour, 5)
	up := &fakeUploader{gate: make(chan struct{}), started: make(chan struct{})}
	s := NewSubmitter(up, &fakeItems{id: "1"}, drafts, quietLogger())
	d := newDraftWithFiles(t, drafts, 1)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), d)
		errc <- err
	}()
	<-up.started

	_, err := s.Submit(context.Background(), d)
	assert.ErrorIs(t, err, ErrSubmitInProgress)
	assert.ErrorIs(t, d.Reset(), ErrSubmitInProgress)
	assert.ErrorIs(t, d.Attach(validForm(), nil), ErrSubmitInProgress)

	close(up.gate)
	require.NoError(t, <-errc)
	assert.Equal(t, 1, up.uploads)
}

func TestDraftReset(t *testing.T) {
	drafts := NewDrafts(time.Hour, 5)
	d := newDraftWithFiles(t, drafts, 2)
	before := draftItemID(d)

	require.NoError(t, d.Reset())

	v := d.View()
	assert.Equal(t, Form{}, v.Form)
	assert.Empty(t, v.Files)
	assert.NotEqual(t, before, draftItemID(d))
}

func TestDraftsRegistry(t *testing.T) {
	drafts := NewDrafts(time.Minute, 5)
	now := time.Now()
	drafts.now = func() time.Time { return now }

	a := drafts.New(1, model.ItemStatusLost)
	b := drafts.New(2, model.ItemStatusFound)
	drafts.New(1, model.ItemStatusFound)

	_, ok := drafts.Get(a.ID, 2)
	assert.False(t, ok, "drafts are private to their owner")
	got, ok := drafts.Get(a.ID, 1)
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.Equal(t, 2, drafts.DropOwner(1))
	assert.Equal(t, 1, drafts.Len())

	now = now.Add(2 * time.Minute)
	_, ok = drafts.Get(b.ID, 2)
	assert.False(t, ok)
	assert.Equal(t, 0, drafts.Len())

	drafts.New(3, model.ItemStatusLost)
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, drafts.Sweep())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Unable to determine where to store the uploads.", UserMessage(attachment.ErrMissingTarget))
	assert.Equal(t, "Unable to submit the report right now.", UserMessage(errors.New("dial tcp: refused")))
}

func TestDraftsOpenReusesLatest(t *testing.T) {
	drafts := NewDrafts(time.Minute, 5)
	now := time.Now()
	drafts.now = func() time.Time { return now }

	first := drafts.Open(1, model.ItemStatusLost)
	for i := 0; i < 50; i++ {
		now = now.Add(time.Second)
		assert.Same(t, first, drafts.Open(1, model.ItemStatusLost))
	}
	assert.Equal(t, 1, drafts.Len())

	found := drafts.Open(1, model.ItemStatusFound)
	assert.NotSame(t, first, found)
	assert.NotSame(t, first, drafts.Open(2, model.ItemStatusLost))
	assert.Equal(t, 3, drafts.Len())

	now = now.Add(2 * time.Minute)
	assert.NotSame(t, first, drafts.Open(1, model.ItemStatusLost), "expired drafts are not reopened")
}

func TestDraftsCapPerOwner(t *testing.T) {
	drafts := NewDrafts(time.Hour, 5)
	now := time.Now()
	drafts.now = func() time.Time { return now }

	var opened []*Draft
	for i := 0; i < 200; i++ {
		now = now.Add(time.Second)
		opened = append(opened, drafts.New(1, model.ItemStatusLost))
	}
	other := drafts.New(2, model.ItemStatusLost)

	assert.Equal(t, MaxDraftsPerOwner+1, drafts.Len())
	_, ok := drafts.Get(opened[0].ID, 1)
	assert.False(t, ok, "the least recently used draft is dropped")
	_, ok = drafts.Get(opened[len(opened)-1].ID, 1)
	assert.True(t, ok)
	_, ok = drafts.Get(other.ID, 2)
	assert.True(t, ok)
}
