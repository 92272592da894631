package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/claimwildcats/internal/objstore"
)

// memStore is an in-memory objstore.Store that can fail on the n-th Put.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      int
	failOnPut int
	failErr   error
	deleted   []string
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Put(ctx context.Context, ref objstore.Ref, contentType string, r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failOnPut == m.puts {
		return m.failErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[ref.String()] = data
	return nil
}

func (m *memStore) Delete(ctx context.Context, ref objstore.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref.String())
	delete(m.objects, ref.String())
	return m.deleteErr
}

func (m *memStore) DownloadURL(ctx context.Context, ref objstore.Ref) (string, error) {
	return "https://example.test/" + ref.Path, nil
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func images(n int) []File {
	files := make([]File, n)
	for i := range files {
		files[i] = File{Name: fmt.Sprintf("photo%d.JPG", i), ContentType: "image/jpeg", Data: []byte{byte(i)}}
	}
	return files
}

func TestSelectionLimit(t *testing.T) {
	s := NewSelection(5)

	msg := s.Add(images(6))
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, MsgSkipped, msg)
	assert.True(t, s.Full())

	msg = s.Add(images(1))
	assert.Equal(t, "You can upload up to 5 images per report.", msg)
	assert.Equal(t, 5, s.Len())
}

func TestSelectionNonImages(t *testing.T) {
	s := NewSelection(5)

	msg := s.Add([]File{{Name: "notes.pdf", ContentType: "application/pdf"}})
	assert.Equal(t, MsgNonImage, msg)
	assert.Equal(t, 0, s.Len())

	msg = s.Add([]File{{Name: "notes.pdf", ContentType: "application/pdf"}, {Name: "a.png", ContentType: "image/png"}})
	assert.Equal(t, MsgSkipped, msg)
	assert.Equal(t, 1, s.Len())

	msg = s.Add([]File{{Name: "unknown"}})
	assert.Equal(t, MsgNonImage, msg)

	assert.Equal(t, "", s.Add(nil))
	assert.Equal(t, "", s.Add(images(2)))
	assert.Equal(t, 3, s.Len())
}

func TestSelectionRemoveAndReset(t *testing.T) {
	s := NewSelection(5)
	s.Add(images(3))

	files := s.Files()
	require.Len(t, files, 3)
	for _, f := range files {
		assert.NotEmpty(t, f.ID)
	}

	assert.True(t, s.Remove(files[1].ID))
	assert.False(t, s.Remove(files[1].ID))
	got := s.Files()
	require.Len(t, got, 2)
	assert.Equal(t, files[0].ID, got[0].ID)
	assert.Equal(t, files[2].ID, got[1].ID)

	s.Reset()
	assert.Equal(t, 0, s.Len())
}

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	tests := []struct {
		name  string
		index int
		want  string
	}{
		{"My Photo.JPG", 0, "my-photo-1700000000123-0.jpg"},
		{"--weird__name!!.png", 2, "weird-name-1700000000123-2.png"},
		{"???.gif", 1, "attachment-1700000000123-1.gif"},
		{"noext", 3, "noext-1700000000123-3"},
		{"archive.tar.GZ", 0, "archive-tar-1700000000123-0.gz"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ObjectName(tt.name, tt.index, now), tt.name)
	}
}

func TestUploadSequential(t *testing.T) {
	store := newMemStore()
	u := NewUploader(store, "bucket", quietLogger())
	u.now = func() time.Time { return time.UnixMilli(42) }

	refs, err := u.Upload(context.Background(), "item-1", images(3))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"storage://bucket/items/item-1/photo0-42-0.jpg",
		"storage://bucket/items/item-1/photo1-42-1.jpg",
		"storage://bucket/items/item-1/photo2-42-2.jpg",
	}, RefStrings(refs))
	assert.Len(t, store.keys(), 3)
}

func TestUploadMissingTarget(t *testing.T) {
	store := newMemStore()
	u := NewUploader(store, "bucket", quietLogger())

	_, err := u.Upload(context.Background(), " ", images(1))
	assert.ErrorIs(t, err, ErrMissingTarget)
	assert.Equal(t, 0, store.puts)
}

func TestUploadEmpty(t *testing.T) {
	u := NewUploader(newMemStore(), "bucket", quietLogger())
	refs, err := u.Upload(context.Background(), "item-1", nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestUploadRollsBackOnFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	store := newMemStore()
	store.failOnPut = 2
	store.failErr = boom
	u := NewUploader(store, "bucket", quietLogger())

	refs, err := u.Upload(context.Background(), "item-1", images(3))
	assert.Nil(t, refs)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.keys())
	assert.Equal(t, 2, store.puts)
	require.Len(t, store.deleted, 1)
	assert.Contains(t, store.deleted[0], "photo0-")
}

// cancelStore behaves like a network-backed store: every call fails once ctx
// is done. It cancels the upload's context on the cancelOnPut-th Put.
type cancelStore struct {
	*memStore
	cancel      context.CancelFunc
	cancelOnPut int
}

func (c *cancelStore) Put(ctx context.Context, ref objstore.Ref, contentType string, r io.Reader) error {
	c.mu.Lock()
	n := c.puts + 1
	c.mu.Unlock()
	if n == c.cancelOnPut {
		c.cancel()
	}
	if err := ctx.Err(); err != nil {
		c.mu.Lock()
		c.puts++
		c.mu.Unlock()
		return err
	}
	return c.memStore.Put(ctx, ref, contentType, r)
}

func (c *cancelStore) Delete(ctx context.Context, ref objstore.Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memStore.Delete(ctx, ref)
}

func TestUploadRollsBackAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancelStore{memStore: newMemStore(), cancel: cancel, cancelOnPut: 2}
	u := NewUploader(store, "bucket", quietLogger())

	refs, err := u.Upload(ctx, "item-1", images(3))
	assert.Nil(t, refs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.keys(), "objects written before the cancel must be deleted")
	require.Len(t, store.deleted, 1)
	assert.Contains(t, store.deleted[0], "photo0-")
}

func TestUploadUnauthorized(t *testing.T) {
	store := newMemStore()
	store.failOnPut = 1
	store.failErr = fmt.Errorf("writing: %w", objstore.ErrUnauthorized)
	u := NewUploader(store, "bucket", quietLogger())

	_, err := u.Upload(context.Background(), "item-1", images(1))
	assert.ErrorIs(t, err, objstore.ErrUnauthorized)
}

func TestRollbackReverseOrderSwallowsErrors(t *testing.T) {
	store := newMemStore()
	store.deleteErr = errors.New("gone")
	u := NewUploader(store, "bucket", quietLogger())

	refs := []objstore.Ref{{Bucket: "b", Path: "1"}, {Bucket: "b", Path: "2"}, {Bucket: "b", Path: "3"}}
	u.Rollback(context.Background(), refs)

	assert.Equal(t, []string{"storage://b/3", "storage://b/2", "storage://b/1"}, store.deleted)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1023 B", FormatSize(1023))
	assert.Equal(t, "1 KB", FormatSize(1024))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "2.5 MB", FormatSize(2621440))
}
