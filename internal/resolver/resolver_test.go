package resolver

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/erazemk/claimwildcats/internal/model"
	"github.com/erazemk/claimwildcats/internal/objstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSigner counts DownloadURL calls and can block or fail per path.
type fakeSigner struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
	gate  chan struct{}
}

func newFakeSigner() *fakeSigner {
	return &fakeSigner{calls: make(map[string]int), fail: make(map[string]bool)}
}

func (f *fakeSigner) DownloadURL(ctx context.Context, ref objstore.Ref) (string, error) {
	f.mu.Lock()
	f.calls[ref.Path]++
	fail := f.fail[ref.Path]
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return "", objstore.ErrNotFound
	}
	return "https://signed.example/" + ref.Path, nil
}

func (f *fakeSigner) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func item(id string, docs ...string) model.Item {
	return model.Item{ID: id, DocURLs: docs}
}

func TestPrimaryRef(t *testing.T) {
	assert.Equal(t, "", PrimaryRef(nil))
	assert.Equal(t, "", PrimaryRef([]string{"", "  ", "\u200b"}))
	assert.Equal(t, "storage://b/a b.jpg", PrimaryRef([]string{" ", "  storage://b/a  b.jpg\n", "https://x/y.png"}))
}

func TestResolveUnchangedSetIsIdempotent(t *testing.T) {
	signer := newFakeSigner()
	r := New(signer, time.Hour, quietLogger())
	defer r.Close()

	items := []model.Item{
		item("1", "storage://b/items/1/a.jpg"),
		item("2", "https://cdn.example/b.png"),
		item("3"),
	}

	first := r.Resolve(context.Background(), items)
	assert.Equal(t, map[string]string{
		"1": "https://signed.example/items/1/a.jpg",
		"2": "https://cdn.example/b.png",
	}, first)
	assert.Equal(t, 1, signer.total())

	second := r.Resolve(context.Background(), items)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, signer.total())
}

func TestResolveEvictsAbsentItems(t *testing.T) {
	signer := newFakeSigner()
	r := New(signer, time.Hour, quietLogger())
	defer r.Close()

	r.Resolve(context.Background(), []model.Item{item("1", "storage://b/a.jpg"), item("2", "storage://b/b.jpg")})
	assert.Equal(t, 2, r.Len())

	got := r.Resolve(context.Background(), []model.Item{item("2", "storage://b/b.jpg")})
	assert.Equal(t, 1, r.Len())
	assert.Len(t, got, 1)
	assert.Equal(t, 2, signer.total())

	r.Resolve(context.Background(), nil)
	assert.Equal(t, 0, r.Len())
}

func TestResolveChangedReference(t *testing.T) {
	signer := newFakeSigner()
	r := New(signer, time.Hour, quietLogger())
	defer r.Close()

	r.Resolve(context.Background(), []model.Item{item("1", "storage://b/a.jpg")})
	got := r.Resolve(context.Background(), []model.Item{item("1", "storage://b/c.jpg")})

	assert.Equal(t, "https://signed.example/c.jpg", got["1"])
	assert.Equal(t, 2, signer.total())
}

func TestResolveExpiredEntries(t *testing.T) {
	signer := newFakeSigner()
	r := New(signer, time.Minute, quietLogger())
	defer r.Close()

	now := time.Now()
	r.now = func() time.Time { return now }
	items := []model.Item{item("1", "storage://b/a.jpg"), item("2", "https://cdn.example/x.jpg")}

	r.Resolve(context.Background(), items)
	now = now.Add(2 * time.Minute)
	r.Resolve(context.Background(), items)

	assert.Equal(t, 2, signer.total())
}

func TestResolveFailureDegrades(t *testing.T) {
	signer := newFakeSigner()
	signer.fail["missing.jpg"] = true
	r := New(signer, time.Hour, quietLogger())
	defer r.Close()

	items := []model.Item{item("1", "storage://b/missing.jpg"), item("2", "gs://b/ok.jpg"), item("3", "storage://bad")}
	got := r.Resolve(context.Background(), items)

	assert.Equal(t, map[string]string{"2": "https://signed.example/ok.jpg"}, got)

	// Failures are cached like successes until the reference changes.
	r.Resolve(context.Background(), items)
	assert.Equal(t, 2, signer.total())
}

func TestResolveSupersededResultsNotCommitted(t *testing.T) {
	signer := newFakeSigner()
	gate := make(chan struct{})
	signer.gate = gate
	r := New(signer, time.Hour, quietLogger())
	defer r.Close()

	done := make(chan map[string]string)
	go func() {
		done <- r.Resolve(context.Background(), []model.Item{item("1", "storage://b/old.jpg")})
	}()

	require.Eventually(t, func() bool { return signer.total() == 1 }, time.Second, time.Millisecond)

	// A newer call starts and commits while the first is still waiting.
	newer := r.Resolve(context.Background(), []model.Item{item("2", "https://cdn.example/new.png")})
	assert.Equal(t, map[string]string{"2": "https://cdn.example/new.png"}, newer)

	close(gate)
	stale := <-done
	assert.Equal(t, "https://signed.example/old.jpg", stale["1"])

	assert.Equal(t, 1, r.Len())
	again := r.Resolve(context.Background(), []model.Item{item("2", "https://cdn.example/new.png")})
	assert.Equal(t, newer, again)
	assert.Equal(t, 1, signer.total())
}

func TestResolveAfterClose(t *testing.T) {
	signer := newFakeSigner()
	r := New(signer, time.Hour, quietLogger())
	r.Close()

	got := r.Resolve(context.Background(), []model.Item{item("1", "storage://b/a.jpg")})
	assert.Empty(t, got)
	assert.Equal(t, 0, signer.total())
}

func TestClassify(t *testing.T) {
	signer := newFakeSigner()
	got := Classify(context.Background(), signer, []string{
		"storage://bucket/items/42/a.jpg",
		"https://cdn.example/b.pdf",
	})

	assert.Equal(t, []string{"https://signed.example/items/42/a.jpg"}, got.Images)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, Document{URL: "https://cdn.example/b.pdf", Label: "Document 1", PDF: true}, got.Documents[0])
}

func TestClassifyOrderAndFailures(t *testing.T) {
	signer := newFakeSigner()
	signer.fail["gone.png"] = true
	got := Classify(context.Background(), signer, []string{
		"https://cdn.example/one.JPG?size=large",
		"",
		"gs://b/gone.png",
		"https://example.edu/receipt",
		"gs://b/two.webp",
		"https://example.edu/form.pdf",
	})

	assert.Equal(t, []string{"https://cdn.example/one.JPG?size=large", "https://signed.example/two.webp"}, got.Images)
	require.Len(t, got.Documents, 2)
	assert.Equal(t, "Document 1", got.Documents[0].Label)
	assert.False(t, got.Documents[0].PDF)
	assert.Equal(t, "Document 2", got.Documents[1].Label)
	assert.True(t, got.Documents[1].PDF)
}

func TestLooksLikeImage(t *testing.T) {
	assert.True(t, LooksLikeImage("https://x/y.jpeg"))
	assert.True(t, LooksLikeImage("https://x/y.BMP?v=1"))
	assert.False(t, LooksLikeImage("https://x/y.pdf"))
	assert.False(t, LooksLikeImage("https://x/jpg"))
}
