package filecontext

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quillchat/quill/internal/blob"
	"github.com/quillchat/quill/internal/filecache"
	"github.com/quillchat/quill/internal/log"
)

// fakeBlob implements BlobStore with configurable results and call counts.
type fakeBlob struct {
	mu        sync.Mutex
	signErr   error
	statErr   error
	statInfo  blob.ObjectInfo
	signCalls int
	statCalls int
}

func (f *fakeBlob) SignedURL(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signCalls++
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://blob.example/" + path + "?sig=test", nil
}

func (f *fakeBlob) Stat(_ context.Context, path string) (blob.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statCalls++
	if f.statErr != nil {
		return blob.ObjectInfo{}, f.statErr
	}
	return f.statInfo, nil
}

// fakeExtractor implements Extractor with an atomic call counter.
type fakeExtractor struct {
	result string
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakeExtractor) Extract(_ context.Context, _, _, _ string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func newTestResolver(t *testing.T, fb *fakeBlob, fe *fakeExtractor) (*Resolver, *filecache.Store) {
	t.Helper()
	cache := filecache.New(0, log.NewNop())
	r, err := New(cache, fb, fe, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, cache
}

func textRef() FileRef {
	return FileRef{StoragePath: "u1/f1.txt", FileName: "f1.txt", ContentType: "text/plain"}
}

func TestResolveMissRefillsAndCaches(t *testing.T) {
	uploaded := time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC)
	fb := &fakeBlob{statInfo: blob.ObjectInfo{Size: 11, ContentType: "text/plain", UploadedAt: uploaded}}
	fe := &fakeExtractor{result: "hello world"}
	r, cache := newTestResolver(t, fb, fe)

	result := r.Resolve(context.Background(), "u1", "c1", []FileRef{textRef()})
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Files) != 1 {
		t.Fatalf("got %d files, want 1", len(result.Files))
	}

	entry := result.Files[0]
	if entry.Content != "hello world" || entry.Size != 11 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.UploadedAt != uploaded.Format(time.RFC3339) {
		t.Errorf("UploadedAt = %q", entry.UploadedAt)
	}
	if !strings.Contains(entry.SignedURL, "sig=test") {
		t.Errorf("SignedURL = %q", entry.SignedURL)
	}
	if entry.ExpiresAt-entry.CachedAt != filecache.TTL.Milliseconds() {
		t.Errorf("entry lifetime = %dms, want TTL", entry.ExpiresAt-entry.CachedAt)
	}
	if entry.UserID != "u1" || entry.ChatID != "c1" {
		t.Errorf("denormalized key fields = %q/%q", entry.UserID, entry.ChatID)
	}

	if _, ok := cache.Get("u1", "c1", "f1.txt"); !ok {
		t.Error("entry not written through to cache")
	}
}

func TestResolveHitSkipsRefill(t *testing.T) {
	fb := &fakeBlob{statInfo: blob.ObjectInfo{Size: 11, ContentType: "text/plain"}}
	fe := &fakeExtractor{result: "hello world"}
	r, _ := newTestResolver(t, fb, fe)

	// First resolve fills the cache; second must not touch blob/extractor.
	r.Resolve(context.Background(), "u1", "c1", []FileRef{textRef()})
	r.Resolve(context.Background(), "u1", "c1", []FileRef{textRef()})

	if got := fe.calls.Load(); got != 1 {
		t.Errorf("extractor called %d times, want 1", got)
	}
	if fb.signCalls != 1 || fb.statCalls != 1 {
		t.Errorf("blob calls = %d/%d, want 1/1", fb.signCalls, fb.statCalls)
	}
}

func TestResolveRejectsForeignPath(t *testing.T) {
	fb := &fakeBlob{}
	fe := &fakeExtractor{}
	r, cache := newTestResolver(t, fb, fe)

	result := r.Resolve(context.Background(), "u1", "c1", []FileRef{
		{StoragePath: "u2/secret.txt", FileName: "secret.txt"},
	})

	if len(result.Errors) != 1 || result.Errors[0].Code != CodeForbidden {
		t.Fatalf("errors = %+v, want one forbidden", result.Errors)
	}
	// Neither the blob store nor the cache may be touched.
	if fb.signCalls != 0 || fb.statCalls != 0 {
		t.Error("blob store touched for forbidden path")
	}
	if got := cache.Stats().EntryCount; got != 0 {
		t.Errorf("cache populated for forbidden path, count = %d", got)
	}
}

func TestResolveNotFound(t *testing.T) {
	fb := &fakeBlob{statErr: fmt.Errorf("%w: u1/f1.txt", blob.ErrNotFound)}
	fe := &fakeExtractor{}
	r, cache := newTestResolver(t, fb, fe)

	result := r.Resolve(context.Background(), "u1", "c1", []FileRef{textRef()})
	if len(result.Errors) != 1 || result.Errors[0].Code != CodeNotFound {
		t.Fatalf("errors = %+v, want one not_found", result.Errors)
	}
	if got := cache.Stats().EntryCount; got != 0 {
		t.Errorf("cache populated despite metadata failure, count = %d", got)
	}
}

func TestResolveSignFailure(t *testing.T) {
	fb := &fakeBlob{signErr: errors.New("store unavailable")}
	fe := &fakeExtractor{}
	r, cache := newTestResolver(t, fb, fe)

	result := r.Resolve(context.Background(), "u1", "c1", []FileRef{textRef()})
	if len(result.Errors) != 1 || result.Errors[0].Code != CodeUnavailable {
		t.Fatalf("errors = %+v, want one unavailable", result.Errors)
	}
	if got := cache.Stats().EntryCount; got != 0 {
		t.Errorf("cache populated despite signing failure, count = %d", got)
	}
}

func TestExtractionFailureCachesPlaceholder(t *testing.T) {
	fb := &fakeBlob{statInfo: blob.ObjectInfo{Size: 99, ContentType: "text/plain"}}
	fe := &fakeExtractor{err: errors.New("parser exploded")}
	r, _ := newTestResolver(t, fb, fe)

	result := r.Resolve(context.Background(), "u1", "c1", []FileRef{textRef()})
	if len(result.Files) != 1 {
		t.Fatalf("extraction failure must still resolve, got %+v", result)
	}
	want := fmt.Sprintf(ExtractionFailedFormat, "f1.txt")
	if result.Files[0].Content != want {
		t.Errorf("Content = %q, want placeholder %q", result.Files[0].Content, want)
	}

	// The placeholder is cached: a second resolve must not retry the
	// failing extraction within the TTL window.
	r.Resolve(context.Background(), "u1", "c1", []FileRef{textRef()})
	if got := fe.calls.Load(); got != 1 {
		t.Errorf("extractor called %d times, want 1 (placeholder should be cached)", got)
	}
}

func TestResolveBatchPartialSuccess(t *testing.T) {
	fb := &fakeBlob{statInfo: blob.ObjectInfo{Size: 5, ContentType: "text/plain"}}
	fe := &fakeExtractor{result: "fine"}
	r, _ := newTestResolver(t, fb, fe)

	result := r.Resolve(context.Background(), "u1", "c1", []FileRef{
		{StoragePath: "u1/good.txt", FileName: "good.txt", ContentType: "text/plain"},
		{StoragePath: "u2/theirs.txt", FileName: "theirs.txt"},
	})

	if len(result.Files) != 1 || result.Files[0].FileName != "good.txt" {
		t.Errorf("files = %+v, want just good.txt", result.Files)
	}
	if len(result.Errors) != 1 || result.Errors[0].Path != "u2/theirs.txt" {
		t.Errorf("errors = %+v, want just u2/theirs.txt", result.Errors)
	}
}

func TestConcurrentMissesSingleRefill(t *testing.T) {
	fb := &fakeBlob{statInfo: blob.ObjectInfo{Size: 5, ContentType: "text/plain"}}
	fe := &fakeExtractor{result: "slow", delay: 100 * time.Millisecond}
	r, _ := newTestResolver(t, fb, fe)

	const requesters = 8
	var wg sync.WaitGroup
	for i := 0; i < requesters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := r.Resolve(context.Background(), "u1", "c1", []FileRef{textRef()})
			if len(result.Files) != 1 {
				t.Errorf("concurrent resolve failed: %+v", result.Errors)
			}
		}()
	}
	wg.Wait()

	if got := fe.calls.Load(); got != 1 {
		t.Errorf("extractor called %d times for concurrent misses, want 1", got)
	}
}

func TestCancelledRefillDoesNotCache(t *testing.T) {
	fb := &fakeBlob{statInfo: blob.ObjectInfo{Size: 5, ContentType: "text/plain"}}
	fe := &fakeExtractor{result: "late"}
	r, cache := newTestResolver(t, fb, fe)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := r.Resolve(ctx, "u1", "c1", []FileRef{textRef()})
	if len(result.Errors) != 1 {
		t.Fatalf("expected per-file error for aborted refill, got %+v", result)
	}
	if got := cache.Stats().EntryCount; got != 0 {
		t.Errorf("aborted refill cached an entry, count = %d", got)
	}
}

func TestForget(t *testing.T) {
	fb := &fakeBlob{statInfo: blob.ObjectInfo{Size: 5, ContentType: "text/plain"}}
	fe := &fakeExtractor{result: "fine"}
	r, cache := newTestResolver(t, fb, fe)

	r.Resolve(context.Background(), "u1", "c1", []FileRef{textRef()})
	if got := cache.Stats().EntryCount; got != 1 {
		t.Fatalf("setup failed, count = %d", got)
	}

	r.Forget("u1", "c1", "u1/f1.txt")
	if got := cache.Stats().EntryCount; got != 0 {
		t.Errorf("Forget left entry behind, count = %d", got)
	}
}
