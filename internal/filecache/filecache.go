package filecache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	// TTL is the lifetime of a cache entry. It deliberately equals the
	// validity window of the presigned URL stored in the entry; the two
	// expire together, so they must come from one constant. internal/blob
	// presigns GET URLs with this same value.
	TTL = 24 * time.Hour

	// DefaultMaxEntries bounds worst-case memory, not correctness. Entries
	// hold full extracted text, so a few hundred to low thousands is the
	// right order of magnitude.
	DefaultMaxEntries = 1024

	// DefaultSweepInterval is how often StartSweeper purges expired entries
	// when the caller does not choose an interval.
	DefaultSweepInterval = 1 * time.Hour
)

// Entry is one cached (content + metadata) record for one file.
// Every field is always populated by the refill path; there are no
// optional-by-omission fields.
type Entry struct {
	// Content is the extracted text representation: full text for text
	// files, pretty-printed JSON, fenced source code, or a descriptive
	// placeholder for images and PDFs. May be large.
	Content     string `json:"content"`
	ContentType string `json:"contentType"`

	// Size is the byte size of the underlying object as reported by the
	// blob store, not len(Content).
	Size     int64  `json:"size"`
	FileName string `json:"fileName"`

	// StoragePath is the durable blob-store path the entry was derived
	// from. Callers guarantee it is prefixed "<userID>/"; the cache does
	// not re-validate ownership.
	StoragePath string `json:"storagePath"`

	// SignedURL is the time-limited URL the content was fetched through,
	// retained for reuse within its validity window.
	SignedURL string `json:"signedUrl"`

	// UploadedAt is the original upload timestamp in RFC 3339 form,
	// defaulted to the refill time when the blob store omits it.
	UploadedAt string `json:"uploadedAt"`

	// ChatID and UserID duplicate the key components so an enumerated
	// entry is self-describing.
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`

	// CachedAt and ExpiresAt are epoch milliseconds. ExpiresAt is always
	// CachedAt + TTL.
	CachedAt  int64 `json:"cachedAt"`
	ExpiresAt int64 `json:"expiresAt"`
}

// Stats reports cache occupancy for introspection and tests.
type Stats struct {
	EntryCount int `json:"entryCount"`

	// ApproximateBytes sums the Content lengths of live entries. It is an
	// approximation: metadata strings and map overhead are not counted.
	ApproximateBytes int64 `json:"approximateBytes"`
}

// Key renders the composite (user, chat, file) identifier as the single
// delimited string used for map lookup. The triple is the sharding
// boundary: the same file referenced from two chats is two entries.
func Key(userID, chatID, fileID string) string {
	return userID + ":" + chatID + ":" + fileID
}

// Store is the in-process file content cache. Safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	entries    map[string]Entry
	maxEntries int
	now        func() time.Time // replaced in tests to simulate clock advance
	logger     *slog.Logger
}

// New creates a Store bounded at maxEntries. Zero or negative maxEntries
// selects DefaultMaxEntries. A nil logger falls back to slog.Default.
func New(maxEntries int, logger *slog.Logger) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
		now:        time.Now,
		logger:     logger,
	}
}

var (
	defaultOnce  sync.Once
	defaultStore *Store
)

// Default returns the process-wide Store, constructing it on first use.
// The cache is a pure performance layer over durable storage, so losing it
// on restart is fine; sharing it across request handlers is the point.
// Prefer dependency injection of a New-constructed Store where wiring
// allows; Default exists for call sites without access to application setup.
func Default() *Store {
	defaultOnce.Do(func() {
		defaultStore = New(DefaultMaxEntries, slog.Default())
	})
	return defaultStore
}

// Get returns the entry for (userID, chatID, fileID), or ok=false if it is
// absent or expired. An expired entry is removed as a side effect, so stale
// content is never returned. Absence is a normal outcome, not an error.
func (s *Store) Get(userID, chatID, fileID string) (Entry, bool) {
	key := Key(userID, chatID, fileID)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	if s.now().UnixMilli() >= e.ExpiresAt {
		delete(s.entries, key)
		return Entry{}, false
	}
	return e, true
}

// Set stores entry under (userID, chatID, fileID), overwriting any existing
// entry outright — no field merging. If the insertion pushes the store past
// its entry bound, oldest-CachedAt entries are evicted until back under it.
//
// Callers populate CachedAt/ExpiresAt themselves (the refill path does so
// with now and now+TTL); an entry arriving already expired is accepted and
// left for lazy eviction on the next Get.
func (s *Store) Set(userID, chatID, fileID string, entry Entry) {
	key := Key(userID, chatID, fileID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry
	if len(s.entries) > s.maxEntries {
		s.evictOldestLocked(len(s.entries) - s.maxEntries)
	}
}

// Delete removes the entry for (userID, chatID, fileID) if present.
// Deleting an absent key is a no-op, not an error. Called when the
// underlying blob is deleted so orphaned content is never served.
func (s *Store) Delete(userID, chatID, fileID string) {
	key := Key(userID, chatID, fileID)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// PurgeExpired removes every entry whose ExpiresAt has passed and returns
// how many were removed. Lazy eviction alone would leak entries that are
// written once and never read again; run this on a timer (StartSweeper).
func (s *Store) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMS := s.now().UnixMilli()
	removed := 0
	for key, e := range s.entries {
		if e.ExpiresAt <= nowMS {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns current occupancy. Expired-but-unswept entries count until
// a Get or PurgeExpired removes them.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bytes int64
	for _, e := range s.entries {
		bytes += int64(len(e.Content))
	}
	return Stats{EntryCount: len(s.entries), ApproximateBytes: bytes}
}

// StartSweeper launches a goroutine that runs PurgeExpired every interval
// until ctx is cancelled. Zero or negative interval selects
// DefaultSweepInterval.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.PurgeExpired(); n > 0 {
					s.logger.Debug("purged expired file content entries", "count", n)
				}
			}
		}
	}()
}

// evictOldestLocked removes the n entries with the smallest CachedAt.
// Caller holds s.mu. The store is small (low thousands at most), so a full
// scan and sort is cheaper than maintaining an ordered structure on every
// Set.
func (s *Store) evictOldestLocked(n int) {
	type aged struct {
		key      string
		cachedAt int64
	}
	all := make([]aged, 0, len(s.entries))
	for key, e := range s.entries {
		all = append(all, aged{key: key, cachedAt: e.CachedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].cachedAt < all[j].cachedAt })

	for i := 0; i < n && i < len(all); i++ {
		delete(s.entries, all[i].key)
	}
	s.logger.Debug("evicted oldest file content entries", "count", n)
}
