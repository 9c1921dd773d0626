// Package filecache provides an in-process cache for extracted file content,
// keyed by (user, chat, file).
//
// Extracting content from an uploaded file is the expensive step in
// context building: a network fetch from object storage followed by
// format-specific parsing. The same attachment is typically referenced many
// times within a conversation — once when the message carrying it is sent,
// again whenever later turns rebuild the conversational context, again when
// the user re-requests the file. Caching the extracted text means that cost
// is paid once per [TTL] window instead of once per reference.
//
// # Lifetime coupling
//
// Entry lifetime equals the validity window of the presigned URL minted
// during refill. A stale URL is as useless as stale content, so both share
// the single [TTL] constant; internal/blob presigns with the same value.
//
// # Concurrency
//
// [Store] is safe for concurrent use. All five operations are O(1)-ish map
// manipulations under one mutex; no I/O ever happens while the lock is held.
// Concurrent Set calls to the same key serialize to last-write-wins. The
// slow refill work (fetch + extract) belongs to callers — see
// internal/filecontext, which also collapses concurrent misses for the same
// key via singleflight.
//
// # Eviction
//
// Three mechanisms bound memory:
//
//   - lazy: an expired entry is removed by the Get that observes it
//   - sweep: [Store.PurgeExpired] removes all expired entries; run it
//     periodically via [Store.StartSweeper] so write-once-never-read
//     entries cannot accumulate
//   - capacity: Set evicts oldest-inserted entries past the configured
//     maximum entry count
package filecache
