// Package chunk provides a reusable engine for processing large, id-addressable datasets in
// fixed-size chunks.
//
// A Runner fetches the complete id list from a Job, partitions it into contiguous windows of at
// most ChunkSize ids, resolves each window to records and maps every record, counting the
// mappings that complete. Key properties:
//   - Configurable chunk size (default 500 ids per chunk)
//   - Strictly sequential: chunk N+1 starts only after chunk N's AfterChunk hook returns
//   - Memory bounded by chunk size for records (ids are held in full)
//   - Run-fatal failures stop the run but keep the partial count
//   - Non-fatal failures are collected in a deduplicating ErrorReport and logged once per run
//
// BeforeChunk and AfterChunk bracket each chunk rather than each record, so callers can hold one
// transaction or connection per chunk.
package chunk
