// Package canon is an incremental, idempotent ingestion pipeline that
// consolidates append-only event-log sources into a canonical, per-day,
// batch-partitioned corpus.
//
// The pipeline repeats safely: each run discovers only files not yet
// ingested, assigns them stable batch ids, and records the assignments in a
// durable ledger that is rewritten only after the whole run succeeds. The
// stages, in order:
//
// 1. Enumeration
//
//	A Lister enumerates the files under one source location - an S3
//	prefix, an HDFS directory, or a local directory tree. Listers stream
//	their listings and every lister must succeed; batch assignment
//	computed from a partial listing would silently lose data.
//
// 2. Planning
//
//	The ledger's high-water-mark batch id plus the sorted set of newly
//	discovered paths deterministically yields the path-to-batch
//	assignment. Planning runs single-threaded on the coordinator before
//	any parallel work, which is what lets the parallel stages run with no
//	shared state and no locking.
//
// 3. Canonicalization (map)
//
//	Each input line is parsed, normalized, and stamped: canonical
//	timestamp, derived date, version, run timestamp, content-hash id,
//	originating file, and batch id. Lines that cannot be canonicalized are
//	noise and are dropped without error. Records are emitted keyed by
//	(date, batch).
//
// 4. Batch writing (reduce)
//
//	All records for one (date, batch) key stream into a single gzip file
//	at dt=<date>/batch_<id>.gz under the output root, with periodic
//	counter increments so a supervising scheduler can tell progress from a
//	stall.
//
// The map/reduce stages run under a Runner, the seam for a distributed
// execution engine; LocalRunner executes in-process.
package canon
