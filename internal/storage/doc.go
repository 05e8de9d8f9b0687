// Package storage provides the durable key-blob stores that snapshots and
// images are written to.
//
// A SlotStore maps a slot key to one opaque blob. Writes overwrite the
// slot. Backends:
//
//   - memory: process-local, for tests and development
//   - file: one file per slot, checksummed, replaced atomically
//   - badger: embedded Badger v3 database
//   - s3: one object per slot in an S3-compatible bucket
//   - redis: one string per slot
//
// Every call takes a context; callers bound it with a timeout. Backends
// never retry.
package storage
