// Package queue implements the durable outbound event queue.
//
// The FileStore keeps the pending sequence in memory, mirrors every change to
// a version-tagged JSON blob on disk, and exposes snapshot/commit semantics so
// that the sync loop can drain a prefix while new events keep arriving:
// the commit removes only the snapshotted prefix, never the whole list.
package queue
