// Package metadata defines the per-object record the orchestrator reads and
// updates, and the Store interface that persists it.
//
// The record store is external to the core. Memory is a thread-safe
// in-memory implementation for tests; package metadata/badger provides a
// durable implementation on BadgerDB.
package metadata
