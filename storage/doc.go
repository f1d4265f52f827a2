// Package storage defines the key-value backends behind the session store
// and the transient-credential accessor.
//
// Two implementations are provided: Bolt, a file-backed store that survives
// process restarts and holds the durable access-token entry, and Memory, a
// process-scoped store for transient flow credentials and tests. All reads
// and writes of client state go through a KV so the on-disk format is owned
// by exactly one package.
package storage
