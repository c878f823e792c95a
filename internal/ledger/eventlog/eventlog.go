// Package eventlog implements the append-only hash-chained event log that
// backs the ledger state machine.
//
// Records are assigned dense 1-based positions. Each record's Hash is the
// Keccak-256 digest over (position | timestamp | kind | payload | prev_hash);
// the first record chains from the well-known GenesisHash (64 hex zeros).
// No genesis record is stored: an empty log has tip 0 and root GenesisHash,
// which keeps the event-kind vocabulary closed for downstream consumers.
//
// Two implementations of the Log interface are provided:
//   - MemoryLog: in-process, for tests and single-process nodes.
//   - PostgresLog: durable, for production use.
package eventlog
