// Package wal implements the durability log: an append-only file of JSON
// lines, one mutating operation per line.
//
// # Format
//
// Each line is a self-describing object:
//
//	{"seq":1,"op":"create_collection","collection":"docs","ts_ms":1700000000000,"payload":{"dimension":3,"metric":"cosine"},"crc":123}
//
// The crc field is CRC-32C over seq, op, collection and the raw payload
// bytes joined by '|'. Sequence numbers start at 1 and are gap-free.
//
// # Durability
//
// With DurabilitySync (the default) Append returns only after the line is
// covered by an fdatasync. Concurrent appenders share syncs through a
// background group-commit goroutine. DurabilityAsync hands lines to the OS
// and returns immediately.
//
// A failed write is rolled back by truncating to the previous end of the
// log. If the rollback or a sync fails the log enters a failed state and
// rejects every later append with ErrLogFailed.
//
// # Recovery
//
// Open truncates an unterminated final line, which can only be an append
// that was never acknowledged. Replay re-reads the file from the start on
// every call and stops at the first entry that fails validation.
package wal
