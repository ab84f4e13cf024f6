// Package engine keeps the collection registry and the durability log
// consistent.
//
// Every mutation goes through the Coordinator:
//   - validate against the registry
//   - assign the next sequence number
//   - append to the durability log and wait until it is durable
//   - apply to the registry with the same function used by recovery
//
// Only then is success reported. Queries go through the Executor, which
// reads the registry directly and never touches the log.
//
// # Ordering
//
// One sequencer lock orders all mutations globally. Record mutations
// release it while their log entry is being synced so that concurrent
// writers share one fdatasync (group commit); per-collection apply tickets
// keep the apply order equal to the sequence order.
//
// # Recovery
//
// Open replays the log through the same apply function before the engine
// accepts traffic. A corrupt entry aborts Open.
package engine
