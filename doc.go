// Package vecraft is a single-node vector similarity search engine.
//
// Clients create named collections of fixed-dimension embeddings, upsert
// and delete records, and run exact k-nearest-neighbor queries with
// optional metadata filters. Every mutation is written to an append-only
// durability log before it becomes visible, and the log is replayed on
// Open to rebuild state.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, _ := vecraft.Open(ctx, vecraft.WithWAL("./data/wal.log"))
//	defer db.Close()
//
//	db.CreateCollection(ctx, "docs", 3, distance.MetricCosine)
//	db.Upsert(ctx, "docs", vecraft.Record{ID: "a", Vector: []float32{1, 0, 0}})
//
//	results, _ := db.Query(ctx, "docs", []float32{1, 0, 0}, 10,
//	    vecraft.WithFilter(metadata.NewFilterSet(metadata.Eq("lang", metadata.String("go")))),
//	)
//
// # Durability Model
//
// With WithWAL every mutation is fsync'd before it is acknowledged;
// concurrent writers share syncs. With an async log the mutation is only
// handed to the OS and MutationResult.Durable is false. Without a log
// mutations are applied directly and Durable is false too.
//
// A corrupt log makes Open fail with ErrCorruptEntry rather than serve a
// partial state. Append failures return ErrIOFailure; repeated failures
// put the database into a degraded state reported by Health and
// ErrDegraded.
//
// # Search Semantics
//
// Search is an exact linear scan. Results are ordered by ascending
// distance, ties broken by ascending record id. Distances: cosine is
// 1-cos, euclidean is the L2 distance, dot is the negated inner product.
package vecraft
