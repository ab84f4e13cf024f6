package vecraft_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/vecraft"
	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/metadata"
)

// Example demonstrates a filtered query against an in-memory database.
func Example() {
	ctx := context.Background()

	db, err := vecraft.Open(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if _, err := db.CreateCollection(ctx, "docs", 3, distance.MetricCosine); err != nil {
		log.Fatal(err)
	}

	records := []vecraft.Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Metadata: metadata.Document{"lang": metadata.String("go")}},
		{ID: "b", Vector: []float32{0, 1, 0}, Metadata: metadata.Document{"lang": metadata.String("rust")}},
		{ID: "c", Vector: []float32{0.9, 0.1, 0}, Metadata: metadata.Document{"lang": metadata.String("go")}},
	}
	if _, err := db.UpsertBatch(ctx, "docs", records); err != nil {
		log.Fatal(err)
	}

	results, err := db.Query(ctx, "docs", []float32{1, 0, 0}, 10,
		vecraft.WithFilter(metadata.NewFilterSet(metadata.Eq("lang", metadata.String("go")))),
	)
	if err != nil {
		log.Fatal(err)
	}

	for _, r := range results {
		fmt.Println(r.ID)
	}
	// Output:
	// a
	// c
}

// Example_durable demonstrates that state survives a restart when the
// durability log is enabled.
func Example_durable() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "vecraft-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "wal.log")

	db, err := vecraft.Open(ctx, vecraft.WithWAL(path))
	if err != nil {
		log.Fatal(err)
	}
	if _, err := db.CreateCollection(ctx, "points", 2, distance.MetricEuclidean); err != nil {
		log.Fatal(err)
	}
	res, err := db.Upsert(ctx, "points", vecraft.Record{ID: "p", Vector: []float32{3, 4}})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("seq:", res.Seq, "durable:", res.Durable)
	if err := db.Close(); err != nil {
		log.Fatal(err)
	}

	db, err = vecraft.Open(ctx, vecraft.WithWAL(path))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	results, err := db.Query(ctx, "points", []float32{0, 0}, 1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s %.1f\n", results[0].ID, results[0].Distance)
	// Output:
	// seq: 2 durable: true
	// p 5.0
}
