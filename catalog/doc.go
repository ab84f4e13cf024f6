// Package catalog maps collection names to their indexes.
//
// A Registry is owned by the engine. Only the engine's apply path calls
// Create and Drop; queries use Get and never mutate.
package catalog
