// Package index holds the types shared by vector index implementations:
// search options, ranked results and the validation errors an index
// reports.
//
// The only implementation is [flat], an exact brute-force index. Ranking
// is by ascending distance with ties broken by ascending record id, so a
// query over the same state always returns the same list.
package index
