// Package metadata provides typed record metadata and the filter predicates
// evaluated against it during queries.
//
// # Metadata Types
//
// Metadata values are primitives or arrays of primitives:
//
//   - String: metadata.String("tech")
//   - Int: metadata.Int(2024)
//   - Float: metadata.Float(3.14)
//   - Bool: metadata.Bool(true)
//   - Array: metadata.Array([]metadata.Value{...})
//
// Example:
//
//	meta := metadata.Document{
//	    "category": metadata.String("tech"),
//	    "year":     metadata.Int(2024),
//	}
//
// # Filters
//
// A FilterSet is a conjunction: a document matches only if every filter
// matches. Supported operators are equality (eq, ne), numeric ranges
// (gt, gte, lt, lte), set membership (in) and substring (contains).
//
//	fs := metadata.NewFilterSet(
//	    metadata.Eq("category", metadata.String("tech")),
//	    metadata.Gte("year", metadata.Int(2023)),
//	)
//
// A filter on a key the document does not carry never matches, including ne.
//
// # JSON
//
// Documents encode as plain JSON objects. Integers and floats stay
// distinct across a round trip: floats are always written with a fraction
// or exponent.
package metadata
