// Package model defines records and the mutating operations that flow
// through the durability log and the apply path.
//
// Operation is a closed set: CreateCollection, Upsert, Delete and
// DropCollection. Each variant carries exactly the fields it needs.
package model
