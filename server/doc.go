// Package server exposes a vecraft.DB over gRPC.
//
// Messages are plain Go structs carried with a JSON codec registered under
// the "json" content subtype, so no generated code is involved. Each
// transport call maps to one DB operation; a batch upsert writes one log
// entry per point.
package server
