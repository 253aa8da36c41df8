// Package backend groups the persistence backends for [echobuf.Store].
//
// Each subpackage implements [echobuf.Backend]:
//
//   - badgerkv stores records in a BadgerDB key space (on disk or in memory).
//   - dskv stores records in any go-datastore Datastore.
//   - filekv stores one file per record in a locked directory.
//
// Backends hold encoded records only. Decoding and validation happen in
// echobuf when the store is opened.
package backend
