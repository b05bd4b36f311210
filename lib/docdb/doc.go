// Package docdb defines the contract of a remote document store as it is
// consumed by the dSync library. The contract is intentionally small: it covers
// reading and writing single documents, reading whole collections and
// subscribing to the changes of a collection.
//
// Key Components:
//
//   - IDatabase: Entry point of an engine. Hands out collection and document
//     references as well as write batches.
//
//   - ICollectionRef / IDocumentRef: References to a location in the store.
//     A reference does not imply that a document exists at that location.
//
//   - IQuery: Anything that can be read as a multi-document snapshot and
//     subscribed to. Every collection reference is a query.
//
//   - QuerySnapshot / DocumentSnapshot / Change: The snapshot model. Payloads
//     never contain identity metadata, the id and path of a document travel
//     next to its data.
//
// Paths:
//
//	Paths are slash separated. Collections have an odd number of segments
//	("todos", "users/u1/todos"), documents an even number ("todos/a").
//
// Engines:
//
//	Two engines implement the contract:
//
//	- Memory (docdb/engines/memory): in-process store, used for tests and
//	  single-process setups.
//	- Redis (docdb/engines/redis): documents in redis hashes, changes
//	  distributed via redis pub/sub.
//
// Both engines are checked by the shared conformance suite in docdb/testing.
package docdb
