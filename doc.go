// Package querycache caches the results of ORM model operations.
//
// A Cache[V] sits in front of one result type. Every model operation is passed
// to Do as a Call; the operation name decides the path:
//
//   - reads (findUnique, findMany, count, ...) are served from the cache and
//     filled on a miss;
//   - writes (create, update, upsert, delete, ...) always run and write their
//     result through;
//   - anything else runs untouched.
//
// Each call carries a cache option (Call.Cache) and an invalidation option
// (Call.Uncache); see ResolveCache and ResolveUncache for the accepted shapes.
//
// Keys:
//
//	<model>@<hash(args)>       - derived from the call arguments
//	<namespace>:<key>          - explicit or result-derived keys
//	<KeyPrefix>:<...>          - when Options.KeyPrefix is set
//	<Lock.Prefix>:<key>        - lock records
//
// Concurrent misses of one key share a single query execution per process.
// With Options.Locker set, processes also elect one filler per key through a
// token lock; the rest poll the cache until it is filled or the wait budget
// expires.
//
// Store and lock failures never fail a call: reads degrade to a miss
// and writes are skipped. They are reported through Logger and Hooks.
package querycache
