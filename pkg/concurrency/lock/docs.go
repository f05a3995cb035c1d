// Package lock implements page-level strict two-phase locking.
//
// # Overview
//
// LockManager keeps, for every locked page, the set of transactions holding
// it and the mode each one holds. A page is either unlocked, shared by one
// or more transactions, or held exclusively by exactly one transaction.
//
// # Acquisition
//
// Acquire never blocks. It evaluates the request under one mutex and returns
// true when granted:
//
//   - no holders: granted
//   - requester holds Shared, wants Shared: granted
//   - requester holds Shared, wants Exclusive: granted only if it is the sole holder (upgrade)
//   - requester holds Exclusive: granted
//   - requester holds nothing: granted only if every holder is Shared and Shared is requested
//
// Waiting, timeouts and aborts belong to the caller. The buffer pool retries
// refused requests until a deadline and then aborts the transaction; there is
// no wait-for graph, so a cycle across pages is broken only by that timeout.
//
// # Release
//
// Release drops one (transaction, page) entry; ReleaseAll drops every entry
// of a transaction and is called once when it completes.
package lock
