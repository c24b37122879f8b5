// Package frontier implements the URL frontier of a crawl: the thread-safe
// record of which URLs are pending, in flight, and visited.
//
// The Frontier exposes only atomic operations (Enqueue, DequeueBatch,
// MarkVisited). Callers never touch the underlying collections, so the
// "at most one of pending, in-flight, visited" invariant does not depend on
// callers remembering to lock.
//
// Admission checks run in this order: URL syntax and scheme, domain scope,
// ignore and follow patterns, duplicate detection, and finally robots rules.
// The robots check may perform network I/O and therefore runs outside the lock.
package frontier
