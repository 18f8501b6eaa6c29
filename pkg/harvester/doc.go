// Package harvester provides the incremental harvesting engine.
//
// A run walks a list of feeds strictly sequentially. Per feed it first pages
// the wall backwards in time, bounded by the persisted high-water mark (the
// highest post id already stored for that feed) and the shared request
// budget, then pages the comments of the newly found posts. No state is kept
// outside the store: re-running the harvester against an unchanged upstream
// produces no new rows, and a run cut short by the budget resumes cleanly
// from the high-water marks on the next invocation.
//
// Failure handling is deliberately lopsided: everything below the feed level
// is absorbed (a dead page becomes an empty page, a malformed item is
// skipped, a duplicate insert is logged), while the expired-credential error
// aborts the whole run because only an operator can fix it.
package harvester
