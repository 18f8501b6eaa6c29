// Package resolver is the cache-or-fetch component for User and Group
// identities.
//
// The store doubles as the cache: an existence check by primary key decides
// whether a network fetch is needed at all, which keeps the scarce request
// budget for pages that actually carry new data. Resolved records are
// immutable — once persisted they are returned as-is forever.
package resolver
