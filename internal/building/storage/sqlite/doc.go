// Package sqlite contains SQLite repository implementations for the
// building decision domain: optimization runs, their trials, versioned
// threshold records, and evaluation reports.
//
// All SQL lives here rather than in the decision or optimize packages,
// which keeps the domain logic free of storage noise and the stores
// swappable for testing.
package sqlite
