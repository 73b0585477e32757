// Package core provides the fundamental types and interfaces for the jobs package.
//
// This package contains:
//   - Job data model with GORM annotations
//   - Queue interface defining the pop/push contract processors depend on
//   - ShouldQueue, the capability implemented by structured handlers
//   - Outcome, the per-iteration record returned by a batch run
//   - Error types for job processing
//
// Most users should import the root package github.com/jdziat/simple-batch-jobs
// instead of this package directly.
package core
