// Package security provides validation, sanitization, and limits for the jobs package.
//
// This package includes:
//   - Input validation for handler names and queue names
//   - Error message sanitization before failure reasons are stored
//   - Clamping functions for batch limits
//   - Security-related constants defining maximum sizes
//
// Most users should import the root package github.com/jdziat/simple-batch-jobs
// which re-exports these functions.
package security
