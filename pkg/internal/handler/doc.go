// Package handler provides internal reflection-based handler execution.
//
// This package is internal and should not be imported directly.
// It provides:
//   - Handler: Metadata and execution for registered job handlers
//   - Kind: the two invocation strategies (plain function, structured handler)
//   - Positional decoding of job params into function arguments
package handler
