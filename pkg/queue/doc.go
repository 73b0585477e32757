// Package queue provides an in-memory core.Queue and queue-to-queue helpers.
//
// This package includes:
//   - Memory: a mutex-guarded FIFO queue, for tests and single-process use
//   - Replay: moves failed jobs back to a pending queue for another attempt
//
// Durable queues backed by SQL databases and Redis live in pkg/storage.
package queue
