// Package worker runs processor batches continuously.
//
// A Worker starts several goroutines that share one processor.Processor.
// Each goroutine executes batches back to back while jobs are available and
// waits for the poll interval once the pending queue is drained or
// unreachable. Concurrent batches are safe whenever the queue's Pop is
// atomic, which holds for every queue in this module.
package worker
