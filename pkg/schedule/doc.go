// Package schedule decides when batches run.
//
// This package includes:
//   - Schedule interface for computing the next run time
//   - Every() for fixed-interval schedules
//   - Daily() and Weekly() for wall-clock schedules in UTC
//   - Cron() and ParseCron() for cron expressions
//   - Run() for driving a function from a Schedule until cancelled
package schedule
