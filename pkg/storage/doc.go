// Package storage provides durable core.Queue implementations.
//
// This package includes:
//   - GormQueue: queues stored in one relational table via GORM (SQLite,
//     PostgreSQL). Many named queues share the table, so a pending and a
//     failed queue can live in the same database.
//   - RedisQueue: queues stored as Redis lists via go-redis.
//
// Both implementations make Pop atomic, so several processors, possibly in
// different processes, may drain the same queue.
package storage
