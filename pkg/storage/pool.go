package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// PoolConfig holds connection pool settings for a GormQueue database.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig suits a handful of processors sharing one database.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
	}
}

// SingleConnPoolConfig serializes all access through one connection. Use it
// for SQLite, where every connection to ":memory:" is a separate database
// and concurrent writers otherwise fail with SQLITE_BUSY.
func SingleConnPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
}

// HighConcurrencyPoolConfig suits many processors popping the same table.
func HighConcurrencyPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    50,
		MaxIdleConns:    25,
		ConnMaxLifetime: 10 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
	}
}

// ErrUnknownPoolProfile is returned by PoolProfile for unregistered names.
var ErrUnknownPoolProfile = errors.New("storage: unknown pool profile")

// PoolProfile returns the pool settings registered under name: "default",
// "single" or "high". Matching is case-insensitive.
func PoolProfile(name string) (PoolConfig, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultPoolConfig(), nil
	case "single":
		return SingleConnPoolConfig(), nil
	case "high":
		return HighConcurrencyPoolConfig(), nil
	default:
		return PoolConfig{}, fmt.Errorf("%w %q", ErrUnknownPoolProfile, name)
	}
}

// PoolOption configures connection pool settings.
type PoolOption interface {
	applyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) applyPool(c *PoolConfig) { f(c) }

// WithPoolConfig replaces every pool setting with c.
func WithPoolConfig(c PoolConfig) PoolOption {
	return poolOptionFunc(func(dst *PoolConfig) {
		*dst = c
	})
}

// MaxOpenConns sets the maximum number of open connections; 0 is unlimited.
func MaxOpenConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxOpenConns = n
	})
}

// MaxIdleConns sets the maximum number of idle connections.
func MaxIdleConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxIdleConns = n
	})
}

// ConnMaxLifetime sets how long a connection may be reused; 0 is no limit.
func ConnMaxLifetime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxLifetime = d
	})
}

// ConnMaxIdleTime sets how long a connection may sit idle; 0 is no limit.
func ConnMaxIdleTime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxIdleTime = d
	})
}

// ConfigurePool applies pool settings, starting from DefaultPoolConfig, to
// the *sql.DB behind db.
func ConfigurePool(db *gorm.DB, opts ...PoolOption) error {
	config := DefaultPoolConfig()
	for _, opt := range opts {
		opt.applyPool(&config)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	return nil
}

// NewGormQueueWithPool configures the pool of db and returns a queue named
// name on it.
//
// Example:
//
//	pending, err := storage.NewGormQueueWithPool(db, "default",
//	    storage.MaxOpenConns(20),
//	)
func NewGormQueueWithPool(db *gorm.DB, name string, opts ...PoolOption) (*GormQueue, error) {
	if err := ConfigurePool(db, opts...); err != nil {
		return nil, err
	}
	return NewGormQueue(db, name), nil
}
