package factory

import (
	"errors"
	"strings"

	"github.com/loykin/chronicle/internal/store"
	pg "github.com/loykin/chronicle/internal/store/postgres"
	sq "github.com/loykin/chronicle/internal/store/sqlite"
)

// Options selects and tunes a store.
type Options struct {
	DSN string
	// MaxOpenConns bounds the connection pool; 0 keeps the backend default.
	MaxOpenConns int
}

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - sqlite:  "sqlite:///<path>" or bare filepath (treated as sqlite)
//   - postgres: DSN starting with "postgres://" or "postgresql://"
func NewFromDSN(dsn string) (store.Store, error) { return New(Options{DSN: dsn}) }

// New is NewFromDSN with pool settings.
func New(o Options) (store.Store, error) {
	d := strings.TrimSpace(o.DSN)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty DSN")
	}
	if strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://") {
		return pg.NewWithConfig(pg.Config{DSN: d, MaxOpenConns: o.MaxOpenConns})
	}
	if strings.HasPrefix(ld, "sqlite://") {
		d = d[len("sqlite://"):]
	}
	return sq.NewWithConfig(sq.Config{Path: d, MaxOpenConns: o.MaxOpenConns})
}
