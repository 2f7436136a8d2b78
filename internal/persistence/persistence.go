package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"
)

// Backend names a history store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
	BackendMongo    Backend = "mongo"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// Options selects and configures a backend for Open.
type Options struct {
	Backend Backend
	// DSN is a file path or ":memory:" for SQLite, and a connection URL for
	// Postgres, Redis and MongoDB. It is ignored by the memory backend.
	DSN string
	// Prefix namespaces Redis keys; for MongoDB it is the database name.
	Prefix string
}

// Persistence bundles an EventStore with the connection that backs it.
type Persistence struct {
	Events EventStore

	closers []func() error
}

// Close releases the underlying connection.
func (p *Persistence) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Open connects to the configured backend and returns a ready EventStore.
func Open(ctx context.Context, opts Options) (*Persistence, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return &Persistence{Events: NewInMemoryEventStore()}, nil

	case BackendSQLite:
		dsn := opts.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if dsn == ":memory:" {
			// Every pooled connection would get its own empty database.
			db.SetMaxOpenConns(1)
		}
		store, err := NewSQLiteEventStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
		return &Persistence{Events: store, closers: []func() error{db.Close}}, nil

	case BackendPostgres:
		db, err := sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		store, err := NewPostgresEventStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init postgres schema: %w", err)
		}
		return &Persistence{Events: store, closers: []func() error{db.Close}}, nil

	case BackendRedis:
		ropts, err := redis.ParseURL(opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(ropts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		store := NewRedisEventStore(client, opts.Prefix)
		return &Persistence{Events: store, closers: []func() error{client.Close}}, nil

	case BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.DSN))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		disconnect := func() error { return client.Disconnect(context.Background()) }
		if err := client.Ping(ctx, nil); err != nil {
			_ = disconnect()
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		store, err := NewMongoEventStore(ctx, client, opts.Prefix, "")
		if err != nil {
			_ = disconnect()
			return nil, err
		}
		return &Persistence{Events: store, closers: []func() error{disconnect}}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
