package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// MemoryDSN selects the in-process store.
const MemoryDSN = "memory"

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Store bundles the repositories with the connection that backs them.
type Store struct {
	Documents DocumentRepository
	Facts     FactRepository
	Backend   string

	db     *sql.DB
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open picks a backend from the DSN: "memory", a postgres:// URL, or a
// sqlite file path (optionally prefixed with "file:"). SQL backends are
// migrated before Open returns.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := strings.TrimSpace(cfg.DSN)
	switch {
	case dsn == MemoryDSN:
		logger.Info("using in-memory store")
		m := NewMemoryStore()
		return &Store{Documents: m.Documents(), Facts: m.Facts(), Backend: MemoryDSN, logger: logger}, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return openPostgres(ctx, cfg, logger)
	default:
		return openSQLite(ctx, dsn, logger)
	}
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	logger.Info("connecting to database", "backend", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "legal-docs"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for the ent SQL builder and migrations
	db := stdlib.OpenDBFromPool(pool)
	s, err := newSQLStore(ctx, dialect.Postgres, db, logger)
	if err != nil {
		_ = db.Close()
		pool.Close()
		return nil, err
	}
	s.pool = pool
	logger.Info("successfully connected to database")
	return s, nil
}

func openSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	logger.Info("opening database", "backend", dialect.SQLite, "path", abs)
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", abs))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(ctx, dialect.SQLite, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newSQLStore(ctx context.Context, dialectName string, db *sql.DB, logger *slog.Logger) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", dialectName, err)
	}
	if err := Migrate(ctx, dialectName, db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		return nil, err
	}
	return &Store{
		Documents: NewSQLDocumentRepository(db, dialectName, logger),
		Facts:     NewSQLFactRepository(db, dialectName, logger),
		Backend:   dialectName,
		db:        db,
		logger:    logger,
	}, nil
}

// Close closes the database connections gracefully
func (s *Store) Close() {
	s.logger.Info("closing database connections", "backend", s.Backend)
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("failed to close database", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// HealthCheck pings the backing database; the memory store is always healthy.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if s.db == nil {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	s.logger.Debug("pinging database")
	return s.db.PingContext(ctx)
}
