package pg

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/itchan-dev/authd/shared/config"
	"github.com/itchan-dev/authd/shared/logger"
	sharedpg "github.com/itchan-dev/authd/shared/storage/pg"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

// opTimeout bounds every public storage call.
const opTimeout = 5 * time.Second

// Querier is re-exported so storage methods read like the shared primitives.
type Querier = sharedpg.Querier

type Storage struct {
	db *sql.DB
}

// New connects, applies pending migrations and returns a ready storage.
func New(ctx context.Context, cfg config.Pg, connCfg sharedpg.ConnectionConfig) (*Storage, error) {
	logger.Log.Info("connecting to database", "component", "pg", "host", cfg.Host, "dbname", cfg.Dbname)
	db, err := sharedpg.Connect(ctx, cfg, connCfg)
	if err != nil {
		return nil, err
	}
	if err := sharedpg.Migrate(ctx, db, migrations, "migrations"); err != nil {
		db.Close()
		return nil, err
	}
	logger.Log.Info("database ready", "component", "pg")
	return &Storage{db: db}, nil
}

// NewFromDB wraps an existing pool without running migrations.
func NewFromDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Cleanup() error {
	return s.db.Close()
}

// Ping backs the readiness probe.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return sharedpg.WithTx(ctx, s.db, fn)
}
