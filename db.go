package st9

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/st9db/st9.go/pkg/config"
	"github.com/st9db/st9.go/pkg/connection"
	"github.com/st9db/st9.go/pkg/connection/http"
	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/identitymap"
	"github.com/st9db/st9.go/pkg/logger"
	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/serializer"
	"github.com/st9db/st9.go/pkg/store"
)

// DB is the entry point: it owns the type registry and the store the
// entities are read from and written to. A DB is safe for concurrent use;
// the identity cache lives on the context, not on the DB.
type DB struct {
	reg   *models.Registry
	store store.Store

	allowCascades   bool
	hasManyPageSize int
	identityMap     bool
	batchSize       int
	logger          logger.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithAllowCascades enables operations that walk has-many edges.
func WithAllowCascades(allow bool) Option {
	return func(db *DB) { db.allowCascades = allow }
}

// WithHasManyPageSize sets the page size of has-many scans. 0 leaves it to
// the server.
func WithHasManyPageSize(n int) Option {
	return func(db *DB) { db.hasManyPageSize = n }
}

// WithoutIdentityMap makes every lookup go to the store, even with a cache
// on the context.
func WithoutIdentityMap() Option {
	return func(db *DB) { db.identityMap = false }
}

// WithBatchSize sets the number of ids per multi-get request.
func WithBatchSize(n int) Option {
	return func(db *DB) { db.batchSize = n }
}

func WithLogger(l logger.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// FromConnection creates a DB over an established connection.
func FromConnection(_ context.Context, conn connection.Connection, reg *models.Registry, opts ...Option) *DB {
	db := &DB{
		reg:         reg,
		identityMap: true,
		batchSize:   constants.MultiGetBatchMax,
		logger:      logger.Nop(),
	}
	for _, o := range opts {
		o(db)
	}

	var s store.Store = store.NewRemote(conn, serializer.New(reg), db.batchSize, db.logger)
	if db.identityMap {
		s = identitymap.Wrap(s)
	}
	db.store = s
	return db
}

// FromEndpointURLString creates a DB talking HTTP to the ST9 server at
// endpoint, such as "http://localhost:7331".
func FromEndpointURLString(ctx context.Context, endpoint string, reg *models.Registry, opts ...Option) (*DB, error) {
	u, err := url.ParseRequestURI(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", constants.ErrInvalidArgument, err)
	}
	conf := connection.NewConfig(u)
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	opt := &DB{logger: logger.Nop()}
	for _, o := range opts {
		o(opt)
	}
	conf.Logger = opt.logger
	return FromConnection(ctx, http.New(conf), reg, opts...), nil
}

// FromConfig creates a DB from loaded configuration. Options given here win
// over the configuration.
func FromConfig(ctx context.Context, cfg *config.Config, reg *models.Registry, opts ...Option) (*DB, error) {
	u, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	log, err := logger.New().Level(cfg.LogLevel).Make()
	if err != nil {
		return nil, err
	}

	conf := connection.NewConfig(u)
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	conf.Logger = log
	conf.Retryer = cfg.Retryer()
	if cfg.Timeout > 0 {
		conf.Timeout = time.Duration(cfg.Timeout)
	}

	base := []Option{
		WithLogger(log),
		WithAllowCascades(cfg.AllowCascades),
		WithHasManyPageSize(cfg.HasManyPageSize),
		WithBatchSize(cfg.MultiGetBatchSize),
	}
	if !cfg.IdentityMapEnabled() {
		base = append(base, WithoutIdentityMap())
	}
	return FromConnection(ctx, http.New(conf), reg, append(base, opts...)...), nil
}

func (db *DB) Registry() *models.Registry {
	return db.reg
}

// Store exposes the underlying store for operations not covered by DB.
func (db *DB) Store() store.Store {
	return db.store
}

// Type looks up a registered type by name.
func (db *DB) Type(name string) (*models.EntityType, error) {
	return db.reg.Lookup(name)
}

// WithIdentityMap starts a unit of work: lookups made with the returned
// context share one identity cache. The cache is dropped with the context.
func (db *DB) WithIdentityMap(ctx context.Context) context.Context {
	return identitymap.NewContext(ctx, identitymap.New())
}

// Ping reports whether the server answers.
func (db *DB) Ping(ctx context.Context) (bool, error) {
	return db.store.Ping(ctx)
}

// Nuke deletes every entity on the server. Servers refuse it unless started
// in a mode that allows it.
func (db *DB) Nuke(ctx context.Context, preserveSchema bool) error {
	if c := identitymap.FromContext(ctx); c != nil {
		c.Clear()
	}
	return db.store.Nuke(ctx, preserveSchema)
}

// PublishSchema publishes the schema of every given type, or of every
// registered type when none are given.
func (db *DB) PublishSchema(ctx context.Context, types ...*models.EntityType) error {
	if len(types) == 0 {
		types = db.reg.Types()
	}
	for _, t := range types {
		if err := db.store.PublishSchema(ctx, t.Name, t.Document()); err != nil {
			return fmt.Errorf("publish schema of %s: %w", t.Name, err)
		}
		db.logger.Info("published schema", "type", t.Name)
	}
	return nil
}

// timed logs the duration of a finder at debug level.
func (db *DB) timed(op string, t *models.EntityType, start time.Time, args ...any) {
	ms := time.Since(start).Milliseconds()
	db.logger.Debug(fmt.Sprintf("%s %s (%dms)", op, t.Name, ms), append([]any{"type", t.Name, "ms", ms}, args...)...)
}

// Register declares a type in the DB's registry.
func (db *DB) Register(spec models.TypeSpec) (*models.EntityType, error) {
	return db.reg.Register(spec)
}
