// Package registry wires the consistency-layer services together. One
// Registry per process gives the same semantics as the old per-service
// singletons while letting tests construct fresh instances.
package registry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tokenlab/tokencore/pkg/changelog"
	"github.com/tokenlab/tokencore/pkg/domain"
	"github.com/tokenlab/tokencore/pkg/editsession"
	"github.com/tokenlab/tokencore/pkg/perf"
	"github.com/tokenlab/tokencore/pkg/storage"
	"github.com/tokenlab/tokencore/pkg/validation"
)

// Registry holds the wired services.
type Registry struct {
	Validator *validation.Engine
	Store     domain.KVStore
	Storage   *storage.TransactionManager
	Tracker   *changelog.Tracker
	Sessions  *editsession.Manager
	Monitor   *perf.Monitor
	Cache     *perf.Cache
	Loader    *perf.Loader

	Metrics *prometheus.Registry

	fileStore *storage.FileStore
	logger    zerolog.Logger
}

type config struct {
	dataFile         string
	store            domain.KVStore
	saveHandler      domain.SaveHandler
	autoSaveInterval time.Duration
	validationDelay  time.Duration
	maxHistory       int
	maxUndo          int
	cacheTTL         time.Duration
	cacheMaxEntries  int
	durableTracking  bool
	optimistic       bool
	logger           zerolog.Logger
}

// Option configures the registry.
type Option func(*config)

// WithDataFile persists through a file-backed snapshot store at path.
func WithDataFile(path string) Option {
	return func(c *config) { c.dataFile = path }
}

// WithStore supplies a custom persistence substrate.
func WithStore(store domain.KVStore) Option {
	return func(c *config) { c.store = store }
}

// WithSaveHandler overrides the default write-through save handler.
func WithSaveHandler(handler domain.SaveHandler) Option {
	return func(c *config) { c.saveHandler = handler }
}

// WithAutoSave enables per-session auto-save at the given interval.
func WithAutoSave(interval time.Duration) Option {
	return func(c *config) { c.autoSaveInterval = interval }
}

// WithValidationDelay sets the debounced-validation delay for sessions.
func WithValidationDelay(d time.Duration) Option {
	return func(c *config) { c.validationDelay = d }
}

// WithMaxHistory caps the change ledger.
func WithMaxHistory(n int) Option {
	return func(c *config) { c.maxHistory = n }
}

// WithMaxUndo caps per-session undo stacks.
func WithMaxUndo(n int) Option {
	return func(c *config) { c.maxUndo = n }
}

// WithCache tunes the performance cache.
func WithCache(ttl time.Duration, maxEntries int) Option {
	return func(c *config) {
		c.cacheTTL = ttl
		c.cacheMaxEntries = maxEntries
	}
}

// WithDurableTracking toggles persisting change history (default: on).
func WithDurableTracking(enabled bool) Option {
	return func(c *config) { c.durableTracking = enabled }
}

// WithOptimisticUpdates toggles optimistic change application (default: on).
func WithOptimisticUpdates(enabled bool) Option {
	return func(c *config) { c.optimistic = enabled }
}

// WithLogger sets the logger shared by all services.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New builds and wires the full consistency layer.
func New(options ...Option) (*Registry, error) {
	cfg := config{
		autoSaveInterval: 0,
		validationDelay:  300 * time.Millisecond,
		maxHistory:       1000,
		maxUndo:          50,
		cacheTTL:         5 * time.Minute,
		cacheMaxEntries:  1000,
		durableTracking:  true,
		optimistic:       true,
		logger:           zerolog.Nop(),
	}
	for _, option := range options {
		option(&cfg)
	}

	r := &Registry{
		Validator: validation.NewEngine(),
		Metrics:   prometheus.NewRegistry(),
		logger:    cfg.logger,
	}

	switch {
	case cfg.store != nil:
		r.Store = cfg.store
	case cfg.dataFile != "":
		fs, err := storage.NewFileStore(cfg.dataFile, cfg.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open data file: %w", err)
		}
		r.fileStore = fs
		r.Store = fs
	default:
		r.Store = storage.NewMemoryStore()
	}

	r.Storage = storage.NewTransactionManager(r.Store,
		storage.WithValidator(r.Validator),
		storage.WithLogger(cfg.logger),
	)

	trackerOptions := []changelog.Option{
		changelog.WithValidator(r.Validator),
		changelog.WithMaxHistory(cfg.maxHistory),
		changelog.WithOptimisticUpdates(cfg.optimistic),
		changelog.WithLogger(cfg.logger),
	}
	if cfg.durableTracking {
		trackerOptions = append(trackerOptions, changelog.WithDurableTracking(r.Storage))
	}
	r.Tracker = changelog.NewTracker(trackerOptions...)

	r.Monitor = perf.NewMonitor(
		perf.WithMonitorLogger(cfg.logger),
		perf.WithPrometheus(r.Metrics),
	)
	r.Cache = perf.NewCache(
		perf.WithDefaultTTL(cfg.cacheTTL),
		perf.WithMaxEntries(cfg.cacheMaxEntries),
		perf.WithCacheLogger(cfg.logger),
	)
	r.Cache.StartCleanup()
	r.Loader = perf.NewLoader(r.Monitor, r.Cache)

	saveHandler := cfg.saveHandler
	if saveHandler == nil {
		saveHandler = r.writeThroughHandler()
	}

	sessionOptions := []editsession.Option{
		editsession.WithValidator(r.Validator),
		editsession.WithChangeTracker(r.Tracker),
		editsession.WithSaveHandler(saveHandler),
		editsession.WithMonitor(r.Monitor),
		editsession.WithMaxUndo(cfg.maxUndo),
		editsession.WithValidationDelay(cfg.validationDelay),
		editsession.WithLogger(cfg.logger),
	}
	if cfg.autoSaveInterval > 0 {
		sessionOptions = append(sessionOptions, editsession.WithAutoSave(cfg.autoSaveInterval))
	}
	r.Sessions = editsession.NewManager(sessionOptions...)

	return r, nil
}

// writeThroughHandler is the default save path: session payloads land in the
// transaction manager under a per-entity key, and the cached read for that
// key is invalidated.
func (r *Registry) writeThroughHandler() domain.SaveHandler {
	return domain.SaveHandlerFunc(func(componentType, accessPattern string, payload domain.Document, opts map[string]interface{}) error {
		entityID, _ := opts["entity_id"].(string)
		if entityID == "" {
			return fmt.Errorf("save requires an entity_id option")
		}
		key := fmt.Sprintf("tokencore:data:%s:%s", componentType, entityID)
		if err := r.Storage.Set(key, map[string]interface{}(payload)); err != nil {
			return err
		}
		r.Cache.Invalidate(key)
		return nil
	})
}

// Close tears down background workers and flushes the file store when one
// is in use.
func (r *Registry) Close() error {
	r.Sessions.Reset()
	r.Cache.Stop()
	if r.fileStore != nil {
		if err := r.fileStore.Flush(); err != nil {
			return fmt.Errorf("failed to flush data file: %w", err)
		}
	}
	return nil
}
