package coze

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"facestudio/internal/infra"
)

// DefaultConfigTTL is how long a loaded ConfigEntry is served without I/O.
const DefaultConfigTTL = 60 * time.Second

const (
	// fallbackRetryTTL is how long an entry resolved without the store is
	// served before the store is tried again.
	fallbackRetryTTL = 5 * time.Second
	// defaultStoreTimeout bounds one refresh of all keys.
	defaultStoreTimeout = 3 * time.Second
)

// Config store keys holding the Coze settings.
const (
	KeyAPIKey                 = "coze_api_key"
	KeyBotID                  = "coze_bot_id"
	KeySingleFaceWorkflowID   = "coze_single_face_workflow_id"
	KeyDoubleFaceWorkflowID   = "coze_double_face_workflow_id"
	KeyUserAnalyzeWorkflowID  = "coze_user_analyze_workflow_id"
	defaultBotID              = "7431052261290459170"
	defaultSingleFaceWorkflow = "7431374437460967451"
	defaultDoubleFaceWorkflow = "7431376530225741875"
	defaultUserAnalyzeFlow    = "7436215542016819263"
)

// configSetting binds a store key to its environment override and default.
type configSetting struct {
	key      string
	env      string
	fallback string
	assign   func(*ConfigEntry, string)
}

var configSettings = []configSetting{
	{KeyAPIKey, "COZE_API_KEY", "", func(e *ConfigEntry, v string) { e.APIKey = v }},
	{KeyBotID, "COZE_BOT_ID", defaultBotID, func(e *ConfigEntry, v string) { e.BotID = v }},
	{KeySingleFaceWorkflowID, "COZE_SINGLE_FACE_WORKFLOW_ID", defaultSingleFaceWorkflow, func(e *ConfigEntry, v string) { e.SingleFaceWorkflowID = v }},
	{KeyDoubleFaceWorkflowID, "COZE_DOUBLE_FACE_WORKFLOW_ID", defaultDoubleFaceWorkflow, func(e *ConfigEntry, v string) { e.DoubleFaceWorkflowID = v }},
	{KeyUserAnalyzeWorkflowID, "COZE_USER_ANALYZE_WORKFLOW_ID", defaultUserAnalyzeFlow, func(e *ConfigEntry, v string) { e.UserAnalyzeWorkflowID = v }},
}

// ConfigKeys lists every store key the cache reads.
func ConfigKeys() []string {
	keys := make([]string, len(configSettings))
	for i, s := range configSettings {
		keys[i] = s.key
	}
	return keys
}

// ConfigEntry is one resolved snapshot of the Coze settings.
type ConfigEntry struct {
	APIKey                string
	BotID                 string
	SingleFaceWorkflowID  string
	DoubleFaceWorkflowID  string
	UserAnalyzeWorkflowID string
	FetchedAt             time.Time
}

// ConfigStore reads operator-managed configuration values. A missing key is
// reported as "" with a nil error.
type ConfigStore interface {
	Value(ctx context.Context, key string) (string, error)
}

// ConfigCacheOptions configures a ConfigCache.
type ConfigCacheOptions struct {
	Store ConfigStore
	TTL   time.Duration
	// StoreTimeout bounds a refresh. Store reads ignore the caller's
	// cancellation so an aborted request cannot poison the cache.
	StoreTimeout time.Duration
	Now          func() time.Time
	Getenv       func(string) string
	Logger       *infra.Logger
}

// ConfigCache serves ConfigEntry snapshots with a TTL. Concurrent refreshes
// are allowed; the last writer wins with equivalent data.
type ConfigCache struct {
	store        ConfigStore
	ttl          time.Duration
	storeTimeout time.Duration
	now          func() time.Time
	getenv       func(string) string
	logger       *infra.Logger

	mu      sync.RWMutex
	entry   *ConfigEntry
	expires time.Time
}

// NewConfigCache builds a cache. A nil store resolves from env and defaults.
func NewConfigCache(opts ConfigCacheOptions) *ConfigCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &ConfigCache{
		store:        opts.Store,
		ttl:          ttl,
		storeTimeout: durationOr(opts.StoreTimeout, defaultStoreTimeout),
		now:          now,
		getenv:       getenv,
		logger:       logger,
	}
}

// Get returns the cached entry while it is fresh, otherwise reloads it. Store
// failures never surface: the entry falls back to env values and defaults and
// is kept only for a short retry interval.
func (c *ConfigCache) Get(ctx context.Context) ConfigEntry {
	now := c.now()
	c.mu.RLock()
	cached, expires := c.entry, c.expires
	c.mu.RUnlock()
	if cached != nil && now.Before(expires) {
		return *cached
	}

	entry, fromStore := c.load(ctx)
	entry.FetchedAt = now
	ttl := c.ttl
	if !fromStore && fallbackRetryTTL < ttl {
		ttl = fallbackRetryTTL
	}
	c.mu.Lock()
	c.entry = &entry
	c.expires = now.Add(ttl)
	c.mu.Unlock()
	return entry
}

// Clear drops the cached entry so the next Get reloads from the store.
func (c *ConfigCache) Clear() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}

// load resolves every setting. fromStore is false when the store was
// configured but could not be read.
func (c *ConfigCache) load(ctx context.Context) (entry ConfigEntry, fromStore bool) {
	values := make([]string, len(configSettings))
	fromStore = true
	if c.store != nil {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.storeTimeout)
		defer cancel()
		g, gctx := errgroup.WithContext(readCtx)
		for i, setting := range configSettings {
			i, setting := i, setting
			g.Go(func() error {
				v, err := c.store.Value(gctx, setting.key)
				if err != nil {
					return err
				}
				values[i] = strings.TrimSpace(v)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			c.logger.Warn().Err(err).Msg("coze: config store unavailable, using environment defaults")
			values = make([]string, len(configSettings))
			fromStore = false
		}
	}

	for i, setting := range configSettings {
		v := values[i]
		if v == "" {
			v = strings.TrimSpace(c.getenv(setting.env))
		}
		if v == "" {
			v = setting.fallback
		}
		setting.assign(&entry, v)
	}
	return entry, fromStore
}
