// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/maestranote/maestranote/internal/app/system/txn"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for MaestraNote.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, txn_mode, etc.
//   - Environment variables: MAESTRANOTE_MONGO_URI, MAESTRANOTE_TXN_MODE, etc.
//   - Command-line flags: --mongo_uri, --txn_mode, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "maestranote", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Cascade transaction behavior
	{Name: "txn_mode", Default: "auto", Desc: "Cascade transaction mode: 'auto' (probe deployment), 'on', or 'off'"},

	// Operation timeout overrides (Go duration strings; blank keeps defaults)
	{Name: "timeout_ping", Default: "", Desc: "Health check timeout (e.g., 2s)"},
	{Name: "timeout_short", Default: "", Desc: "Single-document read timeout (e.g., 5s)"},
	{Name: "timeout_medium", Default: "", Desc: "List query and dual-write timeout (e.g., 10s)"},
	{Name: "timeout_long", Default: "", Desc: "Cascade cleanup timeout (e.g., 30s)"},
	{Name: "timeout_batch", Default: "", Desc: "Bulk operation timeout (e.g., 60s)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, MAESTRANOTE_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "MAESTRANOTE", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		TxnMode: appValues.String("txn_mode"),

		TimeoutPing:   appValues.Duration("timeout_ping", 0),
		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
		TimeoutBatch:  appValues.Duration("timeout_batch", 0),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
//
// MaestraNote validates the MongoDB URI format and the transaction mode
// to catch configuration errors early, before attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(appCfg.TxnMode)) {
	case txn.ModeAuto, txn.ModeOn, txn.ModeOff:
	default:
		return fmt.Errorf("txn_mode must be 'auto', 'on', or 'off' (got %q)", appCfg.TxnMode)
	}

	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database must not be empty")
	}

	return nil
}
