// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig is where everything specific to MaestraNote lives: the
// MongoDB connection, transaction behavior, and operation timeouts.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Transaction mode for cascade cleanup: "auto" probes the deployment,
	// "on" forces session transactions, "off" forces sequential writes.
	TxnMode string

	// Operation timeout overrides. Zero keeps the built-in default.
	TimeoutPing   time.Duration // health checks
	TimeoutShort  time.Duration // single-document reads
	TimeoutMedium time.Duration // list queries and dual writes
	TimeoutLong   time.Duration // cascade cleanup across collections
	TimeoutBatch  time.Duration // bulk rehearsal creation
}
