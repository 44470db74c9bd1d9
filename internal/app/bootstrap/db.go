// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"github.com/maestranote/maestranote/internal/app/system/indexes"
	"github.com/maestranote/maestranote/internal/app/system/timeouts"
	"github.com/maestranote/maestranote/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB establishes the MongoDB connection and probes the deployment's
// transaction capability. The client, database handle, and capability are
// bundled into DBDeps for the rest of the lifecycle hooks.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("MongoDB connect failed", zap.Error(err))
		return DBDeps{}, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		logger.Error("MongoDB ping failed", zap.Error(err))
		_ = client.Disconnect(ctx)
		return DBDeps{}, err
	}

	db := client.Database(appCfg.MongoDatabase)

	cap := txn.Detect(ctx, client, db, appCfg.TxnMode, logger)
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.String("txn_capability", cap.String()))

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
		TxnCapability: cap,
	}, nil
}

// EnsureSchema creates the indexes the stores rely on, including the
// partial unique index that enforces a single current school year per
// tenant.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	return indexes.EnsureAll(ctx, deps.MongoDatabase, logger)
}
