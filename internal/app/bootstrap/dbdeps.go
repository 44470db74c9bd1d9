// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/maestranote/maestranote/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// TxnCapability is resolved once at connect time and consumed by the
	// cascade store when choosing between transactional and sequential
	// cleanup.
	TxnCapability txn.Capability
}
