// internal/app/system/txn/txn.go

// Package txn resolves, once at startup, whether the MongoDB deployment
// supports multi-document transactions, and exposes a session wrapper for
// the code paths that can use them.
//
// Standalone mongod has no sessions/transactions; only replica-set (or
// mongos) deployments do. Rather than path-testing on every operation, the
// capability is probed at startup and carried as a flag, and cascade/bulk
// code selects its strategy from that flag: session-scoped transaction when
// supported, sequential best-effort writes when not.
package txn

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Capability says whether session transactions may be used.
type Capability int

const (
	// Unsupported means cascade/bulk operations run as sequential
	// best-effort writes with no cross-collection rollback.
	Unsupported Capability = iota
	// Supported means cascade/bulk operations wrap their writes in a
	// session-scoped transaction.
	Supported
)

func (c Capability) String() string {
	if c == Supported {
		return "supported"
	}
	return "unsupported"
}

// Mode is the txn_mode configuration value.
const (
	ModeAuto = "auto" // probe the deployment at startup
	ModeOn   = "on"   // assume transactions work (fail loudly if not)
	ModeOff  = "off"  // never use transactions
)

// Detect resolves the transaction capability for the deployment. In auto
// mode it runs a throwaway transaction against the given database; any
// not-supported class error downgrades to Unsupported.
func Detect(ctx context.Context, client *mongo.Client, db *mongo.Database, mode string, log *zap.Logger) Capability {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeOn:
		return Supported
	case ModeOff:
		return Unsupported
	}

	err := WithSession(ctx, client, func(sc mongo.SessionContext) error {
		// Any command inside the session surfaces the capability error;
		// the result of the find itself is irrelevant.
		res := db.Collection("school_year").FindOne(sc, bson.M{"_id": nil})
		if err := res.Err(); err != nil && err != mongo.ErrNoDocuments {
			return err
		}
		return nil
	})
	if err != nil {
		if IsNotSupported(err) {
			log.Info("multi-document transactions not supported by deployment; using sequential writes")
			return Unsupported
		}
		log.Warn("transaction capability probe failed; assuming unsupported", zap.Error(err))
		return Unsupported
	}
	return Supported
}

// WithSession runs fn inside a session transaction, committing on nil and
// aborting on error.
func WithSession(ctx context.Context, client *mongo.Client, fn func(mongo.SessionContext) error) error {
	sess, err := client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// Server error codes that mean "transactions are not available here":
// 20 IllegalOperation on standalone, 51 plain IllegalOperation,
// 263 OperationNotSupportedInTransaction.
var notSupportedCodes = map[int32]bool{20: true, 51: true, 263: true}

// IsNotSupported reports whether err indicates the deployment cannot run
// sessions/transactions (as opposed to a transaction that merely failed).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if ok := asCommandError(err, &cmdErr); ok && notSupportedCodes[cmdErr.Code] {
		return true
	}

	msg := strings.ToLower(err.Error())
	has := func(s string) bool { return strings.Contains(msg, s) }
	switch {
	case has("transaction") && has("replica set"):
		return true
	case has("session") && has("not supported"):
		return true
	case has("transaction") && has("session"):
		return true
	case has("illegal operation") && has("transaction"):
		return true
	}
	return false
}

func asCommandError(err error, out *mongo.CommandError) bool {
	if ce, ok := err.(mongo.CommandError); ok {
		*out = ce
		return true
	}
	return false
}
