// internal/app/system/tenantscope/tenantscope.go

// Package tenantscope is the single chokepoint for tenant isolation.
//
// Every store method takes an explicit tenantID parameter and builds its
// filters through this package before touching a collection. The tenant
// clause always wins over caller-supplied filter keys, so a client cannot
// widen a query to another tenant by smuggling its own tenantId value, and
// $lookup sub-pipelines get the same clause injected so joined reads are
// scoped too.
package tenantscope

import (
	"strings"

	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field is the tenant discriminator present on every scoped document.
// Set exactly once at creation, from the authenticated caller's context.
const Field = "tenantId"

// Require fails fast when no tenant context is present. Stores call it
// before any read or write so an absent tenant can never silently default
// to "all tenants".
func Require(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return apperr.ErrMissingTenant
	}
	return nil
}

// Filter merges a caller-provided filter with the tenant clause. The input
// map is not mutated; any tenantId the caller supplied is discarded.
func Filter(callerFilter bson.M, tenantID string) bson.M {
	scoped := make(bson.M, len(callerFilter)+1)
	for k, v := range callerFilter {
		scoped[k] = v
	}
	scoped[Field] = tenantID
	return scoped
}

// ByID scopes a single-document filter.
func ByID(id primitive.ObjectID, tenantID string) bson.M {
	return bson.M{"_id": id, Field: tenantID}
}

// Match builds a scoped aggregation $match stage.
func Match(callerFilter bson.M, tenantID string) bson.M {
	return bson.M{"$match": Filter(callerFilter, tenantID)}
}

// Lookup builds a $lookup whose sub-pipeline matches both the join
// condition and the tenant clause. A lookup scoped only at the outer stage
// would still read foreign-tenant documents from the joined collection.
func Lookup(from, localField, foreignField, as, tenantID string) bson.M {
	return bson.M{"$lookup": bson.M{
		"from": from,
		"let":  bson.M{"local": "$" + localField},
		"pipeline": []bson.M{
			{"$match": bson.M{
				Field: tenantID,
				"$expr": bson.M{
					"$eq": []interface{}{"$" + foreignField, "$$local"},
				},
			}},
		},
		"as": as,
	}}
}

// LookupIn is the array-membership variant of Lookup, for local fields that
// hold id arrays (memberIds, orchestraIds).
func LookupIn(from, localField, foreignField, as, tenantID string) bson.M {
	return bson.M{"$lookup": bson.M{
		"from": from,
		"let":  bson.M{"local": "$" + localField},
		"pipeline": []bson.M{
			{"$match": bson.M{
				Field: tenantID,
				"$expr": bson.M{
					"$in": []interface{}{"$" + foreignField, "$$local"},
				},
			}},
		},
		"as": as,
	}}
}
