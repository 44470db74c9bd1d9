// internal/domain/models/schoolyear.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SchoolYear is one academic year of a tenant. At most one year per tenant
// has IsCurrent set at any time; the schoolyears store enforces this.
type SchoolYear struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	TenantID string             `bson:"tenantId" json:"tenant_id"`

	Name      string    `bson:"name" json:"name"`
	StartDate time.Time `bson:"startDate" json:"start_date"`
	EndDate   time.Time `bson:"endDate" json:"end_date"`

	IsCurrent bool `bson:"isCurrent" json:"is_current"`
	IsActive  bool `bson:"isActive" json:"is_active"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}
