// internal/domain/models/orchestra.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BSON field names across these models (tenantId, memberIds,
// enrollments.orchestraIds, conducting.orchestraIds, isCurrent, isActive)
// are the on-disk contract with existing conservatory data. Do not rename
// them without a data migration.

// Orchestra is an ensemble inside a conservatory tenant.
//
// MemberIDs is the authoritative side of orchestra<->student membership.
// Student.Enrollments.OrchestraIDs mirrors it and is maintained only by the
// roster store, never by a generic document update.
type Orchestra struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	TenantID string             `bson:"tenantId" json:"tenant_id"`

	Name   string `bson:"name" json:"name"`
	NameCI string `bson:"name_ci" json:"name_ci"`

	// JoinCode is an opaque invite token handed to students out of band.
	JoinCode string `bson:"joinCode,omitempty" json:"join_code,omitempty"`

	ConductorID  primitive.ObjectID   `bson:"conductorId,omitempty" json:"conductor_id,omitempty"`
	MemberIDs    []primitive.ObjectID `bson:"memberIds" json:"member_ids"`
	RehearsalIDs []primitive.ObjectID `bson:"rehearsalIds" json:"rehearsal_ids"`

	IsActive bool `bson:"isActive" json:"is_active"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// HasMember reports whether studentID is on the authoritative roster.
func (o Orchestra) HasMember(studentID primitive.ObjectID) bool {
	for _, id := range o.MemberIDs {
		if id == studentID {
			return true
		}
	}
	return false
}
