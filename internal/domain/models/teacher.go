// internal/domain/models/teacher.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TeacherConducting mirrors Orchestra.ConductorID from the teacher's side.
type TeacherConducting struct {
	OrchestraIDs []primitive.ObjectID `bson:"orchestraIds" json:"orchestra_ids"`
}

// Teacher is a staff member of a conservatory tenant. A teacher may conduct
// any number of orchestras; the conducting list is a mirror kept in sync by
// the roster store and cascade cleanup.
type Teacher struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	TenantID string             `bson:"tenantId" json:"tenant_id"`

	FullName   string `bson:"fullName" json:"full_name"`
	FullNameCI string `bson:"fullName_ci" json:"full_name_ci"`

	Conducting TeacherConducting `bson:"conducting" json:"conducting"`

	IsActive bool `bson:"isActive" json:"is_active"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// Conducts reports whether the teacher's mirror lists orchestraID.
func (t Teacher) Conducts(orchestraID primitive.ObjectID) bool {
	for _, id := range t.Conducting.OrchestraIDs {
		if id == orchestraID {
			return true
		}
	}
	return false
}
