// internal/domain/models/student.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StudentEnrollments holds the denormalized mirrors of relationships whose
// authoritative side lives on other collections.
type StudentEnrollments struct {
	// OrchestraIDs mirrors Orchestra.MemberIDs. Written only by the roster
	// store (second, after the orchestra side) and by cascade cleanup.
	OrchestraIDs []primitive.ObjectID `bson:"orchestraIds" json:"orchestra_ids"`
}

// Student is a pupil enrolled with a conservatory tenant.
type Student struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	TenantID string             `bson:"tenantId" json:"tenant_id"`

	FullName   string `bson:"fullName" json:"full_name"`
	FullNameCI string `bson:"fullName_ci" json:"full_name_ci"`
	Instrument string `bson:"instrument,omitempty" json:"instrument,omitempty"`

	Enrollments StudentEnrollments `bson:"enrollments" json:"enrollments"`

	IsActive bool `bson:"isActive" json:"is_active"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// EnrolledIn reports whether the student's mirror lists orchestraID.
func (s Student) EnrolledIn(orchestraID primitive.ObjectID) bool {
	for _, id := range s.Enrollments.OrchestraIDs {
		if id == orchestraID {
			return true
		}
	}
	return false
}
