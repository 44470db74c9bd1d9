// internal/domain/models/rehearsal.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attendance records which roster members were present or absent at one
// rehearsal. A student id appears in at most one of the two lists.
type Attendance struct {
	Present []primitive.ObjectID `bson:"present" json:"present"`
	Absent  []primitive.ObjectID `bson:"absent" json:"absent"`
}

// Rehearsal is a single dated session of an orchestra. GroupID references
// the orchestra document; the orchestra's rehearsalIds array is the
// reverse-direction bookkeeping.
type Rehearsal struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	TenantID string             `bson:"tenantId" json:"tenant_id"`

	GroupID      primitive.ObjectID `bson:"groupId" json:"group_id"`
	SchoolYearID primitive.ObjectID `bson:"schoolYearId,omitempty" json:"school_year_id,omitempty"`

	Date      time.Time `bson:"date" json:"date"`
	Location  string    `bson:"location,omitempty" json:"location,omitempty"`
	StartHour int       `bson:"startHour,omitempty" json:"start_hour,omitempty"`
	EndHour   int       `bson:"endHour,omitempty" json:"end_hour,omitempty"`

	Attendance Attendance `bson:"attendance" json:"attendance"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// ActivityAttendance is one per-student attendance event. These documents
// are the audit trail behind Rehearsal.Attendance and are cleaned up
// together with their rehearsal.
type ActivityAttendance struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	TenantID string             `bson:"tenantId" json:"tenant_id"`

	RehearsalID primitive.ObjectID `bson:"rehearsalId" json:"rehearsal_id"`
	StudentID   primitive.ObjectID `bson:"studentId" json:"student_id"`

	Status     string             `bson:"status" json:"status"` // "present" | "absent"
	RecordedAt time.Time          `bson:"recordedAt" json:"recorded_at"`
	RecordedBy primitive.ObjectID `bson:"recordedBy,omitempty" json:"recorded_by,omitempty"`
}
