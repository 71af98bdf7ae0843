package models

// EnrolmentStatus is the host-owned state of a user enrolment under one
// instance. The reconciler only ever moves active enrolments towards
// suspended or removal, never back.
type EnrolmentStatus string

const (
	EnrolmentActive    EnrolmentStatus = "ACTIVE"
	EnrolmentSuspended EnrolmentStatus = "SUSPENDED"
)

// UserEnrolment links a user to an enrol instance. TimeEnd zero means the
// enrolment never expires.
type UserEnrolment struct {
	ID         string          `db:"id" json:"id"`
	InstanceID string          `db:"instance_id" json:"instance_id"`
	UserID     string          `db:"user_id" json:"user_id"`
	Status     EnrolmentStatus `db:"status" json:"status"`
	TimeStart  int64           `db:"time_start" json:"time_start"`
	TimeEnd    int64           `db:"time_end" json:"time_end"`
}

// ExpiryCandidate is one streamed row from a reconciliation sweep query:
// the enrolment joined with the fields the policy decision needs.
type ExpiryCandidate struct {
	EnrolmentID string `db:"enrolment_id"`
	InstanceID  string `db:"instance_id"`
	UserID      string `db:"user_id"`
	CourseID    string `db:"course_id"`
	TimeEnd     int64  `db:"time_end"`
	LastAccess  int64  `db:"last_access"`
}
