package models

import "time"

// InstanceStatus enables or disables a paid-enrolment offering.
type InstanceStatus string

const (
	InstanceEnabled  InstanceStatus = "ENABLED"
	InstanceDisabled InstanceStatus = "DISABLED"
)

// ExpiredAction is the policy applied when a user enrolment's end time passes.
type ExpiredAction string

const (
	ExpiredActionKeep    ExpiredAction = "KEEP"
	ExpiredActionSuspend ExpiredAction = "SUSPEND"
	ExpiredActionUnenrol ExpiredAction = "UNENROL"
)

// ExpiryNotify selects who is warned ahead of a hard expiry.
type ExpiryNotify string

const (
	ExpiryNotifyNone     ExpiryNotify = "NONE"
	ExpiryNotifyEnroller ExpiryNotify = "ENROLLER"
	ExpiryNotifyAll      ExpiryNotify = "ALL"
)

// EnrolInstance is one configured paid-enrolment offering attached to a course.
// Cost, currency and role fall back to plugin-wide defaults when unset.
type EnrolInstance struct {
	ID              string         `db:"id" json:"id"`
	CourseID        string         `db:"course_id" json:"course_id"`
	Name            string         `db:"name" json:"name"`
	Status          InstanceStatus `db:"status" json:"status"`
	Cost            float64        `db:"cost" json:"cost"`
	Currency        string         `db:"currency" json:"currency"`
	RoleID          string         `db:"role_id" json:"role_id"`
	EnrolPeriod     int64          `db:"enrol_period" json:"enrol_period"`
	EnrolStartDate  int64          `db:"enrol_start_date" json:"enrol_start_date"`
	EnrolEndDate    int64          `db:"enrol_end_date" json:"enrol_end_date"`
	LongTimeNoSee   int64          `db:"long_time_no_see" json:"long_time_no_see"`
	MaxEnrolled     int            `db:"max_enrolled" json:"max_enrolled"`
	ExpiryNotify    ExpiryNotify   `db:"expiry_notify" json:"expiry_notify"`
	ExpiryThreshold int64          `db:"expiry_threshold" json:"expiry_threshold"`
	ExpiredAction   ExpiredAction  `db:"expired_action" json:"expired_action"`
	WelcomeMail     bool           `db:"welcome_mail" json:"welcome_mail"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// WithinWindow reports whether now falls inside the configured enrolment
// window. A zero bound is unbounded on that side.
func (i *EnrolInstance) WithinWindow(now int64) bool {
	if i.EnrolStartDate != 0 && i.EnrolStartDate > now {
		return false
	}
	if i.EnrolEndDate != 0 && i.EnrolEndDate < now {
		return false
	}
	return true
}
