package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrol-pay-api/internal/models"
)

// EnrolmentRepository reads and mutates the host-owned user_enrolments
// relation and the last-access records the reconciliation sweeps key on.
type EnrolmentRepository struct {
	db *sqlx.DB
}

// NewEnrolmentRepository constructs the repository.
func NewEnrolmentRepository(db *sqlx.DB) *EnrolmentRepository {
	return &EnrolmentRepository{db: db}
}

// Exists checks whether the user holds any enrolment under the instance,
// active or suspended.
func (r *EnrolmentRepository) Exists(ctx context.Context, instanceID, userID string) (bool, error) {
	const query = `SELECT 1 FROM user_enrolments WHERE instance_id = $1 AND user_id = $2 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, instanceID, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrolment: %w", err)
	}
	return true, nil
}

// Grant creates or re-activates the enrolment for a settled purchase.
func (r *EnrolmentRepository) Grant(ctx context.Context, enrolment *models.UserEnrolment) error {
	if enrolment.ID == "" {
		enrolment.ID = uuid.NewString()
	}
	if enrolment.Status == "" {
		enrolment.Status = models.EnrolmentActive
	}
	const query = `INSERT INTO user_enrolments (id, instance_id, user_id, status, time_start, time_end)
        VALUES (:id, :instance_id, :user_id, :status, :time_start, :time_end)
        ON CONFLICT (instance_id, user_id)
        DO UPDATE SET status = EXCLUDED.status, time_start = EXCLUDED.time_start, time_end = EXCLUDED.time_end`
	if _, err := r.db.NamedExecContext(ctx, query, enrolment); err != nil {
		return fmt.Errorf("grant enrolment: %w", err)
	}
	return nil
}

// Revoke removes the enrolment entirely. Revoking a user who is not enrolled
// is a no-op, not an error.
func (r *EnrolmentRepository) Revoke(ctx context.Context, instanceID, userID string) error {
	const query = `DELETE FROM user_enrolments WHERE instance_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, instanceID, userID); err != nil {
		return fmt.Errorf("revoke enrolment: %w", err)
	}
	return nil
}

// SetStatus marks the enrolment suspended or active without removing it.
func (r *EnrolmentRepository) SetStatus(ctx context.Context, instanceID, userID string, status models.EnrolmentStatus) error {
	const query = `UPDATE user_enrolments SET status = $3 WHERE instance_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, instanceID, userID, status); err != nil {
		return fmt.Errorf("set enrolment status: %w", err)
	}
	return nil
}

// ForEachInactiveSite streams active enrolments whose instance enforces an
// inactivity threshold, joined with the user's site-wide last access (zero
// when the user never logged in). The threshold comparison itself happens in
// the caller against cached instance config.
func (r *EnrolmentRepository) ForEachInactiveSite(ctx context.Context, courseID string, fn func(models.ExpiryCandidate) error) error {
	query := `SELECT ue.id AS enrolment_id, ue.instance_id, ue.user_id, i.course_id, ue.time_end,
        COALESCE(u.last_access, 0) AS last_access
        FROM user_enrolments ue
        JOIN enrol_instances i ON i.id = ue.instance_id
        LEFT JOIN users u ON u.id = ue.user_id
        WHERE ue.status = $1 AND i.long_time_no_see > 0`
	args := []interface{}{models.EnrolmentActive}
	if courseID != "" {
		query += " AND i.course_id = $2"
		args = append(args, courseID)
	}
	return r.forEachCandidate(ctx, query, args, fn)
}

// ForEachInactiveCourse streams the same candidates keyed on the per-course
// last-access record instead of site-wide access.
func (r *EnrolmentRepository) ForEachInactiveCourse(ctx context.Context, courseID string, fn func(models.ExpiryCandidate) error) error {
	query := `SELECT ue.id AS enrolment_id, ue.instance_id, ue.user_id, i.course_id, ue.time_end,
        COALESCE(ul.time_access, 0) AS last_access
        FROM user_enrolments ue
        JOIN enrol_instances i ON i.id = ue.instance_id
        LEFT JOIN user_lastaccess ul ON ul.user_id = ue.user_id AND ul.course_id = i.course_id
        WHERE ue.status = $1 AND i.long_time_no_see > 0`
	args := []interface{}{models.EnrolmentActive}
	if courseID != "" {
		query += " AND i.course_id = $2"
		args = append(args, courseID)
	}
	return r.forEachCandidate(ctx, query, args, fn)
}

// ForEachExpired streams active enrolments whose nonzero end time lies in
// the past.
func (r *EnrolmentRepository) ForEachExpired(ctx context.Context, courseID string, now int64, fn func(models.ExpiryCandidate) error) error {
	query := `SELECT ue.id AS enrolment_id, ue.instance_id, ue.user_id, i.course_id, ue.time_end,
        0 AS last_access
        FROM user_enrolments ue
        JOIN enrol_instances i ON i.id = ue.instance_id
        WHERE ue.status = $1 AND ue.time_end <> 0 AND ue.time_end < $2`
	args := []interface{}{models.EnrolmentActive, now}
	if courseID != "" {
		query += " AND i.course_id = $3"
		args = append(args, courseID)
	}
	return r.forEachCandidate(ctx, query, args, fn)
}

func (r *EnrolmentRepository) forEachCandidate(ctx context.Context, query string, args []interface{}, fn func(models.ExpiryCandidate) error) error {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("stream expiry candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var candidate models.ExpiryCandidate
		if err := rows.StructScan(&candidate); err != nil {
			return fmt.Errorf("scan expiry candidate: %w", err)
		}
		if err := fn(candidate); err != nil {
			return err
		}
	}
	return rows.Err()
}
