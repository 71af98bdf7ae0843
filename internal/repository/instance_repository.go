package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrol-pay-api/internal/models"
)

// InstanceRepository handles persistence of enrol instance configuration.
type InstanceRepository struct {
	db *sqlx.DB
}

// NewInstanceRepository constructs the repository.
func NewInstanceRepository(db *sqlx.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

const instanceColumns = `id, course_id, name, status, cost, currency, role_id, enrol_period,
        enrol_start_date, enrol_end_date, long_time_no_see, max_enrolled, expiry_notify,
        expiry_threshold, expired_action, welcome_mail, created_at, updated_at`

// FindByID returns an instance by its ID.
func (r *InstanceRepository) FindByID(ctx context.Context, id string) (*models.EnrolInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrol_instances WHERE id = $1`, instanceColumns)
	var instance models.EnrolInstance
	if err := r.db.GetContext(ctx, &instance, query, id); err != nil {
		return nil, err
	}
	return &instance, nil
}

// Update persists configuration edits on an existing instance.
func (r *InstanceRepository) Update(ctx context.Context, instance *models.EnrolInstance) error {
	instance.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrol_instances SET name = :name, status = :status, cost = :cost, currency = :currency,
        role_id = :role_id, enrol_period = :enrol_period, enrol_start_date = :enrol_start_date,
        enrol_end_date = :enrol_end_date, long_time_no_see = :long_time_no_see, max_enrolled = :max_enrolled,
        expiry_notify = :expiry_notify, expiry_threshold = :expiry_threshold, expired_action = :expired_action,
        welcome_mail = :welcome_mail, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, instance); err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	return nil
}

// CountActiveEnrolments returns how many users currently hold an active
// enrolment under the instance, for the max-enrolled cap check.
func (r *InstanceRepository) CountActiveEnrolments(ctx context.Context, instanceID string) (int, error) {
	const query = `SELECT COUNT(*) FROM user_enrolments WHERE instance_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, instanceID, models.EnrolmentActive); err != nil {
		return 0, fmt.Errorf("count active enrolments: %w", err)
	}
	return count, nil
}
