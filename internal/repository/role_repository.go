package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RoleRepository mutates the host-owned role_assignments relation inside a
// course context. Assignments carry the instance id that granted them so
// expiry can remove exactly what this plugin handed out.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository constructs the repository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Assign grants a role in the course context on behalf of an instance.
func (r *RoleRepository) Assign(ctx context.Context, roleID, userID, courseID, instanceID string) error {
	const query = `INSERT INTO role_assignments (id, role_id, user_id, course_id, instance_id)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (role_id, user_id, course_id, instance_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), roleID, userID, courseID, instanceID); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// UnassignInstanceRoles removes only the role assignments this instance
// granted in the course context.
func (r *RoleRepository) UnassignInstanceRoles(ctx context.Context, userID, courseID, instanceID string) error {
	const query = `DELETE FROM role_assignments WHERE user_id = $1 AND course_id = $2 AND instance_id = $3`
	if _, err := r.db.ExecContext(ctx, query, userID, courseID, instanceID); err != nil {
		return fmt.Errorf("unassign instance roles: %w", err)
	}
	return nil
}

// UnassignAllRoles removes every role assignment the user holds in the
// course context, regardless of which component granted it.
func (r *RoleRepository) UnassignAllRoles(ctx context.Context, userID, courseID string) error {
	const query = `DELETE FROM role_assignments WHERE user_id = $1 AND course_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, courseID); err != nil {
		return fmt.Errorf("unassign all roles: %w", err)
	}
	return nil
}

// CountAssignments returns how many role assignments the user holds in the
// course context.
func (r *RoleRepository) CountAssignments(ctx context.Context, userID, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM role_assignments WHERE user_id = $1 AND course_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, courseID); err != nil {
		return 0, fmt.Errorf("count role assignments: %w", err)
	}
	return count, nil
}
