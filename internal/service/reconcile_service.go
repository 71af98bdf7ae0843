package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrol-pay-api/internal/models"
)

// StatusCode is the reconciliation run verdict, also used as the process
// exit code of the standalone reconciler binary.
type StatusCode int

const (
	StatusOK       StatusCode = 0
	StatusError    StatusCode = 1
	StatusDisabled StatusCode = 2
)

// RunOptions narrows a reconciliation run. An empty CourseID sweeps every
// course; Verbose promotes per-enrolment trace lines to info level.
type RunOptions struct {
	CourseID string
	Verbose  bool
}

type expirySweeper interface {
	ForEachInactiveSite(ctx context.Context, courseID string, fn func(models.ExpiryCandidate) error) error
	ForEachInactiveCourse(ctx context.Context, courseID string, fn func(models.ExpiryCandidate) error) error
	ForEachExpired(ctx context.Context, courseID string, now int64, fn func(models.ExpiryCandidate) error) error
	Revoke(ctx context.Context, instanceID, userID string) error
	SetStatus(ctx context.Context, instanceID, userID string, status models.EnrolmentStatus) error
}

type roleRemover interface {
	UnassignInstanceRoles(ctx context.Context, userID, courseID, instanceID string) error
	UnassignAllRoles(ctx context.Context, userID, courseID string) error
	CountAssignments(ctx context.Context, userID, courseID string) (int, error)
}

type reconcileSettingsReader interface {
	LoadPluginConfig(ctx context.Context) (*models.PluginConfig, error)
}

type reconcileInstanceReader interface {
	FindByID(ctx context.Context, id string) (*models.EnrolInstance, error)
}

// ReconcileService sweeps enrolments past their inactivity thresholds or end
// times and applies each instance's expiry policy. Each enrolment is an
// independent unit of work: a failure is logged and counted, never aborts
// the run.
type ReconcileService struct {
	enrolments expirySweeper
	roles      roleRemover
	settings   reconcileSettingsReader
	instances  reconcileInstanceReader
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewReconcileService constructs ReconcileService.
func NewReconcileService(enrolments expirySweeper, roles roleRemover, settings reconcileSettingsReader,
	instances reconcileInstanceReader, metrics *MetricsService, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		enrolments: enrolments,
		roles:      roles,
		settings:   settings,
		instances:  instances,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

type reconcileRun struct {
	opts          RunOptions
	now           int64
	instances     map[string]*models.EnrolInstance
	actions       int
	failures      int
	sweepFailures int
}

// Run executes one full reconciliation pass: the site-inactivity sweep, the
// course-inactivity sweep, then the hard-expiry sweep.
func (s *ReconcileService) Run(ctx context.Context, opts RunOptions) (StatusCode, error) {
	cfg, err := s.settings.LoadPluginConfig(ctx)
	if err != nil {
		return StatusError, fmt.Errorf("load plugin settings: %w", err)
	}
	if !cfg.Enabled {
		s.logger.Info("reconciliation skipped, paid enrolment disabled")
		return StatusDisabled, nil
	}

	run := &reconcileRun{
		opts:      opts,
		now:       s.now().UTC().Unix(),
		instances: make(map[string]*models.EnrolInstance),
	}

	if err := s.enrolments.ForEachInactiveSite(ctx, opts.CourseID, func(c models.ExpiryCandidate) error {
		s.sweepInactive(ctx, run, c, "inactive_site")
		return nil
	}); err != nil {
		s.logger.Error("site-inactivity sweep failed", zap.Error(err))
		run.sweepFailures++
	}

	if err := s.enrolments.ForEachInactiveCourse(ctx, opts.CourseID, func(c models.ExpiryCandidate) error {
		s.sweepInactive(ctx, run, c, "inactive_course")
		return nil
	}); err != nil {
		s.logger.Error("course-inactivity sweep failed", zap.Error(err))
		run.sweepFailures++
	}

	if err := s.enrolments.ForEachExpired(ctx, opts.CourseID, run.now, func(c models.ExpiryCandidate) error {
		s.sweepExpired(ctx, run, c)
		return nil
	}); err != nil {
		s.logger.Error("hard-expiry sweep failed", zap.Error(err))
		run.sweepFailures++
	}

	s.logger.Info("reconciliation finished",
		zap.String("course_id", opts.CourseID),
		zap.Int("actions", run.actions),
		zap.Int("failures", run.failures))

	if run.sweepFailures > 0 {
		return StatusError, fmt.Errorf("%d sweeps failed", run.sweepFailures)
	}
	return StatusOK, nil
}

// sweepInactive unenrols one candidate whose last access is older than the
// instance inactivity threshold. A user with no access record at all counts
// as inactive since forever.
func (s *ReconcileService) sweepInactive(ctx context.Context, run *reconcileRun, c models.ExpiryCandidate, policy string) {
	instance, ok := s.instanceFor(ctx, run, c.InstanceID)
	if !ok {
		return
	}
	if instance.LongTimeNoSee <= 0 {
		return
	}
	inactiveFor := run.now - c.LastAccess
	if c.LastAccess != 0 && inactiveFor <= instance.LongTimeNoSee {
		return
	}

	s.trace(run.opts.Verbose, "unenrolling inactive user",
		zap.String("user_id", c.UserID),
		zap.String("course_id", c.CourseID),
		zap.String("policy", policy),
		zap.Int64("days_inactive", inactiveFor/86400))

	if s.unenrol(ctx, run, instance, c) {
		s.metrics.RecordReconcileAction(policy)
	}
}

// sweepExpired applies the instance expiry policy to one enrolment whose end
// time has passed.
func (s *ReconcileService) sweepExpired(ctx context.Context, run *reconcileRun, c models.ExpiryCandidate) {
	instance, ok := s.instanceFor(ctx, run, c.InstanceID)
	if !ok {
		return
	}

	action := instance.ExpiredAction
	if action == "" {
		action = models.ExpiredActionKeep
	}
	expiredFor := run.now - c.TimeEnd

	switch action {
	case models.ExpiredActionKeep:
		s.trace(run.opts.Verbose, "keeping expired enrolment",
			zap.String("user_id", c.UserID),
			zap.String("course_id", c.CourseID),
			zap.Int64("days_expired", expiredFor/86400))
		s.metrics.RecordReconcileAction("expiry_keep")

	case models.ExpiredActionSuspend:
		s.trace(run.opts.Verbose, "suspending expired enrolment",
			zap.String("user_id", c.UserID),
			zap.String("course_id", c.CourseID),
			zap.Int64("days_expired", expiredFor/86400))
		if s.suspend(ctx, run, instance, c) {
			s.metrics.RecordReconcileAction("expiry_suspend")
		}

	case models.ExpiredActionUnenrol:
		s.trace(run.opts.Verbose, "unenrolling expired user",
			zap.String("user_id", c.UserID),
			zap.String("course_id", c.CourseID),
			zap.Int64("days_expired", expiredFor/86400))
		if s.unenrol(ctx, run, instance, c) {
			s.metrics.RecordReconcileAction("expiry_unenrol")
		}
	}
}

func (s *ReconcileService) unenrol(ctx context.Context, run *reconcileRun, instance *models.EnrolInstance, c models.ExpiryCandidate) bool {
	if err := s.enrolments.Revoke(ctx, c.InstanceID, c.UserID); err != nil {
		s.logger.Error("unenrol failed", zap.String("user_id", c.UserID), zap.String("instance_id", c.InstanceID), zap.Error(err))
		run.failures++
		return false
	}
	if err := s.roles.UnassignInstanceRoles(ctx, c.UserID, instance.CourseID, instance.ID); err != nil {
		s.logger.Error("role cleanup failed", zap.String("user_id", c.UserID), zap.String("instance_id", c.InstanceID), zap.Error(err))
		run.failures++
		return false
	}
	run.actions++
	return true
}

// suspend strips roles before marking the enrolment suspended. The role
// count is re-read at action time rather than trusted from the sweep
// snapshot: a user whose only course role came from this instance loses
// everything, anyone else keeps what other components granted.
func (s *ReconcileService) suspend(ctx context.Context, run *reconcileRun, instance *models.EnrolInstance, c models.ExpiryCandidate) bool {
	count, err := s.roles.CountAssignments(ctx, c.UserID, instance.CourseID)
	if err != nil {
		s.logger.Error("role count failed", zap.String("user_id", c.UserID), zap.String("course_id", instance.CourseID), zap.Error(err))
		run.failures++
		return false
	}
	if count <= 1 {
		err = s.roles.UnassignAllRoles(ctx, c.UserID, instance.CourseID)
	} else {
		err = s.roles.UnassignInstanceRoles(ctx, c.UserID, instance.CourseID, instance.ID)
	}
	if err != nil {
		s.logger.Error("role cleanup failed", zap.String("user_id", c.UserID), zap.String("instance_id", c.InstanceID), zap.Error(err))
		run.failures++
		return false
	}
	if err := s.enrolments.SetStatus(ctx, c.InstanceID, c.UserID, models.EnrolmentSuspended); err != nil {
		s.logger.Error("suspend failed", zap.String("user_id", c.UserID), zap.String("instance_id", c.InstanceID), zap.Error(err))
		run.failures++
		return false
	}
	run.actions++
	return true
}

// instanceFor resolves the candidate's instance through the per-run cache.
func (s *ReconcileService) instanceFor(ctx context.Context, run *reconcileRun, instanceID string) (*models.EnrolInstance, bool) {
	if instance, ok := run.instances[instanceID]; ok {
		return instance, instance != nil
	}
	instance, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		s.logger.Error("instance lookup failed", zap.String("instance_id", instanceID), zap.Error(err))
		run.instances[instanceID] = nil
		run.failures++
		return nil, false
	}
	run.instances[instanceID] = instance
	return instance, true
}

func (s *ReconcileService) trace(verbose bool, msg string, fields ...zap.Field) {
	if verbose {
		s.logger.Info(msg, fields...)
		return
	}
	s.logger.Debug(msg, fields...)
}
