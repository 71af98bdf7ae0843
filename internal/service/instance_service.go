package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrol-pay-api/internal/models"
	appErrors "github.com/noah-isme/enrol-pay-api/pkg/errors"
)

const instanceCacheKeyPrefix = "enrol:instance:"

type instanceStore interface {
	FindByID(ctx context.Context, id string) (*models.EnrolInstance, error)
	Update(ctx context.Context, instance *models.EnrolInstance) error
	CountActiveEnrolments(ctx context.Context, instanceID string) (int, error)
}

type instanceCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// UpdateInstanceRequest carries a configuration edit. Cost arrives as the raw
// form string so a bad value can be reported as a validation problem instead
// of being coerced to zero upstream.
type UpdateInstanceRequest struct {
	ID              string                `json:"id" validate:"required"`
	Name            string                `json:"name"`
	Status          models.InstanceStatus `json:"status" validate:"omitempty,oneof=ENABLED DISABLED"`
	Cost            string                `json:"cost"`
	Currency        string                `json:"currency" validate:"omitempty,len=3"`
	RoleID          string                `json:"role_id"`
	EnrolPeriod     int64                 `json:"enrol_period" validate:"min=0"`
	EnrolStartDate  int64                 `json:"enrol_start_date" validate:"min=0"`
	EnrolEndDate    int64                 `json:"enrol_end_date" validate:"min=0"`
	LongTimeNoSee   int64                 `json:"long_time_no_see" validate:"min=0"`
	MaxEnrolled     int                   `json:"max_enrolled" validate:"min=0"`
	ExpiryNotify    models.ExpiryNotify   `json:"expiry_notify" validate:"omitempty,oneof=NONE ENROLLER ALL"`
	ExpiryThreshold int64                 `json:"expiry_threshold" validate:"min=0"`
	ExpiredAction   models.ExpiredAction  `json:"expired_action" validate:"omitempty,oneof=KEEP SUSPEND UNENROL"`
	WelcomeMail     bool                  `json:"welcome_mail"`
}

// InstanceService serves enrol instance configuration with a Redis
// read-through cache, and validates edits before persisting them.
type InstanceService struct {
	repo      instanceStore
	cache     instanceCache
	cacheTTL  time.Duration
	useCache  bool
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstanceService constructs InstanceService.
func NewInstanceService(repo instanceStore, cache instanceCache, cacheTTL time.Duration, useCache bool,
	validate *validator.Validate, logger *zap.Logger) *InstanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstanceService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		useCache:  useCache,
		validator: validate,
		logger:    logger,
	}
}

// FindByID returns the instance, from cache when possible. Cache failures are
// logged and fall through to the database.
func (s *InstanceService) FindByID(ctx context.Context, id string) (*models.EnrolInstance, error) {
	key := instanceCacheKeyPrefix + id
	if s.useCache && s.cache != nil {
		var cached models.EnrolInstance
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if err != appErrors.ErrCacheMiss {
			s.logger.Warn("instance cache read failed", zap.String("instance_id", id), zap.Error(err))
		}
	}

	instance, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.useCache && s.cache != nil {
		if err := s.cache.Set(ctx, key, instance, s.cacheTTL); err != nil {
			s.logger.Warn("instance cache write failed", zap.String("instance_id", id), zap.Error(err))
		}
	}
	return instance, nil
}

// CountActiveEnrolments is a pass-through; counts are never cached because
// the max-enrolled check needs a current value.
func (s *InstanceService) CountActiveEnrolments(ctx context.Context, instanceID string) (int, error) {
	return s.repo.CountActiveEnrolments(ctx, instanceID)
}

// UpdateConfig validates and persists an instance edit, then drops the
// cached copy so the next purchase sees the new configuration.
func (s *InstanceService) UpdateConfig(ctx context.Context, req UpdateInstanceRequest) (*models.EnrolInstance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instance configuration")
	}

	cost, err := parseCost(req.Cost)
	if err != nil {
		return nil, err
	}
	if req.EnrolStartDate != 0 && req.EnrolEndDate != 0 && req.EnrolEndDate < req.EnrolStartDate {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrolment end date cannot be earlier than the start date")
	}

	instance, err := s.repo.FindByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	instance.Name = req.Name
	if req.Status != "" {
		instance.Status = req.Status
	}
	instance.Cost = cost
	instance.Currency = strings.ToUpper(req.Currency)
	instance.RoleID = req.RoleID
	instance.EnrolPeriod = req.EnrolPeriod
	instance.EnrolStartDate = req.EnrolStartDate
	instance.EnrolEndDate = req.EnrolEndDate
	instance.LongTimeNoSee = req.LongTimeNoSee
	instance.MaxEnrolled = req.MaxEnrolled
	if req.ExpiryNotify != "" {
		instance.ExpiryNotify = req.ExpiryNotify
	}
	instance.ExpiryThreshold = req.ExpiryThreshold
	if req.ExpiredAction != "" {
		instance.ExpiredAction = req.ExpiredAction
	}
	instance.WelcomeMail = req.WelcomeMail

	if err := s.repo.Update(ctx, instance); err != nil {
		return nil, err
	}

	if s.useCache && s.cache != nil {
		if err := s.cache.Delete(ctx, instanceCacheKeyPrefix+instance.ID); err != nil {
			s.logger.Warn("instance cache invalidation failed", zap.String("instance_id", instance.ID), zap.Error(err))
		}
	}
	return instance, nil
}

// parseCost accepts the raw cost string from the form. Empty means "use the
// plugin default"; anything else must parse as a non-negative amount.
func parseCost(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	cost, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "cost must be a number")
	}
	if cost < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "cost cannot be negative")
	}
	return cost, nil
}
