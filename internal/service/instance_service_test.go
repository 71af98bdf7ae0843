package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrol-pay-api/internal/models"
	appErrors "github.com/noah-isme/enrol-pay-api/pkg/errors"
)

type instanceStoreStub struct {
	instance *models.EnrolInstance
	findErr  error
	updated  *models.EnrolInstance
	lookups  int
}

func (s *instanceStoreStub) FindByID(ctx context.Context, id string) (*models.EnrolInstance, error) {
	s.lookups++
	if s.findErr != nil {
		return nil, s.findErr
	}
	copied := *s.instance
	return &copied, nil
}

func (s *instanceStoreStub) Update(ctx context.Context, instance *models.EnrolInstance) error {
	s.updated = instance
	return nil
}

func (s *instanceStoreStub) CountActiveEnrolments(ctx context.Context, instanceID string) (int, error) {
	return 0, nil
}

type cacheStub struct {
	store   map[string][]byte
	sets    []string
	deletes []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{store: map[string][]byte{}}
}

func (s *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if _, ok := s.store[key]; !ok {
		return appErrors.ErrCacheMiss
	}
	return nil
}

func (s *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.store[key] = []byte("cached")
	s.sets = append(s.sets, key)
	return nil
}

func (s *cacheStub) Delete(ctx context.Context, key string) error {
	delete(s.store, key)
	s.deletes = append(s.deletes, key)
	return nil
}

func validInstanceUpdate() UpdateInstanceRequest {
	return UpdateInstanceRequest{
		ID:       "inst-1",
		Name:     "Paid access",
		Status:   models.InstanceEnabled,
		Cost:     "25.00",
		Currency: "usd",
	}
}

func newInstanceFixture() (*instanceStoreStub, *cacheStub, *InstanceService) {
	store := &instanceStoreStub{instance: &models.EnrolInstance{ID: "inst-1", CourseID: "course-1", Status: models.InstanceEnabled}}
	cache := newCacheStub()
	svc := NewInstanceService(store, cache, time.Minute, true, validator.New(), nil)
	return store, cache, svc
}

func TestInstanceUpdateRejectsNonNumericCost(t *testing.T) {
	_, _, svc := newInstanceFixture()
	req := validInstanceUpdate()
	req.Cost = "twenty"
	_, err := svc.UpdateConfig(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestInstanceUpdateRejectsNegativeCost(t *testing.T) {
	_, _, svc := newInstanceFixture()
	req := validInstanceUpdate()
	req.Cost = "-5"
	_, err := svc.UpdateConfig(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestInstanceUpdateRejectsEndBeforeStart(t *testing.T) {
	_, _, svc := newInstanceFixture()
	req := validInstanceUpdate()
	req.EnrolStartDate = time.Now().Unix()
	req.EnrolEndDate = time.Now().Add(-time.Hour).Unix()
	_, err := svc.UpdateConfig(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestInstanceUpdatePersistsAndInvalidatesCache(t *testing.T) {
	store, cache, svc := newInstanceFixture()
	cache.store[instanceCacheKeyPrefix+"inst-1"] = []byte("stale")

	instance, err := svc.UpdateConfig(context.Background(), validInstanceUpdate())
	require.NoError(t, err)
	assert.Equal(t, 25.00, instance.Cost)
	assert.Equal(t, "USD", instance.Currency)
	require.NotNil(t, store.updated)
	assert.Equal(t, []string{instanceCacheKeyPrefix + "inst-1"}, cache.deletes)
}

func TestInstanceUpdateEmptyCostFallsBackToDefault(t *testing.T) {
	store, _, svc := newInstanceFixture()
	req := validInstanceUpdate()
	req.Cost = ""
	_, err := svc.UpdateConfig(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, store.updated.Cost)
}

func TestInstanceFindPopulatesCache(t *testing.T) {
	store, cache, svc := newInstanceFixture()

	_, err := svc.FindByID(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.lookups)
	assert.Equal(t, []string{instanceCacheKeyPrefix + "inst-1"}, cache.sets)

	_, err = svc.FindByID(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.lookups)
}
