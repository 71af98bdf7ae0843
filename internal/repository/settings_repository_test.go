package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrol-pay-api/internal/models"
)

func TestSettingsRepositoryGetMissingReturnsEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	mock.ExpectQuery("SELECT value FROM plugin_settings").
		WithArgs("receipt_prefix").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	value, err := repo.Get(context.Background(), "receipt_prefix")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestSettingsRepositoryNextReceiptNumber(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	mock.ExpectQuery("UPDATE receipt_counter").
		WillReturnRows(sqlmock.NewRows([]string{"next_number"}).AddRow(42))

	number, err := repo.NextReceiptNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), number)
}

func TestSettingsRepositoryLoadPluginConfig(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	rows := sqlmock.NewRows([]string{"name", "value"}).
		AddRow(models.SettingEnabled, "1").
		AddRow(models.SettingAPILoginID, "login").
		AddRow(models.SettingTransactionKey, "key").
		AddRow(models.SettingAVSEnabled, "0").
		AddRow(models.SettingMailStudents, "1").
		AddRow(models.SettingDefaultCost, "19.95").
		AddRow(models.SettingDefaultPeriod, "2592000").
		AddRow(models.SettingReceiptPrefix, "INV")
	mock.ExpectQuery("SELECT name, value FROM plugin_settings").WillReturnRows(rows)

	cfg, err := repo.LoadPluginConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.MailStudents)
	assert.False(t, cfg.AVSEnabled)
	assert.Equal(t, "login", cfg.APILoginID)
	assert.Equal(t, 19.95, cfg.DefaultCost)
	assert.Equal(t, int64(2592000), cfg.DefaultPeriod)
	assert.Equal(t, "INV", cfg.ReceiptPrefix)
}

func TestSettingsRepositoryLoadPluginConfigIgnoresBadNumbers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	rows := sqlmock.NewRows([]string{"name", "value"}).
		AddRow(models.SettingEnabled, "0").
		AddRow(models.SettingDefaultCost, "not-a-number")
	mock.ExpectQuery("SELECT name, value FROM plugin_settings").WillReturnRows(rows)

	cfg, err := repo.LoadPluginConfig(context.Background())
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Zero(t, cfg.DefaultCost)
}
