package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrol-pay-api/internal/models"
)

// SettingsRepository is the plugin-wide key/value settings store, plus the
// single receipt counter row. The counter lives in its own table so the
// increment can be a single atomic statement.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns a setting value, empty string when unset.
func (r *SettingsRepository) Get(ctx context.Context, name string) (string, error) {
	const query = `SELECT value FROM plugin_settings WHERE name = $1`
	var value string
	if err := r.db.GetContext(ctx, &value, query, name); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get setting %s: %w", name, err)
	}
	return value, nil
}

// Set upserts a setting value.
func (r *SettingsRepository) Set(ctx context.Context, name, value string) error {
	const query = `INSERT INTO plugin_settings (name, value) VALUES ($1, $2)
        ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`
	if _, err := r.db.ExecContext(ctx, query, name, value); err != nil {
		return fmt.Errorf("set setting %s: %w", name, err)
	}
	return nil
}

// NextReceiptNumber atomically claims the next receipt number. Concurrent
// settlements each get a distinct number with no gaps from the counter
// itself.
func (r *SettingsRepository) NextReceiptNumber(ctx context.Context) (int64, error) {
	const query = `UPDATE receipt_counter SET next_number = next_number + 1 WHERE id = 1 RETURNING next_number - 1`
	var number int64
	if err := r.db.GetContext(ctx, &number, query); err != nil {
		return 0, fmt.Errorf("claim receipt number: %w", err)
	}
	return number, nil
}

// LoadPluginConfig reads the full settings snapshot used by a purchase
// attempt or reconciliation run.
func (r *SettingsRepository) LoadPluginConfig(ctx context.Context) (*models.PluginConfig, error) {
	const query = `SELECT name, value FROM plugin_settings`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load plugin settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan plugin setting: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load plugin settings: %w", err)
	}

	cfg := &models.PluginConfig{
		Enabled:        values[models.SettingEnabled] == "1",
		APILoginID:     values[models.SettingAPILoginID],
		TransactionKey: values[models.SettingTransactionKey],
		AVSEnabled:     values[models.SettingAVSEnabled] == "1",
		MailStudents:   values[models.SettingMailStudents] == "1",
		DefaultRoleID:  values[models.SettingDefaultRoleID],
		ReceiptPrefix:  values[models.SettingReceiptPrefix],
		ReceiptAddress: values[models.SettingReceiptAddress],
		ReceiptFooter:  values[models.SettingReceiptFooter],
		WelcomeSubject: values[models.SettingWelcomeSubject],
		WelcomeBody:    values[models.SettingWelcomeBody],
		WelcomeReplyTo: values[models.SettingWelcomeReplyTo],
		SiteName:       values[models.SettingSiteName],
	}
	if raw := values[models.SettingDefaultCost]; raw != "" {
		if cost, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.DefaultCost = cost
		}
	}
	if raw := values[models.SettingDefaultPeriod]; raw != "" {
		if period, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.DefaultPeriod = period
		}
	}
	return cfg, nil
}
