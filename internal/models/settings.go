package models

// Setting keys in the plugin settings store.
const (
	SettingEnabled        = "enabled"
	SettingAPILoginID     = "api_login_id"
	SettingTransactionKey = "transaction_key"
	SettingAVSEnabled     = "avs_enabled"
	SettingMailStudents   = "mail_students"
	SettingDefaultCost    = "default_cost"
	SettingDefaultRoleID  = "default_role_id"
	SettingDefaultPeriod  = "default_enrol_period"
	SettingReceiptPrefix  = "receipt_prefix"
	SettingReceiptAddress = "receipt_address"
	SettingReceiptFooter  = "receipt_footer"
	SettingWelcomeSubject = "welcome_subject"
	SettingWelcomeBody    = "welcome_body"
	SettingWelcomeReplyTo = "welcome_reply_to"
	SettingSiteName       = "site_name"
)

// PluginConfig is a point-in-time snapshot of the plugin-wide settings,
// loaded once per purchase attempt and passed explicitly instead of being
// read as ambient state. The receipt counter is deliberately absent: it is
// only ever touched through the settings store's atomic increment.
type PluginConfig struct {
	Enabled        bool
	APILoginID     string
	TransactionKey string
	AVSEnabled     bool
	MailStudents   bool
	DefaultCost    float64
	DefaultRoleID  string
	DefaultPeriod  int64
	ReceiptPrefix  string
	ReceiptAddress string
	ReceiptFooter  string
	WelcomeSubject string
	WelcomeBody    string
	WelcomeReplyTo string
	SiteName       string
}

// EffectiveCost resolves the instance cost override against the plugin
// default. Comparison against the free threshold happens in the purchase
// service, not here.
func (c *PluginConfig) EffectiveCost(instance *EnrolInstance) float64 {
	if instance.Cost > 0 {
		return instance.Cost
	}
	return c.DefaultCost
}
