package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/enrol-pay-api/pkg/config"
)

// AIM wire format constants.
const (
	aimDelimiter = "|"
	aimEncap     = `"`
	aimVersion   = "3.1"

	responseApproved = "1"
	responseDeclined = "2"
)

// AIMClient talks to an Authorize.Net-compatible AIM endpoint over form
// POSTs. Credentials are injected per call so rotated settings take effect
// without restarting.
type AIMClient struct {
	endpoint   string
	httpClient *http.Client
	login      string
	tranKey    string
}

// NewAIMClient constructs a gateway client from deployment config and the
// current API credentials.
func NewAIMClient(cfg config.GatewayConfig, login, tranKey string) *AIMClient {
	endpoint := cfg.Endpoint
	if cfg.Sandbox {
		endpoint = cfg.SandboxEndpoint
	}
	return &AIMClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		login:      login,
		tranKey:    tranKey,
	}
}

// AuthorizeAndCapture performs a single AUTH_CAPTURE transaction.
func (c *AIMClient) AuthorizeAndCapture(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	form := url.Values{}
	form.Set("x_login", c.login)
	form.Set("x_tran_key", c.tranKey)
	form.Set("x_version", aimVersion)
	form.Set("x_delim_data", "TRUE")
	form.Set("x_delim_char", aimDelimiter)
	form.Set("x_encap_char", aimEncap)
	form.Set("x_relay_response", "FALSE")
	form.Set("x_method", "CC")
	form.Set("x_type", "AUTH_CAPTURE")

	form.Set("x_first_name", req.FirstName)
	form.Set("x_last_name", req.LastName)
	form.Set("x_address", req.Address)
	form.Set("x_city", req.City)
	form.Set("x_state", req.State)
	form.Set("x_zip", req.Zip)
	form.Set("x_country", req.Country)
	form.Set("x_email", req.Email)

	form.Set("x_card_num", req.CardNumber)
	form.Set("x_card_code", req.CardCode)
	form.Set("x_exp_date", fmt.Sprintf("%02d%02d", req.ExpiryMonth, req.ExpiryYear%100))

	form.Set("x_amount", fmt.Sprintf("%.2f", req.Amount))
	form.Set("x_currency_code", req.Currency)
	form.Set("x_description", req.Description)
	form.Set("x_cust_id", req.CustomerID)
	form.Set("x_customer_ip", req.CustomerIP)
	form.Set("x_invoice_num", req.InvoiceNumber)
	if req.EmailReceipt {
		form.Set("x_email_customer", "TRUE")
	} else {
		form.Set("x_email_customer", "FALSE")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	return parseAIMResponse(string(body))
}

// parseAIMResponse decodes the delimited response line. Field 1 is the
// response code, field 4 the human-readable reason, field 7 the transaction
// id.
func parseAIMResponse(raw string) (*ChargeResult, error) {
	raw = strings.TrimSpace(raw)
	fields := strings.Split(raw, aimDelimiter)
	if len(fields) < 7 {
		return nil, fmt.Errorf("malformed gateway response: %d fields", len(fields))
	}
	for i, field := range fields {
		fields[i] = strings.Trim(field, aimEncap)
	}

	result := &ChargeResult{
		TransactionID: fields[6],
		Reason:        fields[3],
	}
	switch fields[0] {
	case responseApproved:
		result.Approved = true
	case responseDeclined:
		result.Approved = false
	default:
		result.Approved = false
	}
	return result, nil
}
