package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrol-pay-api/pkg/config"
)

func chargeRequest() ChargeRequest {
	return ChargeRequest{
		FirstName:     "Sam",
		LastName:      "Student",
		Address:       "1 Main St",
		City:          "Springfield",
		Zip:           "12345",
		Country:       "US",
		Email:         "student@example.com",
		CardNumber:    "4111111111111111",
		CardCode:      "123",
		ExpiryMonth:   3,
		ExpiryYear:    2030,
		Amount:        25,
		Currency:      "USD",
		CustomerID:    "user-1",
		InvoiceNumber: "order-1",
	}
}

func TestAIMClientApproved(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Write([]byte(`"1"|""|""|"This transaction has been approved."|""|""|"2147483647"|""`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewAIMClient(config.GatewayConfig{Endpoint: srv.URL, Timeout: time.Second}, "login", "tran-key")
	result, err := client.AuthorizeAndCapture(context.Background(), chargeRequest())
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, "2147483647", result.TransactionID)

	assert.Equal(t, "login", form["x_login"][0])
	assert.Equal(t, "tran-key", form["x_tran_key"][0])
	assert.Equal(t, "AUTH_CAPTURE", form["x_type"][0])
	assert.Equal(t, "0330", form["x_exp_date"][0])
	assert.Equal(t, "25.00", form["x_amount"][0])
	assert.Equal(t, "order-1", form["x_invoice_num"][0])
}

func TestAIMClientDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"2"|""|""|"This transaction has been declined."|""|""|"0"|""`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewAIMClient(config.GatewayConfig{Endpoint: srv.URL, Timeout: time.Second}, "login", "tran-key")
	result, err := client.AuthorizeAndCapture(context.Background(), chargeRequest())
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, "This transaction has been declined.", result.Reason)
}

func TestAIMClientSandboxEndpoint(t *testing.T) {
	client := NewAIMClient(config.GatewayConfig{
		Endpoint:        "https://live.example.com",
		SandboxEndpoint: "https://sandbox.example.com",
		Sandbox:         true,
		Timeout:         time.Second,
	}, "login", "tran-key")
	assert.Equal(t, "https://sandbox.example.com", client.endpoint)
}

func TestAIMClientNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewAIMClient(config.GatewayConfig{Endpoint: srv.URL, Timeout: time.Second}, "login", "tran-key")
	_, err := client.AuthorizeAndCapture(context.Background(), chargeRequest())
	require.Error(t, err)
}

func TestParseAIMResponseMalformed(t *testing.T) {
	_, err := parseAIMResponse("1|2|3")
	require.Error(t, err)
}

func TestParseAIMResponseErrorCode(t *testing.T) {
	result, err := parseAIMResponse(`"3"|""|""|"A valid amount is required."|""|""|"0"`)
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, "A valid amount is required.", result.Reason)
}
