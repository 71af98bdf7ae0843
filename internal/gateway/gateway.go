package gateway

import "context"

// ChargeRequest carries everything a single authorize-and-capture call
// needs. The invoice number is always the order id so every gateway
// transaction traces back to a persisted order row.
type ChargeRequest struct {
	FirstName   string
	LastName    string
	Address     string
	City        string
	State       string
	Zip         string
	Country     string
	Email       string
	CardNumber  string
	CardCode    string
	ExpiryMonth int
	ExpiryYear  int

	Amount        float64
	Currency      string
	Description   string
	CustomerID    string
	CustomerIP    string
	InvoiceNumber string
	EmailReceipt  bool
}

// ChargeResult is the gateway's verdict. Approved false with a Reason is a
// decline, not an error; transport and protocol failures surface as errors.
type ChargeResult struct {
	Approved      bool
	TransactionID string
	Reason        string
}

// Client is the payment-authorization capability. The purchase service only
// ever sees this interface, never gateway-specific types.
type Client interface {
	AuthorizeAndCapture(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
