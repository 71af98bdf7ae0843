package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptRendererRequiresOrderID(t *testing.T) {
	renderer := NewReceiptRenderer()
	_, err := renderer.Render(Receipt{})
	require.Error(t, err)
}

func TestReceiptRendererProducesPDF(t *testing.T) {
	renderer := NewReceiptRenderer()
	payload, err := renderer.Render(Receipt{
		ReceiptNumber: "INV0042",
		OrderID:       "order-1",
		IssuerAddress: "1 Campus Way",
		BillingName:   "Sam Student",
		BillingLines:  []string{"42 Billing Rd", "Springfield", "US"},
		CustomerName:  "Sam Student",
		CourseName:    "Course One",
		SiteName:      "Example Academy",
		Amount:        25.00,
		Currency:      "USD",
		PaymentMethod: "Credit Card",
		CardLast4:     "1111",
		PaidAt:        time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC),
		Footer:        "Thank you",
	})
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	assert.Equal(t, "%PDF", string(payload[:4]))
}
