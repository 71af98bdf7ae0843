package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt carries everything the printable payment receipt shows.
type Receipt struct {
	ReceiptNumber string
	OrderID       string
	IssuerAddress string
	BillingName   string
	BillingLines  []string
	CustomerName  string
	CourseName    string
	SiteName      string
	Amount        float64
	Currency      string
	PaymentMethod string
	CardLast4     string
	PaidAt        time.Time
	Footer        string
}

// ReceiptRenderer renders payment receipts as PDF documents.
type ReceiptRenderer struct{}

// NewReceiptRenderer constructs a receipt renderer.
func NewReceiptRenderer() *ReceiptRenderer {
	return &ReceiptRenderer{}
}

// Render produces the receipt PDF.
func (r *ReceiptRenderer) Render(receipt Receipt) ([]byte, error) {
	if receipt.OrderID == "" {
		return nil, fmt.Errorf("receipt requires an order id")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 10, 20)
	pdf.SetAutoPageBreak(true, 5)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "PAYMENT RECEIPT", "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Receipt No.: %s (Order No.: %s)", receipt.ReceiptNumber, receipt.OrderID), "", 1, "R", false, 0, "")

	if receipt.IssuerAddress != "" {
		pdf.MultiCell(0, 5, receipt.IssuerAddress, "", "R", false)
	}
	pdf.CellFormat(0, 6, receipt.PaidAt.Format("Jan 02, 2006"), "", 1, "R", false, 0, "")
	pdf.Ln(2)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(4)

	pdf.SetFont("Arial", "I", 11)
	if receipt.BillingName != "" {
		pdf.CellFormat(0, 5, receipt.BillingName, "", 1, "L", false, 0, "")
	}
	for _, line := range receipt.BillingLines {
		if line == "" {
			continue
		}
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Dear %s,", receipt.CustomerName), "", 1, "L", false, 0, "")
	pdf.MultiCell(0, 6, fmt.Sprintf("Thank you for registering to take %s on %s. Please retain a copy of this payment receipt for your records.",
		receipt.CourseName, receipt.SiteName), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total amount charged on %s: %s %.2f",
		receipt.PaidAt.Format("2 January 2006, 15:04"), receipt.Currency, receipt.Amount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Payment method: %s", receipt.PaymentMethod), "", 1, "L", false, 0, "")
	if receipt.CardLast4 != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Card number: xxxx-xxxx-xxxx-%s", receipt.CardLast4), "", 1, "L", false, 0, "")
	}

	if receipt.Footer != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, receipt.Footer, "", "L", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
