package models

import "time"

// OrderStatus tracks the lifecycle of a purchase attempt. An order that is
// not approved must never have produced an enrolment.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusApproved OrderStatus = "APPROVED"
	OrderStatusDeclined OrderStatus = "DECLINED"
	OrderStatusError    OrderStatus = "ERROR"
)

// PaymentMethodCC is the only payment method the gateway adapter supports.
const PaymentMethodCC = "cc"

// Order records a single purchase attempt. Rows are append/update-only and
// kept forever as an audit trail.
type Order struct {
	ID             string      `db:"id" json:"id"`
	InstanceID     string      `db:"instance_id" json:"instance_id"`
	CourseID       string      `db:"course_id" json:"course_id"`
	UserID         string      `db:"user_id" json:"user_id"`
	Amount         float64     `db:"amount" json:"amount"`
	Currency       string      `db:"currency" json:"currency"`
	PaymentMethod  string      `db:"payment_method" json:"payment_method"`
	Status         OrderStatus `db:"status" json:"status"`
	TransactionID  string      `db:"transaction_id" json:"transaction_id"`
	CardholderName string      `db:"cardholder_name" json:"cardholder_name"`
	RefundInfo     string      `db:"refund_info" json:"-"`
	ReceiptNumber  *string     `db:"receipt_number" json:"receipt_number,omitempty"`
	FailureReason  string      `db:"failure_reason" json:"-"`
	SettledAt      *time.Time  `db:"settled_at" json:"settled_at,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// OrderDetail enriches Order with course and purchaser info for listings and
// the receipt view.
type OrderDetail struct {
	Order
	CourseShortName string `db:"course_short_name" json:"course_short_name"`
	CourseFullName  string `db:"course_full_name" json:"course_full_name"`
	UserFirstName   string `db:"user_first_name" json:"user_first_name"`
	UserLastName    string `db:"user_last_name" json:"user_last_name"`
	UserEmail       string `db:"user_email" json:"user_email"`
}

// AVSRecord stores billing-address fields for an approved order, receipt use
// only. Written only when address verification is enabled.
type AVSRecord struct {
	OrderID   string `db:"order_id" json:"order_id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Address   string `db:"address" json:"address"`
	City      string `db:"city" json:"city"`
	State     string `db:"state" json:"state"`
	Country   string `db:"country" json:"country"`
}

// OrderFilter provides filters for listing orders.
type OrderFilter struct {
	CourseID  string
	UserID    string
	Status    OrderStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
