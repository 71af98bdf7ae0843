package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrol-pay-api/internal/models"
)

// OrderRepository handles persistence of purchase attempts and their AVS
// records. Orders are never deleted.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository constructs the repository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new pending order. The row must exist before any gateway
// call is made so every gateway transaction is traceable.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = models.PaymentMethodCC
	}
	const query = `INSERT INTO orders (id, instance_id, course_id, user_id, amount, currency, payment_method, status,
        transaction_id, cardholder_name, refund_info, failure_reason, created_at)
        VALUES (:id, :instance_id, :course_id, :user_id, :amount, :currency, :payment_method, :status,
        :transaction_id, :cardholder_name, :refund_info, :failure_reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// MarkApproved settles an order after gateway approval, recording the
// gateway transaction id and the assigned receipt number. An empty receipt
// number is stored as NULL so a failed counter never mints a duplicate. The
// status guard ensures the pending to approved transition happens at most
// once per id.
func (r *OrderRepository) MarkApproved(ctx context.Context, id, transactionID, receiptNumber string, settledAt time.Time) error {
	const query = `UPDATE orders SET status = $2, transaction_id = $3, receipt_number = $4, settled_at = $5
        WHERE id = $1 AND status = $6`
	receipt := sql.NullString{String: receiptNumber, Valid: receiptNumber != ""}
	res, err := r.db.ExecContext(ctx, query, id, models.OrderStatusApproved, transactionID, receipt, settledAt, models.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("approve order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve order rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("approve order %s: not pending", id)
	}
	return nil
}

// MarkFailed records a gateway decline or error against the order.
func (r *OrderRepository) MarkFailed(ctx context.Context, id string, status models.OrderStatus, reason string) error {
	const query = `UPDATE orders SET status = $2, failure_reason = $3 WHERE id = $1 AND status = $4`
	if _, err := r.db.ExecContext(ctx, query, id, status, reason, models.OrderStatusPending); err != nil {
		return fmt.Errorf("fail order: %w", err)
	}
	return nil
}

// FindByID returns an order by its ID.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	const query = `SELECT id, instance_id, course_id, user_id, amount, currency, payment_method, status,
        transaction_id, cardholder_name, refund_info, receipt_number, failure_reason, settled_at, created_at
        FROM orders WHERE id = $1`
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		return nil, err
	}
	return &order, nil
}

// FindDetailByID returns an order joined with course and purchaser info.
func (r *OrderRepository) FindDetailByID(ctx context.Context, id string) (*models.OrderDetail, error) {
	const query = `SELECT o.id, o.instance_id, o.course_id, o.user_id, o.amount, o.currency, o.payment_method, o.status,
        o.transaction_id, o.cardholder_name, o.refund_info, o.receipt_number, o.failure_reason, o.settled_at, o.created_at,
        c.short_name AS course_short_name, c.full_name AS course_full_name,
        u.first_name AS user_first_name, u.last_name AS user_last_name, u.email AS user_email
        FROM orders o
        LEFT JOIN courses c ON c.id = o.course_id
        LEFT JOIN users u ON u.id = o.user_id
        WHERE o.id = $1`
	var detail models.OrderDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns orders filtered by the provided criteria.
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.OrderDetail, int, error) {
	base := `FROM orders o
LEFT JOIN courses c ON c.id = o.course_id
LEFT JOIN users u ON u.id = o.user_id`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("o.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("o.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "o.created_at",
		"settled_at": "o.settled_at",
		"amount":     "o.amount",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "o.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT o.id, o.instance_id, o.course_id, o.user_id, o.amount, o.currency, o.payment_method, o.status,
        o.transaction_id, o.cardholder_name, o.refund_info, o.receipt_number, o.failure_reason, o.settled_at, o.created_at,
        c.short_name AS course_short_name, c.full_name AS course_full_name,
        u.first_name AS user_first_name, u.last_name AS user_last_name, u.email AS user_email
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var orders []models.OrderDetail
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	return orders, total, nil
}

// CreateAVS stores the billing-address record for an approved order.
func (r *OrderRepository) CreateAVS(ctx context.Context, record *models.AVSRecord) error {
	const query = `INSERT INTO order_avs (order_id, first_name, last_name, address, city, state, country)
        VALUES (:order_id, :first_name, :last_name, :address, :city, :state, :country)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create avs record: %w", err)
	}
	return nil
}

// FindAVSByOrderID returns the AVS record for an order, if one was captured.
func (r *OrderRepository) FindAVSByOrderID(ctx context.Context, orderID string) (*models.AVSRecord, error) {
	const query = `SELECT order_id, first_name, last_name, address, city, state, country FROM order_avs WHERE order_id = $1`
	var record models.AVSRecord
	if err := r.db.GetContext(ctx, &record, query, orderID); err != nil {
		return nil, err
	}
	return &record, nil
}
