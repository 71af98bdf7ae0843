package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrol-pay-api/internal/models"
	appErrors "github.com/noah-isme/enrol-pay-api/pkg/errors"
	"github.com/noah-isme/enrol-pay-api/pkg/export"
)

type orderReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.OrderDetail, error)
	List(ctx context.Context, filter models.OrderFilter) ([]models.OrderDetail, int, error)
	FindAVSByOrderID(ctx context.Context, orderID string) (*models.AVSRecord, error)
}

type orderSettingsReader interface {
	LoadPluginConfig(ctx context.Context) (*models.PluginConfig, error)
}

type orderUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type receiptRenderer interface {
	Render(receipt export.Receipt) ([]byte, error)
}

// Requester identifies who is asking. Payment managers see every order;
// everyone else sees only their own.
type Requester struct {
	UserID         string
	PaymentManager bool
}

// OrderService serves order listings, order detail and the printable
// receipt.
type OrderService struct {
	orders   orderReader
	settings orderSettingsReader
	users    orderUserReader
	renderer receiptRenderer
	logger   *zap.Logger
}

// NewOrderService constructs OrderService.
func NewOrderService(orders orderReader, settings orderSettingsReader, users orderUserReader,
	renderer receiptRenderer, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:   orders,
		settings: settings,
		users:    users,
		renderer: renderer,
		logger:   logger,
	}
}

// List returns orders matching the filter. Non-managers are pinned to their
// own orders regardless of the requested filter.
func (s *OrderService) List(ctx context.Context, requester Requester, filter models.OrderFilter) ([]models.OrderDetail, *models.Pagination, error) {
	if !requester.PaymentManager {
		filter.UserID = requester.UserID
	}
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orders")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return orders, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Detail returns one order, enforcing owner-or-manager access.
func (s *OrderService) Detail(ctx context.Context, requester Requester, orderID string) (*models.OrderDetail, error) {
	detail, err := s.orders.FindDetailByID(ctx, orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}
	if !requester.PaymentManager && detail.UserID != requester.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only view your own orders")
	}
	return detail, nil
}

// Receipt renders the payment receipt PDF for a settled order. Billing
// details come from the captured AVS record when present, falling back to
// the purchaser's profile.
func (s *OrderService) Receipt(ctx context.Context, requester Requester, orderID string) ([]byte, string, error) {
	detail, err := s.Detail(ctx, requester, orderID)
	if err != nil {
		return nil, "", err
	}
	if detail.Status != models.OrderStatusApproved || detail.ReceiptNumber == nil {
		return nil, "", appErrors.Clone(appErrors.ErrConflict, "receipt is only available for settled orders")
	}

	cfg, err := s.settings.LoadPluginConfig(ctx)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plugin settings")
	}

	receipt := export.Receipt{
		ReceiptNumber: *detail.ReceiptNumber,
		OrderID:       detail.ID,
		IssuerAddress: cfg.ReceiptAddress,
		CustomerName:  strings.TrimSpace(detail.UserFirstName + " " + detail.UserLastName),
		CourseName:    detail.CourseFullName,
		SiteName:      cfg.SiteName,
		Amount:        detail.Amount,
		Currency:      detail.Currency,
		PaymentMethod: "Credit Card",
		CardLast4:     detail.RefundInfo,
		Footer:        cfg.ReceiptFooter,
	}
	if detail.SettledAt != nil {
		receipt.PaidAt = *detail.SettledAt
	} else {
		receipt.PaidAt = detail.CreatedAt
	}
	s.fillBilling(ctx, detail, &receipt)

	payload, err := s.renderer.Render(receipt)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}

	filename := "receipt-" + receipt.ReceiptNumber + "-" + time.Now().UTC().Format("20060102") + ".pdf"
	return payload, filename, nil
}

func (s *OrderService) fillBilling(ctx context.Context, detail *models.OrderDetail, receipt *export.Receipt) {
	avs, err := s.orders.FindAVSByOrderID(ctx, detail.ID)
	if err == nil {
		receipt.BillingName = strings.TrimSpace(avs.FirstName + " " + avs.LastName)
		receipt.BillingLines = []string{avs.Address, strings.TrimSpace(avs.City + " " + avs.State), avs.Country}
		return
	}
	if err != sql.ErrNoRows {
		s.logger.Warn("avs lookup failed", zap.String("order_id", detail.ID), zap.Error(err))
	}

	user, err := s.users.FindByID(ctx, detail.UserID)
	if err != nil {
		s.logger.Warn("billing fallback lookup failed", zap.String("order_id", detail.ID), zap.Error(err))
		receipt.BillingName = receipt.CustomerName
		return
	}
	receipt.BillingName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	receipt.BillingLines = []string{user.Address, user.City, user.Country}
}
