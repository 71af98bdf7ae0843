package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrol-pay-api/internal/models"
	appErrors "github.com/noah-isme/enrol-pay-api/pkg/errors"
	"github.com/noah-isme/enrol-pay-api/pkg/export"
)

type orderReaderStub struct {
	detail     *models.OrderDetail
	detailErr  error
	listResp   []models.OrderDetail
	listTotal  int
	lastFilter models.OrderFilter
	avs        *models.AVSRecord
	avsErr     error
}

func (s *orderReaderStub) FindDetailByID(ctx context.Context, id string) (*models.OrderDetail, error) {
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	return s.detail, nil
}

func (s *orderReaderStub) List(ctx context.Context, filter models.OrderFilter) ([]models.OrderDetail, int, error) {
	s.lastFilter = filter
	return s.listResp, s.listTotal, nil
}

func (s *orderReaderStub) FindAVSByOrderID(ctx context.Context, orderID string) (*models.AVSRecord, error) {
	if s.avsErr != nil {
		return nil, s.avsErr
	}
	if s.avs == nil {
		return nil, sql.ErrNoRows
	}
	return s.avs, nil
}

type rendererStub struct {
	rendered *export.Receipt
}

func (s *rendererStub) Render(receipt export.Receipt) ([]byte, error) {
	s.rendered = &receipt
	return []byte("%PDF"), nil
}

func settledOrderDetail() *models.OrderDetail {
	receipt := "INV0042"
	settled := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	return &models.OrderDetail{
		Order: models.Order{
			ID:            "order-1",
			UserID:        "user-1",
			CourseID:      "course-1",
			Amount:        25.00,
			Currency:      "USD",
			Status:        models.OrderStatusApproved,
			ReceiptNumber: &receipt,
			RefundInfo:    "1111",
			SettledAt:     &settled,
		},
		CourseFullName: "Course One",
		UserFirstName:  "Sam",
		UserLastName:   "Student",
	}
}

func newOrderFixture(detail *models.OrderDetail) (*orderReaderStub, *rendererStub, *OrderService) {
	orders := &orderReaderStub{detail: detail}
	renderer := &rendererStub{}
	settings := &settingsReaderStub{cfg: &models.PluginConfig{
		SiteName:       "Example Academy",
		ReceiptAddress: "1 Campus Way",
		ReceiptFooter:  "Thank you",
	}}
	svc := NewOrderService(orders, settings, &userReaderStub{}, renderer, nil)
	return orders, renderer, svc
}

func TestOrderDetailForbiddenForOtherUser(t *testing.T) {
	_, _, svc := newOrderFixture(settledOrderDetail())
	_, err := svc.Detail(context.Background(), Requester{UserID: "user-2"}, "order-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestOrderDetailVisibleToOwnerAndManager(t *testing.T) {
	_, _, svc := newOrderFixture(settledOrderDetail())

	detail, err := svc.Detail(context.Background(), Requester{UserID: "user-1"}, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", detail.ID)

	detail, err = svc.Detail(context.Background(), Requester{UserID: "manager", PaymentManager: true}, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", detail.ID)
}

func TestOrderDetailNotFound(t *testing.T) {
	orders, _, svc := newOrderFixture(nil)
	orders.detailErr = sql.ErrNoRows
	_, err := svc.Detail(context.Background(), Requester{UserID: "user-1"}, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOrderListPinsNonManagerToOwnOrders(t *testing.T) {
	orders, _, svc := newOrderFixture(nil)
	_, _, err := svc.List(context.Background(), Requester{UserID: "user-1"}, models.OrderFilter{UserID: "someone-else"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", orders.lastFilter.UserID)
}

func TestOrderListManagerKeepsFilter(t *testing.T) {
	orders, _, svc := newOrderFixture(nil)
	_, pagination, err := svc.List(context.Background(), Requester{UserID: "manager", PaymentManager: true},
		models.OrderFilter{UserID: "user-7", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, "user-7", orders.lastFilter.UserID)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 10, pagination.PageSize)
}

func TestOrderReceiptRequiresSettledOrder(t *testing.T) {
	detail := settledOrderDetail()
	detail.Status = models.OrderStatusPending
	detail.ReceiptNumber = nil
	_, _, svc := newOrderFixture(detail)

	_, _, err := svc.Receipt(context.Background(), Requester{UserID: "user-1"}, "order-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestOrderReceiptUsesAVSBilling(t *testing.T) {
	orders, renderer, svc := newOrderFixture(settledOrderDetail())
	orders.avs = &models.AVSRecord{
		OrderID:   "order-1",
		FirstName: "Sam",
		LastName:  "Student",
		Address:   "42 Billing Rd",
		City:      "Springfield",
		Country:   "US",
	}

	payload, filename, err := svc.Receipt(context.Background(), Requester{UserID: "user-1"}, "order-1")
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
	assert.Contains(t, filename, "INV0042")

	require.NotNil(t, renderer.rendered)
	assert.Equal(t, "INV0042", renderer.rendered.ReceiptNumber)
	assert.Equal(t, "Sam Student", renderer.rendered.BillingName)
	assert.Contains(t, renderer.rendered.BillingLines, "42 Billing Rd")
	assert.Equal(t, "Example Academy", renderer.rendered.SiteName)
	assert.Equal(t, "1111", renderer.rendered.CardLast4)
}

func TestOrderReceiptFallsBackToProfileBilling(t *testing.T) {
	_, renderer, svc := newOrderFixture(settledOrderDetail())

	_, _, err := svc.Receipt(context.Background(), Requester{UserID: "user-1"}, "order-1")
	require.NoError(t, err)
	require.NotNil(t, renderer.rendered)
	assert.Equal(t, "Sam Student", renderer.rendered.BillingName)
}
