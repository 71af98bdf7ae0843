package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrol-pay-api/internal/gateway"
	"github.com/noah-isme/enrol-pay-api/internal/models"
	appErrors "github.com/noah-isme/enrol-pay-api/pkg/errors"
)

type orderWriterStub struct {
	created   []*models.Order
	createErr error

	approvedID      string
	approvedTransID string
	approvedReceipt string
	approveErr      error

	failedID     string
	failedStatus models.OrderStatus
	failedReason string

	avsRecords []*models.AVSRecord
}

func (s *orderWriterStub) Create(ctx context.Context, order *models.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	if order.ID == "" {
		order.ID = "order-1"
	}
	s.created = append(s.created, order)
	return nil
}

func (s *orderWriterStub) MarkApproved(ctx context.Context, id, transactionID, receiptNumber string, settledAt time.Time) error {
	if s.approveErr != nil {
		return s.approveErr
	}
	s.approvedID = id
	s.approvedTransID = transactionID
	s.approvedReceipt = receiptNumber
	return nil
}

func (s *orderWriterStub) MarkFailed(ctx context.Context, id string, status models.OrderStatus, reason string) error {
	s.failedID = id
	s.failedStatus = status
	s.failedReason = reason
	return nil
}

func (s *orderWriterStub) CreateAVS(ctx context.Context, record *models.AVSRecord) error {
	s.avsRecords = append(s.avsRecords, record)
	return nil
}

type instanceReaderStub struct {
	instance *models.EnrolInstance
	err      error
	count    int
	countErr error
	lookups  int
}

func (s *instanceReaderStub) FindByID(ctx context.Context, id string) (*models.EnrolInstance, error) {
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	return s.instance, nil
}

func (s *instanceReaderStub) CountActiveEnrolments(ctx context.Context, instanceID string) (int, error) {
	return s.count, s.countErr
}

type enrolmentGranterStub struct {
	exists    bool
	existsErr error
	granted   []*models.UserEnrolment
	grantErr  error
}

func (s *enrolmentGranterStub) Exists(ctx context.Context, instanceID, userID string) (bool, error) {
	return s.exists, s.existsErr
}

func (s *enrolmentGranterStub) Grant(ctx context.Context, enrolment *models.UserEnrolment) error {
	if s.grantErr != nil {
		return s.grantErr
	}
	s.granted = append(s.granted, enrolment)
	return nil
}

type roleAssignerStub struct {
	assigned []string
}

func (s *roleAssignerStub) Assign(ctx context.Context, roleID, userID, courseID, instanceID string) error {
	s.assigned = append(s.assigned, roleID)
	return nil
}

type settingsReaderStub struct {
	cfg     *models.PluginConfig
	cfgErr  error
	next    int64
	nextErr error
}

func (s *settingsReaderStub) LoadPluginConfig(ctx context.Context) (*models.PluginConfig, error) {
	return s.cfg, s.cfgErr
}

func (s *settingsReaderStub) NextReceiptNumber(ctx context.Context) (int64, error) {
	return s.next, s.nextErr
}

type courseReaderStub struct {
	course *models.Course
}

func (s *courseReaderStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if s.course == nil {
		return &models.Course{ID: id, ShortName: "C1", FullName: "Course One"}, nil
	}
	return s.course, nil
}

type userReaderStub struct {
	user *models.User
	err  error
}

func (s *userReaderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil {
		return &models.User{ID: id, Email: "student@example.com", FirstName: "Sam", LastName: "Student"}, nil
	}
	return s.user, nil
}

type gatewayStub struct {
	result  *gateway.ChargeResult
	err     error
	called  bool
	request gateway.ChargeRequest
}

func (s *gatewayStub) AuthorizeAndCapture(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	s.called = true
	s.request = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type sentMail struct {
	to      string
	subject string
}

type mailerStub struct {
	sent []sentMail
}

func (s *mailerStub) Send(to, from, subject, body, replyTo string) error {
	s.sent = append(s.sent, sentMail{to: to, subject: subject})
	return nil
}

type purchaseFixture struct {
	orders     *orderWriterStub
	instances  *instanceReaderStub
	enrolments *enrolmentGranterStub
	roles      *roleAssignerStub
	settings   *settingsReaderStub
	gateway    *gatewayStub
	mail       *mailerStub
	service    *PurchaseService
}

func newPurchaseFixture() *purchaseFixture {
	f := &purchaseFixture{
		orders: &orderWriterStub{},
		instances: &instanceReaderStub{instance: &models.EnrolInstance{
			ID:          "inst-1",
			CourseID:    "course-1",
			Status:      models.InstanceEnabled,
			Cost:        25.00,
			Currency:    "USD",
			RoleID:      "role-student",
			EnrolPeriod: 3600,
			WelcomeMail: true,
		}},
		enrolments: &enrolmentGranterStub{},
		roles:      &roleAssignerStub{},
		settings: &settingsReaderStub{cfg: &models.PluginConfig{
			Enabled:        true,
			APILoginID:     "login",
			TransactionKey: "key",
			AVSEnabled:     true,
			MailStudents:   true,
			ReceiptPrefix:  "INV",
		}, next: 42},
		gateway: &gatewayStub{result: &gateway.ChargeResult{Approved: true, TransactionID: "999"}},
		mail:    &mailerStub{},
	}
	factory := func(login, key string) gateway.Client { return f.gateway }
	f.service = NewPurchaseService(f.orders, f.instances, f.enrolments, f.roles, f.settings,
		&courseReaderStub{}, &userReaderStub{}, factory, f.mail, "admin@example.com", nil, validator.New(), nil)
	return f
}

func validPurchaseRequest() PurchaseRequest {
	return PurchaseRequest{
		InstanceID:  "inst-1",
		FirstName:   "Sam",
		LastName:    "Student",
		Address:     "1 Main St",
		City:        "Springfield",
		Zip:         "12345",
		Country:     "US",
		Email:       "student@example.com",
		CardNumber:  "4111111111111111",
		CardCode:    "123",
		ExpiryMonth: 12,
		ExpiryYear:  2030,
	}
}

func TestPurchaseRejectsInsecureTransport(t *testing.T) {
	f := newPurchaseFixture()
	_, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", false, validPurchaseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotSecure.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.orders.created)
	assert.False(t, f.gateway.called)
}

func TestPurchaseRejectsWhenMethodDisabled(t *testing.T) {
	f := newPurchaseFixture()
	f.settings.cfg.Enabled = false
	_, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMethodDisabled.Code, appErrors.FromError(err).Code)
}

func TestPurchaseRejectsDisabledInstance(t *testing.T) {
	f := newPurchaseFixture()
	f.instances.instance.Status = models.InstanceDisabled
	_, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMethodDisabled.Code, appErrors.FromError(err).Code)
}

func TestPurchaseRejectsAlreadyEnrolled(t *testing.T) {
	f := newPurchaseFixture()
	f.enrolments.exists = true
	_, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
	assert.False(t, f.gateway.called)
}

func TestPurchaseRejectsClosedWindow(t *testing.T) {
	f := newPurchaseFixture()
	f.instances.instance.EnrolEndDate = time.Now().Add(-time.Hour).Unix()
	_, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOutsideWindow.Code, appErrors.FromError(err).Code)
}

func TestPurchaseRejectsFullCourse(t *testing.T) {
	f := newPurchaseFixture()
	f.instances.instance.MaxEnrolled = 30
	f.instances.count = 30
	_, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErrors.FromError(err).Code)
}

func TestPurchaseFreeCourseSkipsGateway(t *testing.T) {
	f := newPurchaseFixture()
	f.instances.instance.Cost = 0
	f.settings.cfg.DefaultCost = 0.004
	outcome, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFree, outcome.Status)
	assert.Empty(t, f.orders.created)
	assert.False(t, f.gateway.called)
}

func TestPurchaseOrderInsertFailureSkipsGateway(t *testing.T) {
	f := newPurchaseFixture()
	f.orders.createErr = errors.New("db down")
	_, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOrderUnrecorded.Code, appErrors.FromError(err).Code)
	assert.False(t, f.gateway.called)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "admin@example.com", f.mail.sent[0].to)
}

func TestPurchaseDeclineLeavesUserUnenrolled(t *testing.T) {
	f := newPurchaseFixture()
	f.gateway.result = &gateway.ChargeResult{Approved: false, Reason: "This transaction has been declined."}
	outcome, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, outcome.Status)
	assert.Contains(t, outcome.Message, "declined")
	assert.Equal(t, models.OrderStatusDeclined, f.orders.failedStatus)
	assert.Empty(t, f.enrolments.granted)
	assert.Empty(t, f.roles.assigned)
}

func TestPurchaseGatewayErrorRecordsErrorStatus(t *testing.T) {
	f := newPurchaseFixture()
	f.gateway.err = errors.New("connection refused")
	outcome, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, outcome.Status)
	assert.Equal(t, models.OrderStatusError, f.orders.failedStatus)
	assert.Contains(t, f.orders.failedReason, appErrors.ErrGatewayFailure.Message)
	assert.Empty(t, f.enrolments.granted)
}

func TestPurchaseSettleUpdateFailureWithholdsEnrolment(t *testing.T) {
	f := newPurchaseFixture()
	f.orders.approveErr = errors.New("db down")
	_, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.Error(t, err)
	assert.Empty(t, f.enrolments.granted)
	assert.Empty(t, f.roles.assigned)
	require.NotEmpty(t, f.mail.sent)
	assert.Equal(t, "admin@example.com", f.mail.sent[len(f.mail.sent)-1].to)
}

func TestPurchaseReceiptCounterFailureSettlesWithoutReceipt(t *testing.T) {
	f := newPurchaseFixture()
	f.settings.nextErr = errors.New("counter row locked")
	outcome, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnrolled, outcome.Status)
	assert.Empty(t, f.orders.approvedReceipt)
	require.Len(t, f.enrolments.granted, 1)
	require.NotEmpty(t, f.mail.sent)
	assert.Equal(t, "admin@example.com", f.mail.sent[0].to)
}

func TestPurchaseApprovedEnrolsUser(t *testing.T) {
	f := newPurchaseFixture()
	outcome, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnrolled, outcome.Status)
	require.Len(t, f.orders.created, 1)

	order := f.orders.created[0]
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 25.00, order.Amount)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, "1111", order.RefundInfo)

	assert.True(t, f.gateway.called)
	assert.Equal(t, order.ID, f.gateway.request.InvoiceNumber)
	assert.Equal(t, order.ID, f.orders.approvedID)
	assert.Equal(t, "999", f.orders.approvedTransID)
	assert.Equal(t, "INV0042", f.orders.approvedReceipt)

	require.Len(t, f.orders.avsRecords, 1)
	require.Len(t, f.enrolments.granted, 1)
	enrolment := f.enrolments.granted[0]
	assert.Equal(t, "user-1", enrolment.UserID)
	assert.Equal(t, enrolment.TimeStart+3600, enrolment.TimeEnd)
	assert.Equal(t, []string{"role-student"}, f.roles.assigned)

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "student@example.com", f.mail.sent[0].to)
}

func TestPurchaseApprovedWithoutPeriodHasNoEndDate(t *testing.T) {
	f := newPurchaseFixture()
	f.instances.instance.EnrolPeriod = 0
	outcome, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnrolled, outcome.Status)
	require.Len(t, f.enrolments.granted, 1)
	assert.Zero(t, f.enrolments.granted[0].TimeEnd)
}

func TestPurchaseGrantFailureAlertsAdmin(t *testing.T) {
	f := newPurchaseFixture()
	f.enrolments.grantErr = errors.New("db down")
	_, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, validPurchaseRequest())
	require.Error(t, err)
	require.NotEmpty(t, f.mail.sent)
	assert.Equal(t, "admin@example.com", f.mail.sent[0].to)
}

func TestPurchaseValidationRejectsBadCard(t *testing.T) {
	f := newPurchaseFixture()
	req := validPurchaseRequest()
	req.CardNumber = "not-a-card"
	_, err := f.service.AttemptPurchase(context.Background(), "user-1", "10.0.0.1", true, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
