package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrol-pay-api/internal/gateway"
	"github.com/noah-isme/enrol-pay-api/internal/models"
	appErrors "github.com/noah-isme/enrol-pay-api/pkg/errors"
	"github.com/noah-isme/enrol-pay-api/pkg/mailer"
)

// Amounts below this are treated as free; a free course is handled by a
// different enrolment path entirely.
const freeCostThreshold = 0.01

const defaultCurrency = "USD"

type orderWriter interface {
	Create(ctx context.Context, order *models.Order) error
	MarkApproved(ctx context.Context, id, transactionID, receiptNumber string, settledAt time.Time) error
	MarkFailed(ctx context.Context, id string, status models.OrderStatus, reason string) error
	CreateAVS(ctx context.Context, record *models.AVSRecord) error
}

type instanceReader interface {
	FindByID(ctx context.Context, id string) (*models.EnrolInstance, error)
	CountActiveEnrolments(ctx context.Context, instanceID string) (int, error)
}

type enrolmentGranter interface {
	Exists(ctx context.Context, instanceID, userID string) (bool, error)
	Grant(ctx context.Context, enrolment *models.UserEnrolment) error
}

type roleAssigner interface {
	Assign(ctx context.Context, roleID, userID, courseID, instanceID string) error
}

type settingsReader interface {
	LoadPluginConfig(ctx context.Context) (*models.PluginConfig, error)
	NextReceiptNumber(ctx context.Context) (int64, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type purchaseUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// GatewayFactory builds a gateway client from the current API credentials,
// so rotated settings apply without a restart.
type GatewayFactory func(login, transactionKey string) gateway.Client

// PurchaseRequest is the submitted payment form.
type PurchaseRequest struct {
	InstanceID  string `json:"instance_id" validate:"required"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Address     string `json:"address" validate:"required"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state"`
	Zip         string `json:"zip" validate:"required"`
	Country     string `json:"country" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	CardNumber  string `json:"card_number" validate:"required,numeric,min=12,max=19"`
	CardCode    string `json:"card_code" validate:"required,numeric,min=3,max=4"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required,min=2000,max=2099"`
}

// OutcomeStatus classifies how a purchase attempt ended.
type OutcomeStatus string

const (
	OutcomeEnrolled OutcomeStatus = "ENROLLED"
	OutcomeDeclined OutcomeStatus = "DECLINED"
	OutcomeFree     OutcomeStatus = "FREE"
)

// Outcome is what the purchase endpoint returns to the form. Declines carry
// a human-readable reason plus a support-contact line, never the raw
// gateway payload.
type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	OrderID string        `json:"order_id,omitempty"`
	Message string        `json:"message,omitempty"`
}

const supportMessage = "If you believe this is an error, please contact support."

// PurchaseService drives a single purchase attempt: eligibility checks,
// order creation, the gateway call, and the enrolment grant or failure
// reporting that follows.
type PurchaseService struct {
	orders     orderWriter
	instances  instanceReader
	enrolments enrolmentGranter
	roles      roleAssigner
	settings   settingsReader
	courses    courseReader
	users      purchaseUserReader
	newGateway GatewayFactory
	mail       mailer.Mailer
	adminEmail string
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewPurchaseService constructs PurchaseService.
func NewPurchaseService(orders orderWriter, instances instanceReader, enrolments enrolmentGranter, roles roleAssigner,
	settings settingsReader, courses courseReader, users purchaseUserReader, newGateway GatewayFactory,
	mail mailer.Mailer, adminEmail string, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PurchaseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurchaseService{
		orders:     orders,
		instances:  instances,
		enrolments: enrolments,
		roles:      roles,
		settings:   settings,
		courses:    courses,
		users:      users,
		newGateway: newGateway,
		mail:       mail,
		adminEmail: adminEmail,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// AttemptPurchase runs the purchase protocol for one form submission. Every
// precondition failure short-circuits before any side effect; a fresh order
// is created per submission, never reused.
func (s *PurchaseService) AttemptPurchase(ctx context.Context, userID, clientIP string, secure bool, req PurchaseRequest) (*Outcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment form")
	}
	if !secure {
		return nil, appErrors.ErrNotSecure
	}

	cfg, err := s.settings.LoadPluginConfig(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plugin settings")
	}
	if !cfg.Enabled {
		return nil, appErrors.ErrMethodDisabled
	}

	instance, err := s.instances.FindByID(ctx, req.InstanceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrolment instance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instance")
	}
	if instance.Status != models.InstanceEnabled {
		return nil, appErrors.Clone(appErrors.ErrMethodDisabled, "this enrolment offering is disabled")
	}

	enrolled, err := s.enrolments.Exists(ctx, instance.ID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrolment")
	}
	if enrolled {
		return nil, appErrors.ErrAlreadyEnrolled
	}

	now := s.now().UTC()
	if !instance.WithinWindow(now.Unix()) {
		return nil, appErrors.ErrOutsideWindow
	}

	if instance.MaxEnrolled > 0 {
		count, err := s.instances.CountActiveEnrolments(ctx, instance.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrolments")
		}
		if count >= instance.MaxEnrolled {
			return nil, appErrors.ErrCourseFull
		}
	}

	cost := cfg.EffectiveCost(instance)
	if math.Abs(cost) < freeCostThreshold {
		s.metrics.RecordPurchase("free")
		return &Outcome{Status: OutcomeFree}, nil
	}

	currency := instance.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	order := &models.Order{
		InstanceID:     instance.ID,
		CourseID:       instance.CourseID,
		UserID:         userID,
		Amount:         cost,
		Currency:       currency,
		PaymentMethod:  models.PaymentMethodCC,
		Status:         models.OrderStatusPending,
		CardholderName: req.FirstName + " " + req.LastName,
		RefundInfo:     cardLast4(req.CardNumber),
		CreatedAt:      now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.alertAdmin("Order insert failed",
			fmt.Sprintf("Could not record a purchase attempt for user %s on instance %s: %v", userID, instance.ID, err))
		s.logger.Error("order insert failed", zap.String("user_id", userID), zap.String("instance_id", instance.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrOrderUnrecorded.Code, appErrors.ErrOrderUnrecorded.Status, appErrors.ErrOrderUnrecorded.Message)
	}

	course, err := s.courses.FindByID(ctx, instance.CourseID)
	if err != nil {
		course = &models.Course{ID: instance.CourseID}
	}

	client := s.newGateway(cfg.APILoginID, cfg.TransactionKey)
	result, err := client.AuthorizeAndCapture(ctx, gateway.ChargeRequest{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Address:       req.Address,
		City:          req.City,
		State:         req.State,
		Zip:           req.Zip,
		Country:       req.Country,
		Email:         req.Email,
		CardNumber:    req.CardNumber,
		CardCode:      req.CardCode,
		ExpiryMonth:   req.ExpiryMonth,
		ExpiryYear:    req.ExpiryYear,
		Amount:        cost,
		Currency:      currency,
		Description:   course.ShortName + ": " + course.FullName,
		CustomerID:    userID,
		CustomerIP:    clientIP,
		InvoiceNumber: order.ID,
		EmailReceipt:  cfg.MailStudents,
	})
	if err != nil {
		gwErr := appErrors.Wrap(err, appErrors.ErrGatewayFailure.Code, appErrors.ErrGatewayFailure.Status, appErrors.ErrGatewayFailure.Message)
		if failErr := s.orders.MarkFailed(ctx, order.ID, models.OrderStatusError, gwErr.Error()); failErr != nil {
			s.logger.Error("failed to record gateway error", zap.String("order_id", order.ID), zap.Error(failErr))
		}
		s.logger.Warn("gateway call failed", zap.String("order_id", order.ID), zap.Error(gwErr))
		s.metrics.RecordPurchase("error")
		return &Outcome{
			Status:  OutcomeDeclined,
			OrderID: order.ID,
			Message: "Your payment could not be processed. " + supportMessage,
		}, nil
	}

	if !result.Approved {
		if failErr := s.orders.MarkFailed(ctx, order.ID, models.OrderStatusDeclined, result.Reason); failErr != nil {
			s.logger.Error("failed to record decline", zap.String("order_id", order.ID), zap.Error(failErr))
		}
		s.metrics.RecordPurchase("declined")
		return &Outcome{
			Status:  OutcomeDeclined,
			OrderID: order.ID,
			Message: result.Reason + " " + supportMessage,
		}, nil
	}

	return s.settle(ctx, cfg, instance, course, order, userID, req, result)
}

// settle runs the consequences of a gateway approval: AVS capture, receipt
// assignment, the enrolment grant, audit logging and the welcome mail. The
// enrolment is granted only once the order row is recorded approved; a
// captured payment that cannot be settled or granted is flagged to an
// administrator for manual review instead.
func (s *PurchaseService) settle(ctx context.Context, cfg *models.PluginConfig, instance *models.EnrolInstance,
	course *models.Course, order *models.Order, userID string, req PurchaseRequest, result *gateway.ChargeResult) (*Outcome, error) {
	if cfg.AVSEnabled {
		avs := &models.AVSRecord{
			OrderID:   order.ID,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Address:   req.Address,
			City:      req.City,
			State:     req.State,
			Country:   req.Country,
		}
		if err := s.orders.CreateAVS(ctx, avs); err != nil {
			s.alertAdmin("AVS record insert failed", fmt.Sprintf("Order %s settled but its AVS record could not be stored: %v", order.ID, err))
			s.logger.Error("avs insert failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	var receipt string
	if number, err := s.settings.NextReceiptNumber(ctx); err != nil {
		s.alertAdmin("Receipt number unavailable",
			fmt.Sprintf("Order %s settled without a receipt number, none could be claimed: %v", order.ID, err))
		s.logger.Error("receipt counter failed", zap.String("order_id", order.ID), zap.Error(err))
	} else {
		receipt = fmt.Sprintf("%s%04d", cfg.ReceiptPrefix, number)
	}

	settledAt := s.now().UTC()
	if err := s.orders.MarkApproved(ctx, order.ID, result.TransactionID, receipt, settledAt); err != nil {
		s.alertAdmin("Order settlement not recorded",
			fmt.Sprintf("Gateway approved transaction %s for order %s but the order row could not be updated; the enrolment was withheld for manual review: %v", result.TransactionID, order.ID, err))
		s.logger.Error("order settle update failed", zap.String("order_id", order.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "payment captured but could not be recorded, administrator notified")
	}

	roleID := instance.RoleID
	if roleID == "" {
		roleID = cfg.DefaultRoleID
	}
	timeStart := settledAt.Unix()
	period := instance.EnrolPeriod
	if period == 0 {
		period = cfg.DefaultPeriod
	}
	var timeEnd int64
	if period > 0 {
		timeEnd = timeStart + period
	}
	enrolment := &models.UserEnrolment{
		InstanceID: instance.ID,
		UserID:     userID,
		Status:     models.EnrolmentActive,
		TimeStart:  timeStart,
		TimeEnd:    timeEnd,
	}
	if err := s.enrolments.Grant(ctx, enrolment); err != nil {
		s.alertAdmin("Paid order without enrolment",
			fmt.Sprintf("Order %s is approved (transaction %s) but the enrolment grant failed and needs manual review: %v", order.ID, result.TransactionID, err))
		s.logger.Error("enrolment grant failed", zap.String("order_id", order.ID), zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "payment captured but enrolment failed, administrator notified")
	}
	if err := s.roles.Assign(ctx, roleID, userID, instance.CourseID, instance.ID); err != nil {
		s.logger.Error("role assignment failed", zap.String("order_id", order.ID), zap.String("user_id", userID), zap.Error(err))
	}

	s.logger.Info("user enrolled via payment",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("course_id", instance.CourseID),
		zap.String("instance_id", instance.ID),
		zap.String("transaction_id", result.TransactionID),
		zap.String("receipt", receipt),
		zap.Float64("amount", order.Amount),
		zap.String("currency", order.Currency))

	if cfg.MailStudents && instance.WelcomeMail {
		s.sendWelcome(ctx, cfg, course, userID)
	}

	s.metrics.RecordPurchase("enrolled")
	return &Outcome{Status: OutcomeEnrolled, OrderID: order.ID}, nil
}

func (s *PurchaseService) sendWelcome(ctx context.Context, cfg *models.PluginConfig, course *models.Course, userID string) {
	if s.mail == nil {
		return
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("welcome mail skipped, user lookup failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	subject := cfg.WelcomeSubject
	if subject == "" {
		subject = "Welcome to " + course.FullName
	}
	body := cfg.WelcomeBody
	if body == "" {
		body = "Dear {name},\n\nThank you for your payment. You are now enrolled in {course}."
	}
	body = strings.NewReplacer("{name}", user.FirstName, "{course}", course.FullName).Replace(body)

	if err := s.mail.Send(user.Email, "", subject, body, cfg.WelcomeReplyTo); err != nil {
		s.logger.Warn("welcome mail failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *PurchaseService) alertAdmin(subject, body string) {
	if s.mail == nil || s.adminEmail == "" {
		return
	}
	if err := s.mail.Send(s.adminEmail, "", subject, body, ""); err != nil {
		s.logger.Error("admin alert failed", zap.String("subject", subject), zap.Error(err))
	}
}

func cardLast4(cardNumber string) string {
	if len(cardNumber) <= 4 {
		return cardNumber
	}
	return cardNumber[len(cardNumber)-4:]
}
