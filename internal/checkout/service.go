package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/livrinho/backend/internal/coupons"
	"github.com/livrinho/backend/pkg/config"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/gateway"
	"github.com/livrinho/backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type couponEvaluator interface {
	Validate(ctx context.Context, code string, subtotalCents, totalQty int, customerID uuid.UUID, now time.Time) (*coupons.ValidationResult, error)
	Redeem(ctx context.Context, tx *gorm.DB, coupon *models.Coupon, customerID, orderID uuid.UUID) error
}

type affiliateBooker interface {
	ResolveCode(ctx context.Context, code string) (*models.Affiliate, error)
	BookCommission(ctx context.Context, tx *gorm.DB, affiliate *models.Affiliate, orderID, customerID uuid.UUID, saleValueCents int) (*models.AffiliateSale, error)
}

type orderService interface {
	Detail(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	TransitionTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, to enums.OrderStatus, note string, actingUserID *uuid.UUID) error
}

type paymentGateway interface {
	CreatePixCharge(ctx context.Context, params gateway.PixChargeParams) (*gateway.PixCharge, error)
	CreateCardCharge(ctx context.Context, params gateway.CardChargeParams) (*gateway.CardCharge, error)
}

var oneHundred = decimal.NewFromInt(100)

// Service assembles order aggregates from checkout requests.
type Service interface {
	Checkout(ctx context.Context, input Input) (*models.Order, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	coupons    couponEvaluator
	affiliates affiliateBooker
	orders     orderService
	gateway    paymentGateway
	gatewayCfg config.GatewayConfig
	retries    int
	logger     *logger.Logger
}

// NewService builds the checkout service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	couponSvc couponEvaluator,
	affiliateSvc affiliateBooker,
	orderSvc orderService,
	gw paymentGateway,
	cfg *config.Config,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if affiliateSvc == nil {
		return nil, fmt.Errorf("affiliate service required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	retries := cfg.Checkout.MaxConflictRetries
	if retries < 1 {
		retries = 1
	}
	return &service{
		repo:       repo,
		tx:         tx,
		coupons:    couponSvc,
		affiliates: affiliateSvc,
		orders:     orderSvc,
		gateway:    gw,
		gatewayCfg: cfg.Gateway,
		retries:    retries,
		logger:     logg,
	}, nil
}

// Checkout creates the full order aggregate in one transaction, then calls
// the payment gateway. A gateway failure after commit marks the payment
// failed and leaves the order awaiting payment rather than rolling it back.
func (s *service) Checkout(ctx context.Context, input Input) (*models.Order, error) {
	if err := input.validate(s.gatewayCfg.MaxInstallment); err != nil {
		return nil, err
	}

	var (
		order   *models.Order
		payment *models.Payment
	)
	backoff := retry.WithMaxRetries(uint64(s.retries-1), retry.NewConstant(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var assembleErr error
		order, payment, assembleErr = s.assemble(ctx, input)
		if assembleErr == nil {
			return nil
		}
		if isUniqueViolation(assembleErr) {
			s.logger.Warn(ctx, "checkout.number_conflict")
			return retry.RetryableError(assembleErr)
		}
		return assembleErr
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithOrderNumber(ctx, order.Number)
	s.logger.Info(ctx, "checkout.order_created")

	switch input.PaymentMethod {
	case enums.PaymentMethodPix:
		s.initiatePix(ctx, order, payment)
	case enums.PaymentMethodCard:
		s.initiateCard(ctx, input, order, payment)
	}

	return s.orders.Detail(ctx, order.ID)
}

// assemble runs the atomic portion of checkout: customer, number, header,
// lines, history, pending payment, coupon redemption, and commission.
func (s *service) assemble(ctx context.Context, input Input) (*models.Order, *models.Payment, error) {
	now := time.Now().UTC()
	subtotal := input.SubtotalCents()

	var (
		order   *models.Order
		payment *models.Payment
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		customer, err := s.findOrCreateCustomer(ctx, repo, input.Customer)
		if err != nil {
			return err
		}

		var coupon *models.Coupon
		discount := 0
		if strings.TrimSpace(input.CouponCode) != "" {
			result, err := s.coupons.Validate(ctx, input.CouponCode, subtotal, input.TotalQty(), customer.ID, now)
			switch {
			case err == nil:
				coupon = result.Coupon
				discount = result.DiscountCents
			case coupons.RejectionReason(err) == coupons.ReasonBelowMinimum:
				// Below-minimum carts check out without the discount; the
				// order is still worth taking.
				s.logger.Warn(ctx, "checkout.coupon_below_minimum")
			default:
				return err
			}
		}

		affiliate, err := s.affiliates.ResolveCode(ctx, input.AffiliateCode)
		if err != nil {
			return err
		}

		last, err := repo.LastOrderNumberForUpdate(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read last order number")
		}
		number, err := NextOrderNumber(last)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate order number")
		}

		total := subtotal - discount
		if total < 0 {
			total = 0
		}

		order = &models.Order{
			ID:            uuid.New(),
			Number:        number,
			CustomerID:    customer.ID,
			Status:        enums.OrderStatusAwaitingPayment,
			PaymentMethod: input.PaymentMethod,
			PaymentStatus: enums.PaymentStatusPending,
			SubtotalCents: subtotal,
			DiscountCents: discount,
			TotalCents:    total,
			CustomerNotes: input.CustomerNotes,
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
		}
		if affiliate != nil {
			order.AffiliateID = &affiliate.ID
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return err
		}
		order.Customer = customer

		items := make([]models.OrderLineItem, 0, len(input.Lines))
		for _, line := range input.Lines {
			items = append(items, models.OrderLineItem{
				ID:               uuid.New(),
				OrderID:          order.ID,
				BookID:           line.BookID,
				Name:             line.Name,
				UnitPriceCents:   line.UnitPriceCents,
				Qty:              line.Qty,
				SubtotalCents:    line.SubtotalCents(),
				CharacterName:    line.CharacterName,
				AvatarDescriptor: line.AvatarDescriptor,
			})
		}
		if err := repo.CreateLineItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
		}

		entry := &models.OrderHistoryEntry{
			ID:        uuid.New(),
			OrderID:   order.ID,
			NewStatus: enums.OrderStatusAwaitingPayment,
			Note:      "order placed",
		}
		if err := repo.CreateHistoryEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create history entry")
		}

		payment = &models.Payment{
			ID:           uuid.New(),
			OrderID:      order.ID,
			AmountCents:  s.chargeAmountCents(total, input),
			Method:       input.PaymentMethod,
			Status:       enums.PaymentStatusPending,
			Installments: max(input.Installments, 1),
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		if coupon != nil {
			if err := s.coupons.Redeem(ctx, tx, coupon, customer.ID, order.ID); err != nil {
				return err
			}
		}
		if affiliate != nil {
			if _, err := s.affiliates.BookCommission(ctx, tx, affiliate, order.ID, customer.ID, total); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, payment, nil
}

func (s *service) findOrCreateCustomer(ctx context.Context, repo Repository, input CustomerInput) (*models.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	customer, err := repo.FindCustomerByEmail(ctx, email)
	if err == nil {
		updates := map[string]any{}
		if customer.Name != input.Name {
			updates["name"] = input.Name
		}
		if customer.Phone != input.Phone {
			updates["phone"] = input.Phone
		}
		if input.CPF != nil {
			updates["cpf"] = *input.CPF
		}
		if len(updates) > 0 {
			if err := repo.UpdateCustomer(ctx, customer.ID, updates); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer")
			}
		}
		return customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find customer")
	}

	customer = &models.Customer{
		ID:    uuid.New(),
		Name:  strings.TrimSpace(input.Name),
		Email: email,
		Phone: strings.TrimSpace(input.Phone),
		CPF:   input.CPF,
	}
	if err := repo.CreateCustomer(ctx, customer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
	}
	return customer, nil
}

// chargeAmountCents applies the installment surcharge schedule to the order
// total. Installments 1-3 carry no surcharge.
func (s *service) chargeAmountCents(totalCents int, input Input) int {
	if input.PaymentMethod != enums.PaymentMethodCard {
		return totalCents
	}
	pct := s.gatewayCfg.CardSurcharges.PercentFor(input.Installments)
	if pct.IsZero() {
		return totalCents
	}
	amount := decimal.NewFromInt(int64(totalCents)).
		Mul(oneHundred.Add(pct)).
		Div(oneHundred).
		Round(0)
	return int(amount.IntPart())
}

func (s *service) initiatePix(ctx context.Context, order *models.Order, payment *models.Payment) {
	expiresAt := time.Now().UTC().Add(s.gatewayCfg.PixTTL)
	charge, err := s.gateway.CreatePixCharge(ctx, gateway.PixChargeParams{
		ReferenceID:   order.Number,
		AmountCents:   payment.AmountCents,
		CustomerName:  customerName(order),
		CustomerEmail: customerEmail(order),
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		s.failPayment(ctx, payment.ID, err)
		return
	}

	updates := map[string]any{
		"gateway_transaction_id": charge.TransactionID,
		"gateway_payload":        charge.RawPayload,
		"pix_qr_base64":          charge.QRCodeBase64,
		"pix_copy_paste":         charge.CopyPaste,
		"expires_at":             charge.ExpiresAt,
	}
	if err := s.repo.UpdatePayment(ctx, payment.ID, updates); err != nil {
		s.logger.Error(ctx, "checkout.pix_persist_failed", err)
	}
}

func (s *service) initiateCard(ctx context.Context, input Input, order *models.Order, payment *models.Payment) {
	charge, err := s.gateway.CreateCardCharge(ctx, gateway.CardChargeParams{
		ReferenceID:   order.Number,
		AmountCents:   payment.AmountCents,
		Installments:  payment.Installments,
		CardToken:     input.CardToken,
		CustomerName:  customerName(order),
		CustomerEmail: customerEmail(order),
	})
	if err != nil {
		s.failPayment(ctx, payment.ID, err)
		return
	}

	if !charge.Approved {
		reason := charge.FailureReason
		if reason == "" {
			reason = "card declined"
		}
		updates := map[string]any{
			"status":                 enums.PaymentStatusFailed,
			"failure_reason":         reason,
			"gateway_transaction_id": charge.TransactionID,
			"gateway_payload":        charge.RawPayload,
		}
		if err := s.repo.UpdatePayment(ctx, payment.ID, updates); err != nil {
			s.logger.Error(ctx, "checkout.card_persist_failed", err)
		}
		return
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()
		updates := map[string]any{
			"status":                 enums.PaymentStatusConfirmed,
			"processed_at":           now,
			"gateway_transaction_id": charge.TransactionID,
			"gateway_payload":        charge.RawPayload,
		}
		if err := repo.UpdatePayment(ctx, payment.ID, updates); err != nil {
			return err
		}
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"payment_status": enums.PaymentStatusConfirmed,
		}); err != nil {
			return err
		}
		return s.orders.TransitionTx(ctx, tx, order.ID, enums.OrderStatusPaymentApproved, "card payment approved", nil)
	})
	if err != nil {
		s.logger.Error(ctx, "checkout.card_confirm_failed", err)
	}
}

// failPayment records a gateway failure on the pending payment. The order
// survives so the customer can retry the charge.
func (s *service) failPayment(ctx context.Context, paymentID uuid.UUID, cause error) {
	s.logger.Error(ctx, "checkout.gateway_failed", cause)
	reason := "payment gateway unavailable"
	if coded := pkgerrors.As(cause); coded != nil {
		reason = coded.Message()
	}
	updates := map[string]any{
		"status":         enums.PaymentStatusFailed,
		"failure_reason": reason,
	}
	if err := s.repo.UpdatePayment(ctx, paymentID, updates); err != nil {
		s.logger.Error(ctx, "checkout.failure_persist_failed", err)
	}
}

func customerName(order *models.Order) string {
	if order.Customer != nil {
		return order.Customer.Name
	}
	return ""
}

func customerEmail(order *models.Order) string {
	if order.Customer != nil {
		return order.Customer.Email
	}
	return ""
}

// isUniqueViolation reports whether the error is a duplicate-key conflict,
// covering the drivers used in production and in tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
