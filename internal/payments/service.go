package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/config"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/gateway"
	"github.com/livrinho/backend/pkg/logger"
)

const sweepBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type statusCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	PaymentStatusKey(paymentID string) string
}

type chargeReader interface {
	GetCharge(ctx context.Context, transactionID string) (*gateway.ChargeStatus, error)
}

type orderTransitioner interface {
	TransitionTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, to enums.OrderStatus, note string, actingUserID *uuid.UUID) error
}

type orderFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// StatusResult is the polled state of a payment, served from a short-lived
// cache between gateway round trips.
type StatusResult struct {
	PaymentID     uuid.UUID           `json:"payment_id"`
	Status        enums.PaymentStatus `json:"status"`
	GatewayStatus string              `json:"gateway_status,omitempty"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

// WebhookEvent is the parsed gateway confirmation callback. Signature
// verification happens at the transport layer before this is built.
type WebhookEvent struct {
	TransactionID string
	Status        string
	PaidAt        *time.Time
}

// Service exposes payment status polling, webhook confirmation, and the
// Pix expiry sweep.
type Service interface {
	PollStatus(ctx context.Context, paymentID uuid.UUID) (*StatusResult, error)
	ConfirmFromWebhook(ctx context.Context, event WebhookEvent) error
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

type service struct {
	repo     Repository
	orders   orderFinder
	tx       txRunner
	cache    statusCache
	gateway  chargeReader
	orderSvc orderTransitioner
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewService builds the payments service with the required dependencies.
func NewService(
	repo Repository,
	orderRepo orderFinder,
	tx txRunner,
	cache statusCache,
	charges chargeReader,
	orderSvc orderTransitioner,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cache == nil {
		return nil, fmt.Errorf("status cache required")
	}
	if charges == nil {
		return nil, fmt.Errorf("gateway charge reader required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := cfg.StatusCacheTTL
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &service{
		repo:     repo,
		orders:   orderRepo,
		tx:       tx,
		cache:    cache,
		gateway:  charges,
		orderSvc: orderSvc,
		cacheTTL: ttl,
		logger:   logg,
	}, nil
}

// PollStatus answers the storefront's payment polling loop. Terminal local
// statuses short-circuit; gateway answers are cached briefly so a tight
// polling client does not hammer the provider.
func (s *service) PollStatus(ctx context.Context, paymentID uuid.UUID) (*StatusResult, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	if payment.Status != enums.PaymentStatusPending || payment.GatewayTransactionID == nil {
		return localResult(payment), nil
	}

	key := s.cache.PaymentStatusKey(payment.ID.String())
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var result StatusResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			return &result, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn(ctx, "payments.status_cache_read_failed")
	}

	charge, err := s.gateway.GetCharge(ctx, *payment.GatewayTransactionID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{
		PaymentID:     payment.ID,
		Status:        payment.Status,
		GatewayStatus: charge.Status,
		ExpiresAt:     payment.ExpiresAt,
		PaidAt:        charge.PaidAt,
	}

	switch charge.Status {
	case gateway.ChargeStatusApproved:
		if err := s.confirm(ctx, payment, charge.PaidAt); err != nil {
			return nil, err
		}
		result.Status = enums.PaymentStatusConfirmed
	case gateway.ChargeStatusDeclined:
		if err := s.markFailed(ctx, payment, "declined by gateway"); err != nil {
			return nil, err
		}
		result.Status = enums.PaymentStatusFailed
	case gateway.ChargeStatusExpired:
		if err := s.repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":         enums.PaymentStatusExpired,
			"failure_reason": "pix charge expired",
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment expired")
		}
		result.Status = enums.PaymentStatusExpired
	}

	if encoded, err := json.Marshal(result); err == nil {
		if err := s.cache.Set(ctx, key, string(encoded), s.cacheTTL); err != nil {
			s.logger.Warn(ctx, "payments.status_cache_write_failed")
		}
	}
	return result, nil
}

// ConfirmFromWebhook applies a gateway callback. Confirmations arriving
/// after the Pix expiry are rejected: the payment is flagged for review and
// the order is left untouched.
func (s *service) ConfirmFromWebhook(ctx context.Context, event WebhookEvent) error {
	payment, err := s.repo.FindByGatewayTransactionID(ctx, event.TransactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "unknown gateway transaction")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	switch event.Status {
	case gateway.ChargeStatusApproved:
		return s.confirm(ctx, payment, event.PaidAt)
	case gateway.ChargeStatusDeclined:
		return s.markFailed(ctx, payment, "declined by gateway")
	case gateway.ChargeStatusExpired:
		if payment.Status != enums.PaymentStatusPending {
			return nil
		}
		return s.repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":         enums.PaymentStatusExpired,
			"failure_reason": "pix charge expired",
		})
	default:
		s.logger.Warn(ctx, fmt.Sprintf("payments.webhook_ignored status=%s", event.Status))
		return nil
	}
}

// ExpireOverdue marks pending Pix payments past their expiry and cancels
// their orders when still awaiting payment. Returns how many payments were
// expired.
func (s *service) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		batch, err := s.repo.FindExpiredPendingPix(ctx, now, sweepBatchSize)
		if err != nil {
			return total, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired payments")
		}
		if len(batch) == 0 {
			return total, nil
		}

		processed := 0
		for i := range batch {
			if err := s.expireOne(ctx, &batch[i]); err != nil {
				s.logger.Error(ctx, "payments.expire_failed", err)
				continue
			}
			processed++
			total++
		}
		if processed == 0 || len(batch) < sweepBatchSize {
			return total, nil
		}
	}
}

func (s *service) expireOne(ctx context.Context, payment *models.Payment) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":         enums.PaymentStatusExpired,
			"failure_reason": "pix charge expired",
		}); err != nil {
			return err
		}

		order, err := s.orders.FindByID(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusAwaitingPayment {
			return nil
		}
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"payment_status": enums.PaymentStatusExpired,
		}); err != nil {
			return err
		}
		return s.orderSvc.TransitionTx(ctx, tx, order.ID, enums.OrderStatusCancelled, "pix payment expired", nil)
	})
	if err != nil {
		return err
	}
	s.invalidateCache(ctx, payment.ID)
	return nil
}

// confirm persists an approved charge: payment confirmed, order payment
// status mirrored, and the order moved to payment_approved, all in one
// transaction.
func (s *service) confirm(ctx context.Context, payment *models.Payment, paidAt *time.Time) error {
	if payment.Status == enums.PaymentStatusConfirmed {
		return nil
	}

	now := time.Now().UTC()
	effective := now
	if paidAt != nil {
		effective = paidAt.UTC()
	}
	if payment.Method == enums.PaymentMethodPix && payment.ExpiresAt != nil && effective.After(*payment.ExpiresAt) {
		if err := s.repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"failure_reason": "confirmation received after pix expiry",
		}); err != nil {
			s.logger.Error(ctx, "payments.flag_late_confirmation_failed", err)
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "confirmation received after pix expiry")
	}

	processedAt := effective
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":       enums.PaymentStatusConfirmed,
			"processed_at": processedAt,
		}); err != nil {
			return err
		}
		if err := repo.UpdateOrder(ctx, payment.OrderID, map[string]any{
			"payment_status": enums.PaymentStatusConfirmed,
		}); err != nil {
			return err
		}
		return s.orderSvc.TransitionTx(ctx, tx, payment.OrderID, enums.OrderStatusPaymentApproved, "payment confirmed", nil)
	})
	if err != nil {
		return err
	}
	s.invalidateCache(ctx, payment.ID)
	return nil
}

func (s *service) markFailed(ctx context.Context, payment *models.Payment, reason string) error {
	if payment.Status != enums.PaymentStatusPending {
		return nil
	}
	err := s.repo.UpdatePayment(ctx, payment.ID, map[string]any{
		"status":         enums.PaymentStatusFailed,
		"failure_reason": reason,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	s.invalidateCache(ctx, payment.ID)
	return nil
}

func (s *service) invalidateCache(ctx context.Context, paymentID uuid.UUID) {
	key := s.cache.PaymentStatusKey(paymentID.String())
	if err := s.cache.Del(ctx, key); err != nil {
		s.logger.Warn(ctx, "payments.status_cache_invalidate_failed")
	}
}

func localResult(payment *models.Payment) *StatusResult {
	return &StatusResult{
		PaymentID: payment.ID,
		Status:    payment.Status,
		ExpiresAt: payment.ExpiresAt,
		PaidAt:    payment.ProcessedAt,
	}
}
