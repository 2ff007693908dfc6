package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/livrinho/backend/internal/orders"
	"github.com/livrinho/backend/pkg/config"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/gateway"
	"github.com/livrinho/backend/pkg/logger"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  number TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'awaiting_payment',
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  subtotal_cents INTEGER NOT NULL,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  coupon_id TEXT,
  affiliate_id TEXT,
  customer_notes TEXT,
  internal_notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_history_entries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  previous_status TEXT,
  new_status TEXT NOT NULL,
  note TEXT NOT NULL DEFAULT '',
  acting_user_id TEXT,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  installments INTEGER NOT NULL DEFAULT 1,
  gateway_transaction_id TEXT,
  gateway_payload TEXT,
  pix_qr_base64 TEXT,
  pix_copy_paste TEXT,
  failure_reason TEXT,
  expires_at DATETIME,
  processed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type paymentsTxRunner struct {
	db *gorm.DB
}

func (r *paymentsTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeCache struct {
	entries map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	value, ok := f.entries[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.entries[key] = value.(string)
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.entries, key)
	}
	return nil
}

func (f *fakeCache) PaymentStatusKey(paymentID string) string {
	return "test:payment_status:" + paymentID
}

type fakeChargeReader struct {
	status string
	paidAt *time.Time
	calls  int
}

func (f *fakeChargeReader) GetCharge(_ context.Context, transactionID string) (*gateway.ChargeStatus, error) {
	f.calls++
	return &gateway.ChargeStatus{
		TransactionID: transactionID,
		Status:        f.status,
		PaidAt:        f.paidAt,
	}, nil
}

type noopReleaser struct {
	released []uuid.UUID
}

func (s *noopReleaser) Release(_ context.Context, _ *gorm.DB, orderID uuid.UUID) error {
	s.released = append(s.released, orderID)
	return nil
}

type noopVoider struct{}

func (s *noopVoider) VoidCommission(_ context.Context, _ *gorm.DB, _ uuid.UUID) error {
	return nil
}

type paymentsFixture struct {
	svc      Service
	db       *gorm.DB
	cache    *fakeCache
	charges  *fakeChargeReader
	releaser *noopReleaser
}

func newPaymentsFixture(t *testing.T, charges *fakeChargeReader) *paymentsFixture {
	t.Helper()

	db := setupPaymentsTestDB(t)
	runner := &paymentsTxRunner{db: db}
	cache := newFakeCache()
	releaser := &noopReleaser{}

	orderSvc, err := orders.NewService(orders.NewRepository(db), runner, releaser, &noopVoider{})
	require.NoError(t, err)

	svc, err := NewService(
		NewRepository(db),
		orders.NewRepository(db),
		runner,
		cache,
		charges,
		orderSvc,
		config.CheckoutConfig{StatusCacheTTL: 3 * time.Second},
		logger.New(logger.Options{ServiceName: "payments-test", Level: zerolog.Disabled, Output: io.Discard}),
	)
	require.NoError(t, err)

	return &paymentsFixture{svc: svc, db: db, cache: cache, charges: charges, releaser: releaser}
}

func seedPixPayment(t *testing.T, db *gorm.DB, expiresAt time.Time) (*models.Order, *models.Payment) {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		Number:        "PED-000010",
		CustomerID:    uuid.New(),
		Status:        enums.OrderStatusAwaitingPayment,
		PaymentMethod: enums.PaymentMethodPix,
		PaymentStatus: enums.PaymentStatusPending,
		SubtotalCents: 9000,
		TotalCents:    9000,
	}
	require.NoError(t, db.Create(order).Error)

	transactionID := "pix_" + order.Number
	payment := &models.Payment{
		ID:                   uuid.New(),
		OrderID:              order.ID,
		AmountCents:          9000,
		Method:               enums.PaymentMethodPix,
		Status:               enums.PaymentStatusPending,
		Installments:         1,
		GatewayTransactionID: &transactionID,
		ExpiresAt:            &expiresAt,
	}
	require.NoError(t, db.Create(payment).Error)
	return order, payment
}

func TestPollStatusCachesGatewayAnswer(t *testing.T) {
	charges := &fakeChargeReader{status: gateway.ChargeStatusPending}
	f := newPaymentsFixture(t, charges)
	_, payment := seedPixPayment(t, f.db, time.Now().UTC().Add(15*time.Minute))

	first, err := f.svc.PollStatus(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, first.Status)
	require.Equal(t, gateway.ChargeStatusPending, first.GatewayStatus)

	second, err := f.svc.PollStatus(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, 1, charges.calls)
}

func TestPollStatusApprovedConfirmsPaymentAndOrder(t *testing.T) {
	paidAt := time.Now().UTC()
	charges := &fakeChargeReader{status: gateway.ChargeStatusApproved, paidAt: &paidAt}
	f := newPaymentsFixture(t, charges)
	order, payment := seedPixPayment(t, f.db, time.Now().UTC().Add(15*time.Minute))

	result, err := f.svc.PollStatus(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusConfirmed, result.Status)

	var reloadedPayment models.Payment
	require.NoError(t, f.db.Where("id = ?", payment.ID).First(&reloadedPayment).Error)
	require.Equal(t, enums.PaymentStatusConfirmed, reloadedPayment.Status)
	require.NotNil(t, reloadedPayment.ProcessedAt)

	var reloadedOrder models.Order
	require.NoError(t, f.db.Where("id = ?", order.ID).First(&reloadedOrder).Error)
	require.Equal(t, enums.OrderStatusPaymentApproved, reloadedOrder.Status)
	require.Equal(t, enums.PaymentStatusConfirmed, reloadedOrder.PaymentStatus)

	entries, err := orders.NewRepository(f.db).FindHistory(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, enums.OrderStatusPaymentApproved, entries[0].NewStatus)
}

func TestPollStatusTerminalPaymentSkipsGateway(t *testing.T) {
	charges := &fakeChargeReader{status: gateway.ChargeStatusApproved}
	f := newPaymentsFixture(t, charges)
	_, payment := seedPixPayment(t, f.db, time.Now().UTC().Add(15*time.Minute))
	require.NoError(t, f.db.Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Update("status", enums.PaymentStatusConfirmed).Error)

	result, err := f.svc.PollStatus(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusConfirmed, result.Status)
	require.Zero(t, charges.calls)
}

func TestPollStatusUnknownPayment(t *testing.T) {
	f := newPaymentsFixture(t, &fakeChargeReader{status: gateway.ChargeStatusPending})

	_, err := f.svc.PollStatus(context.Background(), uuid.New())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestWebhookConfirmsBeforeExpiry(t *testing.T) {
	f := newPaymentsFixture(t, &fakeChargeReader{})
	order, payment := seedPixPayment(t, f.db, time.Now().UTC().Add(15*time.Minute))

	paidAt := time.Now().UTC()
	err := f.svc.ConfirmFromWebhook(context.Background(), WebhookEvent{
		TransactionID: *payment.GatewayTransactionID,
		Status:        gateway.ChargeStatusApproved,
		PaidAt:        &paidAt,
	})
	require.NoError(t, err)

	var reloadedOrder models.Order
	require.NoError(t, f.db.Where("id = ?", order.ID).First(&reloadedOrder).Error)
	require.Equal(t, enums.OrderStatusPaymentApproved, reloadedOrder.Status)

	// A replayed webhook is a no-op.
	err = f.svc.ConfirmFromWebhook(context.Background(), WebhookEvent{
		TransactionID: *payment.GatewayTransactionID,
		Status:        gateway.ChargeStatusApproved,
		PaidAt:        &paidAt,
	})
	require.NoError(t, err)

	entries, err := orders.NewRepository(f.db).FindHistory(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWebhookRejectsConfirmationAfterPixExpiry(t *testing.T) {
	f := newPaymentsFixture(t, &fakeChargeReader{})
	order, payment := seedPixPayment(t, f.db, time.Now().UTC().Add(-time.Minute))

	paidAt := time.Now().UTC()
	err := f.svc.ConfirmFromWebhook(context.Background(), WebhookEvent{
		TransactionID: *payment.GatewayTransactionID,
		Status:        gateway.ChargeStatusApproved,
		PaidAt:        &paidAt,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	var reloadedPayment models.Payment
	require.NoError(t, f.db.Where("id = ?", payment.ID).First(&reloadedPayment).Error)
	require.Equal(t, enums.PaymentStatusPending, reloadedPayment.Status)
	require.NotNil(t, reloadedPayment.FailureReason)

	var reloadedOrder models.Order
	require.NoError(t, f.db.Where("id = ?", order.ID).First(&reloadedOrder).Error)
	require.Equal(t, enums.OrderStatusAwaitingPayment, reloadedOrder.Status)
}

func TestWebhookUnknownTransaction(t *testing.T) {
	f := newPaymentsFixture(t, &fakeChargeReader{})

	err := f.svc.ConfirmFromWebhook(context.Background(), WebhookEvent{
		TransactionID: "pix_missing",
		Status:        gateway.ChargeStatusApproved,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestWebhookDeclineMarksPaymentFailed(t *testing.T) {
	f := newPaymentsFixture(t, &fakeChargeReader{})
	_, payment := seedPixPayment(t, f.db, time.Now().UTC().Add(15*time.Minute))

	err := f.svc.ConfirmFromWebhook(context.Background(), WebhookEvent{
		TransactionID: *payment.GatewayTransactionID,
		Status:        gateway.ChargeStatusDeclined,
	})
	require.NoError(t, err)

	var reloaded models.Payment
	require.NoError(t, f.db.Where("id = ?", payment.ID).First(&reloaded).Error)
	require.Equal(t, enums.PaymentStatusFailed, reloaded.Status)
}

func TestExpireOverdueCancelsOrder(t *testing.T) {
	f := newPaymentsFixture(t, &fakeChargeReader{})
	order, payment := seedPixPayment(t, f.db, time.Now().UTC().Add(-time.Hour))
	_, fresh := seedFreshPixPayment(t, f.db)

	count, err := f.svc.ExpireOverdue(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var reloadedPayment models.Payment
	require.NoError(t, f.db.Where("id = ?", payment.ID).First(&reloadedPayment).Error)
	require.Equal(t, enums.PaymentStatusExpired, reloadedPayment.Status)

	var reloadedOrder models.Order
	require.NoError(t, f.db.Where("id = ?", order.ID).First(&reloadedOrder).Error)
	require.Equal(t, enums.OrderStatusCancelled, reloadedOrder.Status)
	require.Equal(t, []uuid.UUID{order.ID}, f.releaser.released)

	var untouched models.Payment
	require.NoError(t, f.db.Where("id = ?", fresh.ID).First(&untouched).Error)
	require.Equal(t, enums.PaymentStatusPending, untouched.Status)

	entries, err := orders.NewRepository(f.db).FindHistory(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, enums.OrderStatusCancelled, entries[0].NewStatus)
	require.Equal(t, "pix payment expired", entries[0].Note)
}

func seedFreshPixPayment(t *testing.T, db *gorm.DB) (*models.Order, *models.Payment) {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		Number:        "PED-000011",
		CustomerID:    uuid.New(),
		Status:        enums.OrderStatusAwaitingPayment,
		PaymentMethod: enums.PaymentMethodPix,
		PaymentStatus: enums.PaymentStatusPending,
		SubtotalCents: 5000,
		TotalCents:    5000,
	}
	require.NoError(t, db.Create(order).Error)

	transactionID := "pix_" + order.Number
	expiresAt := time.Now().UTC().Add(15 * time.Minute)
	payment := &models.Payment{
		ID:                   uuid.New(),
		OrderID:              order.ID,
		AmountCents:          5000,
		Method:               enums.PaymentMethodPix,
		Status:               enums.PaymentStatusPending,
		Installments:         1,
		GatewayTransactionID: &transactionID,
		ExpiresAt:            &expiresAt,
	}
	require.NoError(t, db.Create(payment).Error)
	return order, payment
}
