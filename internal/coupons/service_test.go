package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/config"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
)

type stubRepo struct {
	coupon       *models.Coupon
	usagesByUser int64
	incremented  int
	incrementOK  bool
	usages       []*models.CouponUsage
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindByCode(_ context.Context, code string) (*models.Coupon, error) {
	if s.coupon == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.coupon, nil
}

func (s *stubRepo) CountUsagesByCustomer(_ context.Context, _, _ uuid.UUID) (int64, error) {
	return s.usagesByUser, nil
}

func (s *stubRepo) IncrementUsage(_ context.Context, _ uuid.UUID) (bool, error) {
	if !s.incrementOK {
		return false, nil
	}
	s.incremented++
	return true, nil
}

func (s *stubRepo) DecrementUsage(_ context.Context, _ uuid.UUID) error {
	s.incremented--
	return nil
}

func (s *stubRepo) CreateUsage(_ context.Context, usage *models.CouponUsage) error {
	s.usages = append(s.usages, usage)
	return nil
}

func (s *stubRepo) FindUsageByOrder(_ context.Context, orderID uuid.UUID) (*models.CouponUsage, error) {
	for _, usage := range s.usages {
		if usage.OrderID == orderID {
			return usage, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) DeleteUsage(_ context.Context, usageID uuid.UUID) error {
	kept := s.usages[:0]
	for _, usage := range s.usages {
		if usage.ID != usageID {
			kept = append(kept, usage)
		}
	}
	s.usages = kept
	return nil
}

func (s *stubRepo) Create(_ context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	return coupon, nil
}

func (s *stubRepo) List(_ context.Context) ([]models.Coupon, error) {
	return nil, nil
}

func teste10() *models.Coupon {
	cap := 100
	return &models.Coupon{
		ID:               uuid.New(),
		Code:             "TESTE10",
		Kind:             enums.DiscountKindPercentage,
		Value:            decimal.NewFromInt(10),
		MinPurchaseCents: 5000,
		UsageCap:         &cap,
		Active:           true,
	}
}

func newServiceWith(t *testing.T, repo Repository) Service {
	t.Helper()
	table := config.ProgressiveTable{}
	require.NoError(t, table.Decode("1:0,3:5,5:10,10:15"))
	svc, err := NewService(repo, table)
	require.NoError(t, err)
	return svc
}

func TestValidatePercentageTeste10(t *testing.T) {
	svc := newServiceWith(t, &stubRepo{coupon: teste10(), incrementOK: true})

	// subtotal 100.00 with TESTE10 discounts 10.00.
	result, err := svc.Validate(context.Background(), "teste10", 10000, 1, uuid.New(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1000, result.DiscountCents)
}

func TestValidateBelowMinimum(t *testing.T) {
	svc := newServiceWith(t, &stubRepo{coupon: teste10()})

	_, err := svc.Validate(context.Background(), "TESTE10", 4000, 1, uuid.New(), time.Now())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, map[string]string{"reason": ReasonBelowMinimum}, typed.Details())
}

func TestValidateNotFound(t *testing.T) {
	svc := newServiceWith(t, &stubRepo{})

	_, err := svc.Validate(context.Background(), "NOPE", 10000, 1, uuid.New(), time.Now())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestValidateInactiveAndWindow(t *testing.T) {
	now := time.Now()

	inactive := teste10()
	inactive.Active = false
	svc := newServiceWith(t, &stubRepo{coupon: inactive})
	_, err := svc.Validate(context.Background(), "TESTE10", 10000, 1, uuid.New(), now)
	require.Equal(t, map[string]string{"reason": ReasonInactive}, pkgerrors.As(err).Details())

	expired := teste10()
	past := now.Add(-time.Hour)
	expired.EndsAt = &past
	svc = newServiceWith(t, &stubRepo{coupon: expired})
	_, err = svc.Validate(context.Background(), "TESTE10", 10000, 1, uuid.New(), now)
	require.Equal(t, map[string]string{"reason": ReasonInactive}, pkgerrors.As(err).Details())

	early := teste10()
	future := now.Add(time.Hour)
	early.StartsAt = &future
	svc = newServiceWith(t, &stubRepo{coupon: early})
	_, err = svc.Validate(context.Background(), "TESTE10", 10000, 1, uuid.New(), now)
	require.Equal(t, map[string]string{"reason": ReasonInactive}, pkgerrors.As(err).Details())
}

func TestValidateUsageCapExceeded(t *testing.T) {
	coupon := teste10()
	coupon.UsageCount = 100
	svc := newServiceWith(t, &stubRepo{coupon: coupon})

	_, err := svc.Validate(context.Background(), "TESTE10", 10000, 1, uuid.New(), time.Now())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
	require.Equal(t, map[string]string{"reason": ReasonUsageCapExceeded}, typed.Details())
}

func TestValidatePerUserCapExceeded(t *testing.T) {
	coupon := teste10()
	perUser := 1
	coupon.PerCustomerCap = &perUser
	svc := newServiceWith(t, &stubRepo{coupon: coupon, usagesByUser: 1})

	_, err := svc.Validate(context.Background(), "TESTE10", 10000, 1, uuid.New(), time.Now())
	require.Equal(t, map[string]string{"reason": ReasonPerUserCapExceeded}, pkgerrors.As(err).Details())
}

func TestValidateIsIdempotent(t *testing.T) {
	svc := newServiceWith(t, &stubRepo{coupon: teste10()})
	customerID := uuid.New()
	now := time.Now()

	first, err := svc.Validate(context.Background(), "TESTE10", 10000, 1, customerID, now)
	require.NoError(t, err)
	second, err := svc.Validate(context.Background(), "TESTE10", 10000, 1, customerID, now)
	require.NoError(t, err)
	require.Equal(t, first.DiscountCents, second.DiscountCents)
}

func TestFixedAmountNeverExceedsSubtotal(t *testing.T) {
	coupon := teste10()
	coupon.Kind = enums.DiscountKindFixedAmount
	coupon.Value = decimal.NewFromInt(30)
	coupon.MinPurchaseCents = 0
	svc := newServiceWith(t, &stubRepo{coupon: coupon})

	result, err := svc.Validate(context.Background(), "TESTE10", 2000, 1, uuid.New(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 2000, result.DiscountCents)

	result, err = svc.Validate(context.Background(), "TESTE10", 10000, 1, uuid.New(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 3000, result.DiscountCents)
}

func TestProgressiveDiscountUsesQuantityTiers(t *testing.T) {
	coupon := teste10()
	coupon.Kind = enums.DiscountKindProgressive
	coupon.MinPurchaseCents = 0
	svc := newServiceWith(t, &stubRepo{coupon: coupon})

	// 1 unit: 0%, 3 units: 5%, 5 units: 10%, 10+: 15%.
	result, err := svc.Validate(context.Background(), "TESTE10", 10000, 1, uuid.New(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, result.DiscountCents)

	result, err = svc.Validate(context.Background(), "TESTE10", 10000, 4, uuid.New(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 500, result.DiscountCents)

	result, err = svc.Validate(context.Background(), "TESTE10", 10000, 12, uuid.New(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1500, result.DiscountCents)
}

func TestRedeemAndRelease(t *testing.T) {
	repo := &stubRepo{coupon: teste10(), incrementOK: true}
	svc := newServiceWith(t, repo)
	ctx := context.Background()
	orderID := uuid.New()

	require.NoError(t, svc.Redeem(ctx, nil, repo.coupon, uuid.New(), orderID))
	require.Equal(t, 1, repo.incremented)
	require.Len(t, repo.usages, 1)

	require.NoError(t, svc.Release(ctx, nil, orderID))
	require.Equal(t, 0, repo.incremented)
	require.Empty(t, repo.usages)

	// Releasing an order without a coupon is a no-op.
	require.NoError(t, svc.Release(ctx, nil, uuid.New()))
}

func TestRedeemFailsWhenCapRace(t *testing.T) {
	repo := &stubRepo{coupon: teste10(), incrementOK: false}
	svc := newServiceWith(t, repo)

	err := svc.Redeem(context.Background(), nil, repo.coupon, uuid.New(), uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}
