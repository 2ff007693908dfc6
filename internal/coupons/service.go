package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/config"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
)

// Rejection reasons surfaced in validation error details.
const (
	ReasonNotFound           = "not_found"
	ReasonInactive           = "inactive"
	ReasonBelowMinimum       = "below_minimum"
	ReasonUsageCapExceeded   = "usage_cap_exceeded"
	ReasonPerUserCapExceeded = "per_user_cap_exceeded"
)

var oneHundred = decimal.NewFromInt(100)

// ValidationResult is the successful outcome of coupon validation.
type ValidationResult struct {
	Coupon        *models.Coupon
	DiscountCents int
}

// CreateInput carries the admin coupon-creation fields.
type CreateInput struct {
	Code             string
	Kind             enums.DiscountKind
	Value            decimal.Decimal
	MinPurchaseCents int
	UsageCap         *int
	PerCustomerCap   *int
	Active           bool
	StartsAt         *time.Time
	EndsAt           *time.Time
}

// Service evaluates coupons against a subtotal and customer, and performs
// the usage bookkeeping tied to order creation and cancellation.
type Service interface {
	Validate(ctx context.Context, code string, subtotalCents, totalQty int, customerID uuid.UUID, now time.Time) (*ValidationResult, error)
	Redeem(ctx context.Context, tx *gorm.DB, coupon *models.Coupon, customerID, orderID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Create(ctx context.Context, input CreateInput) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
}

type service struct {
	repo        Repository
	progressive config.ProgressiveTable
}

// NewService builds the coupon evaluator.
func NewService(repo Repository, progressive config.ProgressiveTable) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &service{repo: repo, progressive: progressive}, nil
}

func (s *service) Validate(ctx context.Context, code string, subtotalCents, totalQty int, customerID uuid.UUID, now time.Time) (*ValidationResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, rejection(pkgerrors.CodeValidation, "coupon code required", ReasonNotFound)
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rejection(pkgerrors.CodeNotFound, "coupon not found", ReasonNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	if !coupon.Active {
		return nil, rejection(pkgerrors.CodeValidation, "coupon is inactive", ReasonInactive)
	}
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return nil, rejection(pkgerrors.CodeValidation, "coupon is not active yet", ReasonInactive)
	}
	if coupon.EndsAt != nil && now.After(*coupon.EndsAt) {
		return nil, rejection(pkgerrors.CodeValidation, "coupon has expired", ReasonInactive)
	}
	if subtotalCents < coupon.MinPurchaseCents {
		return nil, rejection(pkgerrors.CodeValidation, "subtotal below coupon minimum", ReasonBelowMinimum)
	}
	if coupon.UsageCap != nil && coupon.UsageCount >= *coupon.UsageCap {
		return nil, rejection(pkgerrors.CodeConflict, "coupon usage cap reached", ReasonUsageCapExceeded)
	}
	if coupon.PerCustomerCap != nil {
		used, err := s.repo.CountUsagesByCustomer(ctx, coupon.ID, customerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usages")
		}
		if used >= int64(*coupon.PerCustomerCap) {
			return nil, rejection(pkgerrors.CodeConflict, "coupon already used by this customer", ReasonPerUserCapExceeded)
		}
	}

	discount := s.computeDiscountCents(coupon.Kind, coupon.Value, subtotalCents, totalQty)
	return &ValidationResult{Coupon: coupon, DiscountCents: discount}, nil
}

// Redeem writes the usage row and bumps the counter. Both run on the
// caller's transaction so a coupon is never marked used without its order.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, coupon *models.Coupon, customerID, orderID uuid.UUID) error {
	if coupon == nil {
		return nil
	}
	repo := s.repo.WithTx(tx)

	bumped, err := repo.IncrementUsage(ctx, coupon.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	if !bumped {
		return rejection(pkgerrors.CodeConflict, "coupon usage cap reached", ReasonUsageCapExceeded)
	}

	usage := &models.CouponUsage{
		CouponID:   coupon.ID,
		CustomerID: customerID,
		OrderID:    orderID,
	}
	if err := repo.CreateUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon usage")
	}
	return nil
}

// Release undoes a redemption when its order is cancelled or refunded.
// Orders without a coupon are a no-op.
func (s *service) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	usage, err := repo.FindUsageByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon usage")
	}

	if err := repo.DeleteUsage(ctx, usage.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete coupon usage")
	}
	if err := repo.DecrementUsage(ctx, usage.CouponID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement coupon usage")
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount kind")
	}
	if input.Value.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must not be negative")
	}

	coupon := &models.Coupon{
		Code:             code,
		Kind:             input.Kind,
		Value:            input.Value,
		MinPurchaseCents: input.MinPurchaseCents,
		UsageCap:         input.UsageCap,
		PerCustomerCap:   input.PerCustomerCap,
		Active:           input.Active,
		StartsAt:         input.StartsAt,
		EndsAt:           input.EndsAt,
	}
	created, err := s.repo.Create(ctx, coupon)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return created, nil
}

func (s *service) List(ctx context.Context) ([]models.Coupon, error) {
	coupons, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return coupons, nil
}

func (s *service) computeDiscountCents(kind enums.DiscountKind, value decimal.Decimal, subtotalCents, totalQty int) int {
	subtotal := decimal.NewFromInt(int64(subtotalCents))
	switch kind {
	case enums.DiscountKindPercentage:
		return clampDiscount(subtotal.Mul(value).Div(oneHundred), subtotalCents)
	case enums.DiscountKindFixedAmount:
		// Value is in currency units; a discount never exceeds the subtotal.
		return clampDiscount(value.Mul(oneHundred), subtotalCents)
	case enums.DiscountKindProgressive:
		pct := s.progressive.PercentFor(totalQty)
		return clampDiscount(subtotal.Mul(pct).Div(oneHundred), subtotalCents)
	default:
		return 0
	}
}

func clampDiscount(amount decimal.Decimal, subtotalCents int) int {
	cents := int(amount.Round(0).IntPart())
	if cents < 0 {
		return 0
	}
	if cents > subtotalCents {
		return subtotalCents
	}
	return cents
}

func rejection(code pkgerrors.Code, message, reason string) *pkgerrors.Error {
	return pkgerrors.New(code, message).WithDetails(map[string]string{"reason": reason})
}

// RejectionReason extracts the machine-readable reason from a validation
// rejection, or "" when the error is not one.
func RejectionReason(err error) string {
	coded := pkgerrors.As(err)
	if coded == nil {
		return ""
	}
	details, ok := coded.Details().(map[string]string)
	if !ok {
		return ""
	}
	return details["reason"]
}
