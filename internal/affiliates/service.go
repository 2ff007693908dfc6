package affiliates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
)

const saleEventType = "sale"

var oneHundred = decimal.NewFromInt(100)

// CreateInput carries the admin affiliate-creation fields.
type CreateInput struct {
	Name                     string
	Code                     string
	DefaultCommissionPercent decimal.Decimal
	Active                   bool
}

// Service resolves affiliate attribution and books commissions.
type Service interface {
	ResolveCode(ctx context.Context, code string) (*models.Affiliate, error)
	BookCommission(ctx context.Context, tx *gorm.DB, affiliate *models.Affiliate, orderID, customerID uuid.UUID, saleValueCents int) (*models.AffiliateSale, error)
	VoidCommission(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Create(ctx context.Context, input CreateInput) (*models.Affiliate, error)
	List(ctx context.Context) ([]models.Affiliate, error)
}

type service struct {
	repo Repository
}

// NewService builds the affiliates service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("affiliates repository required")
	}
	return &service{repo: repo}, nil
}

// ResolveCode returns the active affiliate for a code, or nil for a blank
// or unknown code. Unattributable checkouts proceed without commission.
func (s *service) ResolveCode(ctx context.Context, code string) (*models.Affiliate, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	affiliate, err := s.repo.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load affiliate")
	}
	return affiliate, nil
}

// BookCommission writes the commission record on the caller's transaction.
// The percentage is copied from the affiliate at this instant, so later rate
// changes never move the booked amount.
func (s *service) BookCommission(ctx context.Context, tx *gorm.DB, affiliate *models.Affiliate, orderID, customerID uuid.UUID, saleValueCents int) (*models.AffiliateSale, error) {
	if affiliate == nil {
		return nil, nil
	}

	sale := &models.AffiliateSale{
		ID:                uuid.New(),
		AffiliateID:       affiliate.ID,
		OrderID:           orderID,
		CustomerID:        customerID,
		SaleValueCents:    saleValueCents,
		CommissionPercent: affiliate.DefaultCommissionPercent,
		CommissionCents:   CommissionCents(saleValueCents, affiliate.DefaultCommissionPercent),
		Status:            enums.CommissionStatusPending,
		EventType:         saleEventType,
	}

	created, err := s.repo.WithTx(tx).CreateSale(ctx, sale)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "book affiliate commission")
	}
	return created, nil
}

// VoidCommission cancels the commission of an order, if one exists.
func (s *service) VoidCommission(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	sale, err := repo.FindSaleByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load affiliate sale")
	}
	if sale.Status == enums.CommissionStatusCancelled {
		return nil
	}
	if err := repo.UpdateSaleStatus(ctx, sale.ID, enums.CommissionStatusCancelled); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void affiliate commission")
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Affiliate, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "affiliate code required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "affiliate name required")
	}
	if input.DefaultCommissionPercent.IsNegative() || input.DefaultCommissionPercent.GreaterThan(oneHundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission percent must be between 0 and 100")
	}

	affiliate := &models.Affiliate{
		Name:                     input.Name,
		Code:                     code,
		DefaultCommissionPercent: input.DefaultCommissionPercent,
		Active:                   input.Active,
	}
	created, err := s.repo.Create(ctx, affiliate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create affiliate")
	}
	return created, nil
}

func (s *service) List(ctx context.Context) ([]models.Affiliate, error) {
	affiliates, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list affiliates")
	}
	return affiliates, nil
}

// CommissionCents computes saleValue * percent / 100 rounded to the cent.
func CommissionCents(saleValueCents int, percent decimal.Decimal) int {
	return int(decimal.NewFromInt(int64(saleValueCents)).
		Mul(percent).
		Div(oneHundred).
		Round(0).
		IntPart())
}
