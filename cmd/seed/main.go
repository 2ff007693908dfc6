package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/livrinho/backend/pkg/config"
	"github.com/livrinho/backend/pkg/db"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	"github.com/livrinho/backend/pkg/logger"
)

// The demo PIX charge gets a long expiry so the sample order survives a
// weekend of local development before the sweep cancels it.
const demoPixTTL = 24 * time.Hour

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	if cfg.App.IsProd() {
		logg.Error(ctx, "refusing to seed a production database", fmt.Errorf("app env is %q", cfg.App.Env))
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := seedBooks(tx); err != nil {
			return err
		}
		if err := seedCoupon(tx); err != nil {
			return err
		}
		affiliate, err := seedAffiliate(tx)
		if err != nil {
			return err
		}
		return seedDemoOrder(tx, affiliate)
	}); err != nil {
		logg.Error(ctx, "seed failed", err)
		os.Exit(1)
	}

	logg.Info(ctx, "seed completed")
}

func seedBooks(tx *gorm.DB) error {
	promo := 6990
	books := []models.Book{
		{
			ID:          uuid.New(),
			Title:       "A Aventura de Circo",
			Slug:        "aventura-de-circo",
			PriceCents:  8990,
			CoverPath:   "covers/circo.jpg",
			AssetPrefix: "books/circo",
			Active:      true,
		},
		{
			ID:                    uuid.New(),
			Title:                 "O Pequeno Astronauta",
			Slug:                  "pequeno-astronauta",
			PriceCents:            8990,
			PromotionalPriceCents: &promo,
			CoverPath:             "covers/astronauta.jpg",
			AssetPrefix:           "books/astronauta",
			Active:                true,
		},
		{
			ID:          uuid.New(),
			Title:       "Reino dos Dinossauros",
			Slug:        "reino-dos-dinossauros",
			PriceCents:  9990,
			CoverPath:   "covers/dinossauros.jpg",
			AssetPrefix: "books/dinossauros",
			Active:      true,
		},
	}
	for _, book := range books {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).Create(&book).Error; err != nil {
			return fmt.Errorf("seeding book %s: %w", book.Slug, err)
		}
	}
	return nil
}

func seedCoupon(tx *gorm.DB) error {
	usageCap := 100
	coupon := models.Coupon{
		ID:               uuid.New(),
		Code:             "TESTE10",
		Kind:             enums.DiscountKindPercentage,
		Value:            decimal.NewFromFloat(10),
		MinPurchaseCents: 5000,
		UsageCap:         &usageCap,
		Active:           true,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&coupon).Error; err != nil {
		return fmt.Errorf("seeding coupon: %w", err)
	}
	return nil
}

func seedAffiliate(tx *gorm.DB) (*models.Affiliate, error) {
	affiliate := models.Affiliate{
		ID:                       uuid.New(),
		Name:                     "Parceiro Demo",
		Code:                     "PARCEIRO",
		DefaultCommissionPercent: decimal.NewFromFloat(10),
		Active:                   true,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&affiliate).Error; err != nil {
		return nil, fmt.Errorf("seeding affiliate: %w", err)
	}
	var stored models.Affiliate
	if err := tx.Where("code = ?", affiliate.Code).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("loading seeded affiliate: %w", err)
	}
	return &stored, nil
}

// seedDemoOrder creates a full awaiting-payment aggregate so the admin
// listing, the status page, and the expiry sweep all have something to
// show on a fresh database.
func seedDemoOrder(tx *gorm.DB, affiliate *models.Affiliate) error {
	var existing int64
	if err := tx.Model(&models.Order{}).Where("number = ?", "PED-000001").Count(&existing).Error; err != nil {
		return fmt.Errorf("checking demo order: %w", err)
	}
	if existing > 0 {
		return nil
	}

	customer := models.Customer{
		ID:    uuid.New(),
		Name:  "Cliente Demo",
		Email: "demo@livrinho.com.br",
		Phone: "+55 11 99999-0000",
	}
	if err := tx.Create(&customer).Error; err != nil {
		return fmt.Errorf("seeding customer: %w", err)
	}

	order := models.Order{
		ID:            uuid.New(),
		Number:        "PED-000001",
		CustomerID:    customer.ID,
		Status:        enums.OrderStatusAwaitingPayment,
		PaymentMethod: enums.PaymentMethodPix,
		PaymentStatus: enums.PaymentStatusPending,
		SubtotalCents: 8990,
		DiscountCents: 0,
		TotalCents:    8990,
		AffiliateID:   &affiliate.ID,
	}
	if err := tx.Create(&order).Error; err != nil {
		return fmt.Errorf("seeding order: %w", err)
	}

	characterName := "Lia"
	item := models.OrderLineItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		Name:           "A Aventura de Circo",
		UnitPriceCents: 8990,
		Qty:            1,
		SubtotalCents:  8990,
		CharacterName:  &characterName,
	}
	if err := tx.Create(&item).Error; err != nil {
		return fmt.Errorf("seeding line item: %w", err)
	}

	history := models.OrderHistoryEntry{
		ID:        uuid.New(),
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusAwaitingPayment,
		Note:      "order placed",
	}
	if err := tx.Create(&history).Error; err != nil {
		return fmt.Errorf("seeding history entry: %w", err)
	}

	txID := "pix_demo_PED-000001"
	copyPaste := "00020126580014BR.GOV.BCB.PIX0136demo-livrinho5204000053039865802BR"
	expiresAt := time.Now().UTC().Add(demoPixTTL)
	payment := models.Payment{
		ID:                   uuid.New(),
		OrderID:              order.ID,
		AmountCents:          8990,
		Method:               enums.PaymentMethodPix,
		Status:               enums.PaymentStatusPending,
		Installments:         1,
		GatewayTransactionID: &txID,
		PixCopyPaste:         &copyPaste,
		ExpiresAt:            &expiresAt,
	}
	if err := tx.Create(&payment).Error; err != nil {
		return fmt.Errorf("seeding payment: %w", err)
	}

	commission := models.AffiliateSale{
		ID:                uuid.New(),
		AffiliateID:       affiliate.ID,
		OrderID:           order.ID,
		CustomerID:        customer.ID,
		SaleValueCents:    8990,
		CommissionPercent: affiliate.DefaultCommissionPercent,
		CommissionCents:   899,
		Status:            enums.CommissionStatusPending,
		EventType:         "sale",
	}
	if err := tx.Create(&commission).Error; err != nil {
		return fmt.Errorf("seeding commission: %w", err)
	}
	return nil
}
