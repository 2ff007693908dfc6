package checkout

import (
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/livrinho/backend/internal/cart"
	"github.com/livrinho/backend/pkg/enums"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
)

// LineInput is the normalized line produced once at cart-to-checkout
// conversion. UnitPriceCents already resolves the promotional price, so
// nothing downstream reaches back into the catalog.
type LineInput struct {
	BookID           *uuid.UUID
	Name             string
	UnitPriceCents   int
	Qty              int
	CharacterName    *string
	AvatarDescriptor *string
}

// SubtotalCents is the line's contribution to the order subtotal.
func (l LineInput) SubtotalCents() int {
	return l.UnitPriceCents * l.Qty
}

// LinesFromCart converts a session cart into checkout lines, snapshotting
// the effective price per item.
func LinesFromCart(c cart.Cart) []LineInput {
	lines := make([]LineInput, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, LineInput{
			BookID:           item.BookID,
			Name:             item.Name,
			UnitPriceCents:   item.EffectivePriceCents(),
			Qty:              item.Qty,
			CharacterName:    item.CharacterName,
			AvatarDescriptor: item.AvatarDescriptor,
		})
	}
	return lines
}

// CustomerInput carries the buyer identity submitted at checkout.
type CustomerInput struct {
	Name  string
	Email string
	Phone string
	CPF   *string
}

// Input is the full checkout request handed to the assembler.
type Input struct {
	Customer      CustomerInput
	Lines         []LineInput
	CouponCode    string
	AffiliateCode string
	PaymentMethod enums.PaymentMethod
	Installments  int
	CardToken     string
	CustomerNotes *string
}

// SubtotalCents sums the line subtotals.
func (in Input) SubtotalCents() int {
	total := 0
	for _, line := range in.Lines {
		total += line.SubtotalCents()
	}
	return total
}

// TotalQty sums the line quantities, feeding the progressive coupon table.
func (in Input) TotalQty() int {
	qty := 0
	for _, line := range in.Lines {
		qty += line.Qty
	}
	return qty
}

func (in Input) validate(maxInstallments int) error {
	if len(in.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for _, line := range in.Lines {
		if strings.TrimSpace(line.Name) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "line item name required")
		}
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line item quantity must be positive")
		}
		if line.UnitPriceCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line item price cannot be negative")
		}
	}
	if strings.TrimSpace(in.Customer.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Customer.Email)); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email invalid")
	}
	if strings.TrimSpace(in.Customer.Phone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}
	if !in.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if in.PaymentMethod == enums.PaymentMethodCard {
		if strings.TrimSpace(in.CardToken) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "card token required")
		}
		if in.Installments < 1 || in.Installments > maxInstallments {
			return pkgerrors.New(pkgerrors.CodeValidation, "installments out of range")
		}
	}
	return nil
}
