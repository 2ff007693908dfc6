package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CouponReleaser returns a redeemed coupon when its order is reversed.
type CouponReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// CommissionVoider cancels the affiliate commission of a reversed order.
type CommissionVoider interface {
	VoidCommission(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// AdminUpdateInput captures the admin order-edit request.
type AdminUpdateInput struct {
	OrderID       uuid.UUID
	Status        *enums.OrderStatus
	InternalNotes *string
	Note          string
	ActingUserID  *uuid.UUID
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	AdminUpdate(ctx context.Context, input AdminUpdateInput) (*models.Order, error)
	AdminDelete(ctx context.Context, orderID uuid.UUID) error
	Transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, note string, actingUserID *uuid.UUID) error
	TransitionTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, to enums.OrderStatus, note string, actingUserID *uuid.UUID) error
	Detail(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	coupons     CouponReleaser
	commissions CommissionVoider
}

// NewService builds the orders service with the required dependencies.
func NewService(repo Repository, tx txRunner, coupons CouponReleaser, commissions CommissionVoider) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon releaser required")
	}
	if commissions == nil {
		return nil, fmt.Errorf("commission voider required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		coupons:     coupons,
		commissions: commissions,
	}, nil
}

// AdminUpdate applies a back-office edit: optional status transition and
// internal notes, with the history entry appended in the same transaction.
func (s *service) AdminUpdate(ctx context.Context, input AdminUpdateInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if input.Status == nil && input.InternalNotes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		updates := map[string]any{}
		if input.InternalNotes != nil {
			updates["internal_notes"] = *input.InternalNotes
		}

		if input.Status != nil && *input.Status != order.Status {
			if err := s.applyTransition(ctx, tx, order, *input.Status, input.Note, input.ActingUserID); err != nil {
				return err
			}
		}

		if len(updates) > 0 {
			if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Detail(ctx, input.OrderID)
}

// AdminDelete permanently removes an order and its owned rows. The coupon
// usage and affiliate commission are reversed first when the order never
// reached a reversal state, so the usage count stays consistent after the
// cascade delete.
func (s *service) AdminDelete(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if !reversesSideEffects(order.Status) {
			if err := s.coupons.Release(ctx, tx, order.ID); err != nil {
				return err
			}
			if err := s.commissions.VoidCommission(ctx, tx, order.ID); err != nil {
				return err
			}
		}

		if err := repo.DeleteOrder(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		return nil
	})
}

// Transition moves an order to a new status in its own transaction.
func (s *service) Transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, note string, actingUserID *uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.TransitionTx(ctx, tx, orderID, to, note, actingUserID)
	})
}

// TransitionTx moves an order to a new status on the caller's transaction.
// Used by the payments layer so a confirmation and its transition commit
// together.
func (s *service) TransitionTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, to enums.OrderStatus, note string, actingUserID *uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return s.applyTransition(ctx, tx, order, to, note, actingUserID)
}

// applyTransition is the single path for status changes: transition check,
// status update, exactly one history entry, and reversal side effects.
func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, note string, actingUserID *uuid.UUID) error {
	if order.Status == to {
		return nil
	}
	if !CanTransition(order.Status, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order cannot move from %s to %s", order.Status, to))
	}

	repo := s.repo.WithTx(tx)
	previous := order.Status

	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": to}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	entry := &models.OrderHistoryEntry{
		ID:             uuid.New(),
		OrderID:        order.ID,
		PreviousStatus: &previous,
		NewStatus:      to,
		Note:           note,
		ActingUserID:   actingUserID,
	}
	if err := repo.CreateHistoryEntry(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append history entry")
	}

	if reversesSideEffects(to) {
		if err := s.coupons.Release(ctx, tx, order.ID); err != nil {
			return err
		}
		if err := s.commissions.VoidCommission(ctx, tx, order.ID); err != nil {
			return err
		}
	}

	order.Status = to
	return nil
}

func (s *service) Detail(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order detail")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}
