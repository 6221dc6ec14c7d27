package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/models"
	"github.com/Keoroanthony/shopnow-api/internal/permissions"
)

type CreditAction string

const (
	ActionApprove  CreditAction = "approve"
	ActionReject   CreditAction = "reject"
	ActionMarkPaid CreditAction = "mark_paid"
)

type Decision struct {
	OrderID uint
	Action  CreditAction
	Note    string
}

// DecisionResult is what a committed credit decision changed.
type DecisionResult struct {
	Order            *models.Order
	FromCreditStatus models.CreditStatus
	FromStatus       models.OrderStatus
	StatusChanged    bool
}

type transition struct {
	from   models.CreditStatus
	to     models.CreditStatus
	status func(models.OrderStatus) (models.OrderStatus, bool)
}

var transitions = map[CreditAction]transition{
	ActionApprove: {
		from: models.CreditRequested,
		to:   models.CreditApproved,
		status: func(cur models.OrderStatus) (models.OrderStatus, bool) {
			return models.OrderProcessing, cur == models.OrderPending
		},
	},
	// Rejecting does not put the items back in stock.
	ActionReject: {
		from: models.CreditRequested,
		to:   models.CreditRejected,
		status: func(models.OrderStatus) (models.OrderStatus, bool) {
			return models.OrderCancelled, true
		},
	},
	ActionMarkPaid: {
		from: models.CreditApproved,
		to:   models.CreditPaid,
		status: func(models.OrderStatus) (models.OrderStatus, bool) {
			return models.OrderCompleted, true
		},
	},
}

// DecideCredit applies a shop owner's or staff member's decision to a
// credit request. Checks run in order: unknown order, missing Decide
// capability, unknown action, illegal credit state, cancelled order. A
// failed check leaves
// the order untouched.
func DecideCredit(ctx context.Context, database *gorm.DB, caller *models.User, d Decision) (*DecisionResult, error) {
	var res DecisionResult
	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, d.OrderID)
		if err != nil {
			return err
		}
		if !permissions.Resolve(caller, order).Decide {
			return apperr.Forbidden("only staff or the shop owner can decide on this credit")
		}
		t, ok := transitions[d.Action]
		if !ok {
			return apperr.Validation("invalid action %q", d.Action)
		}
		if order.CreditStatus != t.from {
			return apperr.Validation("cannot %s credit in status %s", d.Action, order.CreditStatus)
		}
		// A cancelled order has already been restocked; only rejecting the
		// outstanding request is still meaningful.
		if order.Status == models.OrderCancelled && d.Action != ActionReject {
			return apperr.Validation("cannot %s credit of a cancelled order", d.Action)
		}

		res.FromCreditStatus = order.CreditStatus
		res.FromStatus = order.Status

		now := time.Now().UTC()
		err = tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
			"credit_status":         t.to,
			"credit_decision_at":    now,
			"credit_decision_by_id": caller.ID,
			"credit_note":           d.Note,
		}).Error
		if err != nil {
			return fmt.Errorf("record credit decision on order %d: %w", order.ID, err)
		}
		order.CreditStatus = t.to
		order.CreditDecisionAt = &now
		order.CreditDecisionByID = &caller.ID
		order.CreditNote = d.Note

		if next, apply := t.status(order.Status); apply {
			if res.StatusChanged, err = SetStatus(tx, order, next); err != nil {
				return err
			}
		}
		res.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
