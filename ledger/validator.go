/*
validator.go - Transaction validation rules

PURPOSE:
  Decides whether a proposed transaction is structurally well-formed for
  its declared type. Runs before every create and before every update that
  touches a reference field. Validation is pure decision logic: it reads
  the store for referential checks but never writes.

TWO PASSES:
  1. Type-independent: amount positive with at most two decimal places,
     date not in the future, description within length.
  2. Type-specific: exactly the reference fields the type requires must be
     set, all others must be absent, and every referenced record must
     resolve inside the transaction's budget.

FIELD RULES:
  income:       requires income_source_id; forbids from/to/payee
  allocation:   requires to_envelope_id; forbids from/payee/income_source
  expense:      requires from_envelope_id + payee_id; forbids to/income_source
  debt_payment: same as expense, and the source envelope must be type debt
  transfer:     requires from + to; forbids payee/income_source; from != to

ERROR MAPPING:
  Structural violations raise ValidationError naming the field. A missing
  referenced record surfaces as the store's NotFoundError. An inactive or
  wrong-typed referenced record raises ValidationError. Self-transfers
  raise InvalidEnvelopeTransferError; unknown types raise
  InvalidTransactionTypeError.

SEE ALSO:
  - errors.go: The error types raised here
  - balance.go: Relies on the reference fields this file guarantees
*/
package ledger

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxDescriptionLength is the longest accepted transaction description,
// counted in runes.
const MaxDescriptionLength = 500

// Validator checks proposed transactions against the budget's records.
type Validator struct {
	reader Reader
}

func NewValidator(r Reader) *Validator {
	return &Validator{reader: r}
}

// Validate runs both passes against the proposed transaction.
func (v *Validator) Validate(ctx context.Context, tx Transaction, budgetID uuid.UUID) error {
	if err := validateCommon(tx); err != nil {
		return err
	}

	switch tx.Type {
	case TxIncome:
		return v.validateIncome(ctx, tx, budgetID)
	case TxAllocation:
		return v.validateAllocation(ctx, tx, budgetID)
	case TxExpense:
		return v.validatePayment(ctx, tx, budgetID, false)
	case TxDebtPayment:
		return v.validatePayment(ctx, tx, budgetID, true)
	case TxTransfer:
		return v.validateTransfer(ctx, tx, budgetID)
	}

	return &InvalidTransactionTypeError{Type: tx.Type}
}

// =============================================================================
// PASS 1 - Type-independent checks
// =============================================================================

func validateCommon(tx Transaction) error {
	if !tx.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if !tx.Amount.Equal(tx.Amount.Round(2)) {
		return &ValidationError{Field: "amount", Reason: "at most 2 decimal places"}
	}
	if dayOf(tx.TransactionDate).After(dayOf(time.Now())) {
		return &ValidationError{Field: "transaction_date", Reason: "must not be in the future"}
	}
	if utf8.RuneCountInString(tx.Description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Reason: "exceeds 500 characters"}
	}
	return nil
}

// =============================================================================
// PASS 2 - Type-specific structural and referential checks
// =============================================================================

type refField struct {
	name string
	ref  *uuid.UUID
}

func requireRefs(txType TransactionType, fields ...refField) error {
	for _, f := range fields {
		if f.ref == nil {
			return &ValidationError{Field: f.name, Reason: "required for " + string(txType)}
		}
	}
	return nil
}

func forbidRefs(txType TransactionType, fields ...refField) error {
	for _, f := range fields {
		if f.ref != nil {
			return &ValidationError{Field: f.name, Reason: "must not be set for " + string(txType)}
		}
	}
	return nil
}

func (v *Validator) validateIncome(ctx context.Context, tx Transaction, budgetID uuid.UUID) error {
	if err := requireRefs(tx.Type, refField{"income_source_id", tx.IncomeSourceID}); err != nil {
		return err
	}
	if err := forbidRefs(tx.Type,
		refField{"from_envelope_id", tx.FromEnvelopeID},
		refField{"to_envelope_id", tx.ToEnvelopeID},
		refField{"payee_id", tx.PayeeID},
	); err != nil {
		return err
	}

	if _, err := v.reader.GetIncomeSource(ctx, budgetID, *tx.IncomeSourceID); err != nil {
		return err
	}
	return v.validateCategory(ctx, tx, budgetID)
}

func (v *Validator) validateAllocation(ctx context.Context, tx Transaction, budgetID uuid.UUID) error {
	if err := requireRefs(tx.Type, refField{"to_envelope_id", tx.ToEnvelopeID}); err != nil {
		return err
	}
	if err := forbidRefs(tx.Type,
		refField{"from_envelope_id", tx.FromEnvelopeID},
		refField{"payee_id", tx.PayeeID},
		refField{"income_source_id", tx.IncomeSourceID},
	); err != nil {
		return err
	}

	if _, err := v.activeEnvelope(ctx, budgetID, *tx.ToEnvelopeID, "to_envelope_id"); err != nil {
		return err
	}
	return v.validateCategory(ctx, tx, budgetID)
}

func (v *Validator) validatePayment(ctx context.Context, tx Transaction, budgetID uuid.UUID, debtOnly bool) error {
	if err := requireRefs(tx.Type,
		refField{"from_envelope_id", tx.FromEnvelopeID},
		refField{"payee_id", tx.PayeeID},
	); err != nil {
		return err
	}
	if err := forbidRefs(tx.Type,
		refField{"to_envelope_id", tx.ToEnvelopeID},
		refField{"income_source_id", tx.IncomeSourceID},
	); err != nil {
		return err
	}

	env, err := v.activeEnvelope(ctx, budgetID, *tx.FromEnvelopeID, "from_envelope_id")
	if err != nil {
		return err
	}
	if debtOnly && env.Type != EnvelopeDebt {
		return &ValidationError{Field: "from_envelope_id", Reason: "debt payments must draw from a debt envelope"}
	}

	payee, err := v.reader.GetPayee(ctx, budgetID, *tx.PayeeID)
	if err != nil {
		return err
	}
	if !payee.IsActive {
		return &ValidationError{Field: "payee_id", Reason: "payee is inactive"}
	}
	return v.validateCategory(ctx, tx, budgetID)
}

func (v *Validator) validateTransfer(ctx context.Context, tx Transaction, budgetID uuid.UUID) error {
	if err := requireRefs(tx.Type,
		refField{"from_envelope_id", tx.FromEnvelopeID},
		refField{"to_envelope_id", tx.ToEnvelopeID},
	); err != nil {
		return err
	}
	if err := forbidRefs(tx.Type,
		refField{"payee_id", tx.PayeeID},
		refField{"income_source_id", tx.IncomeSourceID},
	); err != nil {
		return err
	}

	if *tx.FromEnvelopeID == *tx.ToEnvelopeID {
		return &InvalidEnvelopeTransferError{EnvelopeID: *tx.FromEnvelopeID}
	}

	// Both lookups are budget-scoped, so cross-budget transfers fail as
	// not-found on whichever side lives elsewhere.
	if _, err := v.activeEnvelope(ctx, budgetID, *tx.FromEnvelopeID, "from_envelope_id"); err != nil {
		return err
	}
	if _, err := v.activeEnvelope(ctx, budgetID, *tx.ToEnvelopeID, "to_envelope_id"); err != nil {
		return err
	}
	return v.validateCategory(ctx, tx, budgetID)
}

func (v *Validator) activeEnvelope(ctx context.Context, budgetID, id uuid.UUID, field string) (Envelope, error) {
	env, err := v.reader.GetEnvelope(ctx, budgetID, id)
	if err != nil {
		return Envelope{}, err
	}
	if !env.IsActive {
		return Envelope{}, &ValidationError{Field: field, Reason: "envelope is inactive"}
	}
	return env, nil
}

// validateCategory checks the optional grouping label. Any type may carry
// one; it just has to resolve in the same budget.
func (v *Validator) validateCategory(ctx context.Context, tx Transaction, budgetID uuid.UUID) error {
	if tx.CategoryID == nil {
		return nil
	}
	_, err := v.reader.GetCategory(ctx, budgetID, *tx.CategoryID)
	return err
}
