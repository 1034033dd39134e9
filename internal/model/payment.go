package model

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	apperrors "modelnormalizer/internal/errors"
)

// PaymentStatus represents the status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusAccepted PaymentStatus = "accepted"
	PaymentStatusFailed   PaymentStatus = "failed"
)

var paymentSchema = NewSchema("payment",
	WithTimestamps(),
	WithDates("deleted_at"),
	WithHidden("card_cvv", "deleted_at"),
	WithMutator("card_cvv", func(m Model, value any) error {
		if cvv, ok := value.(string); ok && !cvvPattern.MatchString(cvv) {
			return errors.Wrap(apperrors.ErrInvalidFormat, "card cvv must have 3 or 4 digits")
		}
		m.SetRawAttribute("card_cvv", value)
		return nil
	}),
	BelongsTo("merchant_account", "merchant_account_id", reflect.TypeFor[*Account]()),
	BelongsTo("card", "card_id", reflect.TypeFor[*Card]()),
)

// Payment represents a card-based payment transaction.
type Payment struct {
	Base
}

// NewPayment returns an empty payment.
func NewPayment() *Payment {
	return Boot(&Payment{})
}

// DefineSchema implements Model.
func (p *Payment) DefineSchema() *Schema { return paymentSchema }

// Amount returns the charged amount.
func (p *Payment) Amount() decimal.Decimal { return p.GetDecimal("amount") }

// Status returns the processing status.
func (p *Payment) Status() PaymentStatus { return PaymentStatus(p.GetString("status")) }

// PaymentLog represents a log entry for a payment attempt.
type PaymentLog struct {
	Base
}

var paymentLogSchema = NewSchema("payment_log",
	WithDates("created_at", "deleted_at"),
	WithHidden("deleted_at"),
	BelongsTo("payment", "payment_id", reflect.TypeFor[*Payment]()),
)

// NewPaymentLog returns an empty payment log entry.
func NewPaymentLog() *PaymentLog {
	return Boot(&PaymentLog{})
}

// DefineSchema implements Model.
func (l *PaymentLog) DefineSchema() *Schema { return paymentLogSchema }
