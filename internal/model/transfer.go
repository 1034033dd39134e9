package model

import (
	"reflect"

	"github.com/shopspring/decimal"
)

// TransferStatus represents the status of a transfer.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
)

var transferSchema = NewSchema("transfer",
	WithTimestamps(),
	WithDates("deleted_at"),
	WithHidden("deleted_at"),
	BelongsTo("source_card", "source_card_id", reflect.TypeFor[*Card]()),
	BelongsTo("destination_card", "destination_card_id", reflect.TypeFor[*Card]()),
)

// Transfer represents a card-to-card money transfer.
type Transfer struct {
	Base
}

// NewTransfer returns an empty transfer.
func NewTransfer() *Transfer {
	return Boot(&Transfer{})
}

// DefineSchema implements Model.
func (t *Transfer) DefineSchema() *Schema { return transferSchema }

// Amount returns the transferred amount.
func (t *Transfer) Amount() decimal.Decimal { return t.GetDecimal("amount") }

// Status returns the processing status.
func (t *Transfer) Status() TransferStatus { return TransferStatus(t.GetString("status")) }
