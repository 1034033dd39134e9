package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GetString returns field as a string, formatting non-string values.
func (b *Base) GetString(field string) string {
	v, ok := b.GetAttribute(field)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// GetBool returns field as a bool. MySQL tinyint values count as true when non-zero.
func (b *Base) GetBool(field string) bool {
	v, _ := b.GetAttribute(field)
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	case json.Number:
		n, _ := t.Int64()
		return n != 0
	case string:
		return t == "1" || t == "true"
	default:
		return false
	}
}

// GetTime returns field as a time, or the zero time when unset or not a time.
func (b *Base) GetTime(field string) time.Time {
	v, _ := b.GetAttribute(field)
	if t, ok := v.(time.Time); ok {
		return t
	}
	return time.Time{}
}

// GetDecimal returns field as a decimal.
func (b *Base) GetDecimal(field string) decimal.Decimal {
	v, _ := b.GetAttribute(field)
	switch t := v.(type) {
	case decimal.Decimal:
		return t
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero
		}
		return d
	case []byte:
		d, err := decimal.NewFromString(string(t))
		if err != nil {
			return decimal.Zero
		}
		return d
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(t)
	case int64:
		return decimal.NewFromInt(t)
	case int:
		return decimal.NewFromInt(int64(t))
	default:
		return decimal.Zero
	}
}

// GetUUID returns field as a UUID, or uuid.Nil when it does not parse.
func (b *Base) GetUUID(field string) uuid.UUID {
	v, _ := b.GetAttribute(field)
	switch t := v.(type) {
	case uuid.UUID:
		return t
	case string:
		id, err := uuid.Parse(t)
		if err != nil {
			return uuid.Nil
		}
		return id
	case []byte:
		id, err := uuid.ParseBytes(t)
		if err != nil {
			return uuid.Nil
		}
		return id
	default:
		return uuid.Nil
	}
}
