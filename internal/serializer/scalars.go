package serializer

import (
	"encoding/json"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "modelnormalizer/internal/errors"
)

var (
	decimalType = reflect.TypeFor[decimal.Decimal]()
	uuidType    = reflect.TypeFor[uuid.UUID]()
)

// DecimalNormalizer writes decimals as strings so no precision is lost.
type DecimalNormalizer struct{}

func (DecimalNormalizer) SupportsNormalization(data any, _ string) bool {
	_, ok := data.(decimal.Decimal)
	return ok
}

func (DecimalNormalizer) Normalize(data any, _ string, _ Context) (any, error) {
	return data.(decimal.Decimal).String(), nil
}

func (DecimalNormalizer) SupportsDenormalization(_ any, typ reflect.Type, _ string) bool {
	return typ == decimalType
}

func (DecimalNormalizer) Denormalize(data any, _ reflect.Type, _ string, ctx Context) (any, error) {
	switch v := data.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, errors.Wrapf(apperrors.ErrInvalidFormat, "decimal %q at %q", v, ctx.Path())
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return nil, errors.Wrapf(apperrors.ErrInvalidFormat, "decimal %q at %q", v, ctx.Path())
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	}
	return nil, errors.Wrapf(apperrors.ErrInvalidFormat, "cannot read a decimal from %T at %q", data, ctx.Path())
}

// UUIDNormalizer writes UUIDs in their canonical string form.
type UUIDNormalizer struct{}

func (UUIDNormalizer) SupportsNormalization(data any, _ string) bool {
	_, ok := data.(uuid.UUID)
	return ok
}

func (UUIDNormalizer) Normalize(data any, _ string, _ Context) (any, error) {
	return data.(uuid.UUID).String(), nil
}

func (UUIDNormalizer) SupportsDenormalization(_ any, typ reflect.Type, _ string) bool {
	return typ == uuidType
}

func (UUIDNormalizer) Denormalize(data any, _ reflect.Type, _ string, ctx Context) (any, error) {
	switch v := data.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, errors.Wrapf(apperrors.ErrInvalidFormat, "uuid %q at %q", v, ctx.Path())
		}
		return id, nil
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return nil, errors.Wrapf(apperrors.ErrInvalidFormat, "uuid at %q", ctx.Path())
		}
		return id, nil
	}
	return nil, errors.Wrapf(apperrors.ErrInvalidFormat, "cannot read a uuid from %T at %q", data, ctx.Path())
}
