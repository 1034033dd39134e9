package serializer

import (
	"io"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/ordered"
)

// JSON is the jsoniter configuration shared by the encoder and the HTTP layer.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONEncoder encodes normalized data as JSON. Decoding keeps object key
// order by producing *ordered.Map[any] for objects and json.Number for numbers.
type JSONEncoder struct{}

var _ Encoder = JSONEncoder{}

func (JSONEncoder) Format() string { return FormatJSON }

func (JSONEncoder) Encode(data any) ([]byte, error) {
	out, err := JSON.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "encode json")
	}
	return out, nil
}

func (JSONEncoder) Decode(payload []byte) (any, error) {
	if !JSON.Valid(payload) {
		return nil, errors.Wrap(apperrors.ErrInvalidFormat, "decode json: malformed document")
	}
	iter := JSON.BorrowIterator(payload)
	defer JSON.ReturnIterator(iter)

	value := readValue(iter)
	if iter.Error != nil && iter.Error != io.EOF {
		return nil, errors.Wrapf(apperrors.ErrInvalidFormat, "decode json: %v", iter.Error)
	}
	return value, nil
}

func readValue(iter *jsoniter.Iterator) any {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		m := ordered.New[any]()
		iter.ReadMapCB(func(it *jsoniter.Iterator, key string) bool {
			m.Set(key, readValue(it))
			return it.Error == nil
		})
		return m
	case jsoniter.ArrayValue:
		items := []any{}
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			items = append(items, readValue(it))
			return it.Error == nil
		})
		return items
	case jsoniter.StringValue:
		return iter.ReadString()
	case jsoniter.NumberValue:
		return iter.ReadNumber()
	case jsoniter.BoolValue:
		return iter.ReadBool()
	case jsoniter.NilValue:
		iter.ReadNil()
		return nil
	default:
		iter.ReportError("decode", "unexpected token")
		return nil
	}
}
