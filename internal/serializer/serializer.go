// Package serializer is the generic object/representation framework: it walks
// values, hands model-shaped and other special values to the registered
// normalizers, and turns representations into bytes through encoders.
package serializer

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/ordered"
)

// FormatJSON identifies the JSON encoder.
const FormatJSON = "json"

// Normalizer turns values into representations.
type Normalizer interface {
	SupportsNormalization(data any, format string) bool
	Normalize(data any, format string, ctx Context) (any, error)
}

// Denormalizer turns raw values into values of a target type.
type Denormalizer interface {
	SupportsDenormalization(data any, typ reflect.Type, format string) bool
	Denormalize(data any, typ reflect.Type, format string, ctx Context) (any, error)
}

// Serializer converts values to bytes and back.
type Serializer interface {
	Serialize(data any, format string, ctx Context) ([]byte, error)
	Deserialize(payload []byte, typ reflect.Type, format string, ctx Context) (any, error)
}

// SerializerAware members receive the chain they are registered in so they
// can recurse. Returning an error aborts chain construction.
type SerializerAware interface {
	SetSerializer(s Serializer) error
}

// Encoder turns normalized data into bytes of one format and back.
type Encoder interface {
	Format() string
	Encode(data any) ([]byte, error)
	Decode(payload []byte) (any, error)
}

// Chain dispatches to the first member that supports a value.
type Chain struct {
	normalizers   []Normalizer
	denormalizers []Denormalizer
	encoders      map[string]Encoder
}

var (
	_ Serializer   = (*Chain)(nil)
	_ Normalizer   = (*Chain)(nil)
	_ Denormalizer = (*Chain)(nil)
)

// New builds a chain. Members may implement Normalizer, Denormalizer or
// both; members implementing neither are rejected.
func New(members []any, encoders ...Encoder) (*Chain, error) {
	c := &Chain{encoders: map[string]Encoder{}}
	for _, member := range members {
		n, isNormalizer := member.(Normalizer)
		d, isDenormalizer := member.(Denormalizer)
		if !isNormalizer && !isDenormalizer {
			return nil, errors.Wrapf(apperrors.ErrInvalidConfiguration, "%T is neither a normalizer nor a denormalizer", member)
		}
		if isNormalizer {
			c.normalizers = append(c.normalizers, n)
		}
		if isDenormalizer {
			c.denormalizers = append(c.denormalizers, d)
		}
	}
	for _, enc := range encoders {
		c.encoders[enc.Format()] = enc
	}

	for _, member := range members {
		if aware, ok := member.(SerializerAware); ok {
			if err := aware.SetSerializer(c); err != nil {
				return nil, errors.Wrapf(err, "configure %T", member)
			}
		}
	}
	return c, nil
}

// SupportsNormalization reports whether data can be normalized.
func (c *Chain) SupportsNormalization(data any, format string) bool {
	if isScalar(data) || isContainer(data) {
		return true
	}
	return c.normalizerFor(data, format) != nil
}

// Normalize converts data into scalars, slices and ordered maps.
func (c *Chain) Normalize(data any, format string, ctx Context) (any, error) {
	if isScalar(data) {
		return data, nil
	}
	if n := c.normalizerFor(data, format); n != nil {
		return n.Normalize(data, format, ctx)
	}

	switch v := data.(type) {
	case *ordered.Map[any]:
		return c.normalizeMap(v, format, ctx)
	case map[string]any:
		return c.normalizeMap(ordered.FromMap(v), format, ctx)
	}

	rv := reflect.ValueOf(data)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			item, err := c.Normalize(rv.Index(i).Interface(), format, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	}

	return nil, errors.Wrapf(apperrors.ErrUnsupportedType, "cannot normalize %T at %q", data, ctx.Path())
}

func (c *Chain) normalizeMap(m *ordered.Map[any], format string, ctx Context) (*ordered.Map[any], error) {
	out := ordered.New[any]()
	var err error
	m.Range(func(key string, value any) bool {
		var normalized any
		normalized, err = c.Normalize(value, format, ctx.WithKey(key))
		if err != nil {
			return false
		}
		out.Set(key, normalized)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SupportsDenormalization reports whether some member can build typ from data.
func (c *Chain) SupportsDenormalization(data any, typ reflect.Type, format string) bool {
	return c.denormalizerFor(data, typ, format) != nil || assignable(data, typ)
}

// Denormalize builds a value of typ from data.
func (c *Chain) Denormalize(data any, typ reflect.Type, format string, ctx Context) (any, error) {
	if d := c.denormalizerFor(data, typ, format); d != nil {
		return d.Denormalize(data, typ, format, ctx)
	}
	if assignable(data, typ) {
		return data, nil
	}
	return nil, errors.Wrapf(apperrors.ErrUnsupportedType, "cannot denormalize %T into %v at %q", data, typ, ctx.Path())
}

// Serialize normalizes data and encodes it in format.
func (c *Chain) Serialize(data any, format string, ctx Context) ([]byte, error) {
	enc, err := c.encoder(format)
	if err != nil {
		return nil, err
	}
	normalized, err := c.Normalize(data, format, ctx)
	if err != nil {
		return nil, err
	}
	return enc.Encode(normalized)
}

// Deserialize decodes payload in format and denormalizes it into typ.
func (c *Chain) Deserialize(payload []byte, typ reflect.Type, format string, ctx Context) (any, error) {
	enc, err := c.encoder(format)
	if err != nil {
		return nil, err
	}
	data, err := enc.Decode(payload)
	if err != nil {
		return nil, err
	}
	return c.Denormalize(data, typ, format, ctx)
}

func (c *Chain) encoder(format string) (Encoder, error) {
	enc, ok := c.encoders[format]
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrUnsupportedType, "no encoder for format %q", format)
	}
	return enc, nil
}

func (c *Chain) normalizerFor(data any, format string) Normalizer {
	for _, n := range c.normalizers {
		if n.SupportsNormalization(data, format) {
			return n
		}
	}
	return nil
}

func (c *Chain) denormalizerFor(data any, typ reflect.Type, format string) Denormalizer {
	for _, d := range c.denormalizers {
		if d.SupportsDenormalization(data, typ, format) {
			return d
		}
	}
	return nil
}

func isScalar(data any) bool {
	switch data.(type) {
	case nil, string, []byte, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

func isContainer(data any) bool {
	switch data.(type) {
	case *ordered.Map[any], map[string]any:
		return true
	}
	kind := reflect.ValueOf(data).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

func assignable(data any, typ reflect.Type) bool {
	if typ == nil {
		return false
	}
	if data == nil {
		switch typ.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			return true
		}
		return false
	}
	return reflect.TypeOf(data).AssignableTo(typ)
}

// Context carries recursion state through nested (de)normalization. It is
// passed by value; every derived context is a copy.
type Context struct {
	path    []string
	visited []uintptr
}

// Path returns the dotted path of the value being processed.
func (c Context) Path() string {
	return strings.Join(c.path, ".")
}

// Depth returns how many objects are currently being processed above this value.
func (c Context) Depth() int {
	return len(c.visited)
}

// WithKey returns a context one path segment deeper.
func (c Context) WithKey(key string) Context {
	c.path = append(append([]string(nil), c.path...), key)
	return c
}

// Enter records obj as being processed. It returns false when obj is
// already being processed further up, which means the graph is cyclic.
// Values without identity (non-pointers) are never considered cyclic.
func (c Context) Enter(obj any) (Context, bool) {
	id, ok := identity(obj)
	if !ok {
		c.visited = append(append([]uintptr(nil), c.visited...), 0)
		return c, true
	}
	for _, seen := range c.visited {
		if seen == id {
			return c, false
		}
	}
	c.visited = append(append([]uintptr(nil), c.visited...), id)
	return c, true
}

func identity(obj any) (uintptr, bool) {
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return 0, false
		}
		return v.Pointer(), true
	}
	return 0, false
}
