// Package normalizer converts models to ordered representations and back.
//
// Extraction decides which fields of a model are emitted: its attributes,
// the visible list, and its loaded relations in place of their foreign keys,
// minus the hidden list. Reconstruction builds a fresh model from a
// representation, coercing date fields and rebuilding nested relations.
package normalizer

import (
	"reflect"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/model"
	"modelnormalizer/internal/ordered"
	"modelnormalizer/internal/propertyaccess"
	"modelnormalizer/internal/serializer"
)

// DefaultMaxDepth bounds relation nesting during reconstruction and normalization.
const DefaultMaxDepth = 32

// AttributeSource returns the full attribute bag of a model.
type AttributeSource func(m model.Model) *ordered.Map[any]

// CircularReferenceHandler returns what to emit for a model that is already
// being normalized further up the graph.
type CircularReferenceHandler func(m model.Model, format string, ctx serializer.Context) (any, error)

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// ModelNormalizer is the serializer member that knows the shape of models.
// It holds configuration only and is safe for concurrent use once
// registered in a chain.
type ModelNormalizer struct {
	noCopy noCopy

	accessor   propertyaccess.Accessor
	attributes AttributeSource
	names      serializer.NameConverter
	ignored    []string
	maxDepth   int
	circular   CircularReferenceHandler
	logger     *zap.Logger

	normalizer   serializer.Normalizer
	denormalizer serializer.Denormalizer
}

var (
	_ serializer.Normalizer      = (*ModelNormalizer)(nil)
	_ serializer.Denormalizer    = (*ModelNormalizer)(nil)
	_ serializer.SerializerAware = (*ModelNormalizer)(nil)
)

// Option configures a ModelNormalizer.
type Option func(n *ModelNormalizer)

// WithPropertyAccessor sets how emitted field values are read
// (default propertyaccess.ModelAccessor).
func WithPropertyAccessor(a propertyaccess.Accessor) Option {
	return func(n *ModelNormalizer) { n.accessor = a }
}

// WithAttributeSource sets where extraction reads the attribute bag from.
func WithAttributeSource(src AttributeSource) Option {
	return func(n *ModelNormalizer) { n.attributes = src }
}

// WithNameConverter renames fields on the way out and back in.
func WithNameConverter(c serializer.NameConverter) Option {
	return func(n *ModelNormalizer) { n.names = c }
}

// WithIgnoredAttributes drops fields from every extraction.
func WithIgnoredAttributes(fields ...string) Option {
	return func(n *ModelNormalizer) { n.ignored = append(n.ignored, fields...) }
}

// WithMaxDepth bounds relation nesting.
func WithMaxDepth(depth int) Option {
	return func(n *ModelNormalizer) { n.maxDepth = depth }
}

// WithCircularReferenceHandler emits the handler's result instead of failing
// when a model graph refers back to a model being normalized.
func WithCircularReferenceHandler(h CircularReferenceHandler) Option {
	return func(n *ModelNormalizer) { n.circular = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(n *ModelNormalizer) { n.logger = l }
}

// New returns a model normalizer.
func New(opts ...Option) *ModelNormalizer {
	n := &ModelNormalizer{
		accessor:   propertyaccess.NewModelAccessor(),
		attributes: model.Model.Attributes,
		names:      serializer.IdentityNameConverter,
		maxDepth:   DefaultMaxDepth,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SetSerializer registers the chain used for recursive values. The chain
// must be able to both normalize and denormalize.
func (n *ModelNormalizer) SetSerializer(s serializer.Serializer) error {
	norm, isNormalizer := s.(serializer.Normalizer)
	denorm, isDenormalizer := s.(serializer.Denormalizer)
	if !isNormalizer || !isDenormalizer {
		return errors.Wrapf(apperrors.ErrInvalidDelegate, "%T must implement both Normalizer and Denormalizer", s)
	}
	n.normalizer = norm
	n.denormalizer = denorm
	return nil
}

// SupportsNormalization reports whether data is a non-nil model.
func (n *ModelNormalizer) SupportsNormalization(data any, _ string) bool {
	m, ok := data.(model.Model)
	return ok && !model.IsNil(m)
}

// ExtractAttributes returns the names of the fields to emit for m, in order.
func (n *ModelNormalizer) ExtractAttributes(m model.Model) []string {
	fields := ordered.New[struct{}]()
	for _, name := range n.attributes(m).Keys() {
		fields.Set(name, struct{}{})
	}
	for _, name := range m.Visible() {
		fields.Set(name, struct{}{})
	}

	m.Relations().Range(func(name string, related model.Model) bool {
		if model.IsNil(related) {
			return true
		}
		if fk := model.ForeignKeyFor(m, name, related); fk != "" {
			fields.Delete(fk)
		}
		fields.Set(name, struct{}{})
		return true
	})

	for _, name := range m.Hidden() {
		fields.Delete(name)
	}
	for _, name := range n.ignored {
		fields.Delete(name)
	}
	return fields.Keys()
}

// Normalize emits the extracted fields of a model, read through the
// property accessor and normalized through the chain.
func (n *ModelNormalizer) Normalize(data any, format string, ctx serializer.Context) (any, error) {
	m, ok := data.(model.Model)
	if !ok || model.IsNil(m) {
		return nil, errors.Wrapf(apperrors.ErrUnsupportedType, "%T is not a model", data)
	}
	if ctx.Depth() >= n.maxDepth {
		return nil, errors.Wrapf(apperrors.ErrMaxDepthExceeded, "normalize %q: depth %d", ctx.Path(), n.maxDepth)
	}

	inner, ok := ctx.Enter(m)
	if !ok {
		if n.circular != nil {
			return n.circular(m, format, ctx)
		}
		return nil, errors.Wrapf(apperrors.ErrCircularReference, "normalize %q: %s already in progress", ctx.Path(), m.Schema().Name())
	}

	out := ordered.New[any]()
	for _, field := range n.ExtractAttributes(m) {
		value, err := n.accessor.GetValue(m, field)
		if err != nil {
			return nil, errors.Wrapf(err, "read %q", field)
		}
		value, err = n.normalizeValue(value, format, inner.WithKey(field))
		if err != nil {
			return nil, err
		}
		out.Set(n.names.Normalize(field), value)
	}
	return out, nil
}

func (n *ModelNormalizer) normalizeValue(value any, format string, ctx serializer.Context) (any, error) {
	if n.normalizer != nil {
		return n.normalizer.Normalize(value, format, ctx)
	}
	if m, ok := value.(model.Model); ok {
		if model.IsNil(m) {
			return nil, nil
		}
		return n.Normalize(m, format, ctx)
	}
	return value, nil
}

// SupportsDenormalization reports whether typ is a concrete model type.
func (n *ModelNormalizer) SupportsDenormalization(_ any, typ reflect.Type, _ string) bool {
	return model.IsModelType(typ)
}

// Denormalize builds a new model of type typ from a representation
// (*ordered.Map[any] or map[string]any). Declared date fields are coerced to
// time.Time unless the model has a mutator for them. Keys naming a relation
// are rebuilt recursively when they hold a nested representation; any other
// value for a relation is ignored. Every other key is set as an attribute.
func (n *ModelNormalizer) Denormalize(data any, typ reflect.Type, format string, ctx serializer.Context) (any, error) {
	if !model.IsModelType(typ) {
		return nil, errors.Wrapf(apperrors.ErrUnsupportedType, "%v is not a concrete model type", typ)
	}
	if ctx.Depth() >= n.maxDepth {
		return nil, errors.Wrapf(apperrors.ErrMaxDepthExceeded, "denormalize %q: depth %d", ctx.Path(), n.maxDepth)
	}

	inner, ok := ctx.Enter(data)
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrCircularReference, "denormalize %q: representation contains itself", ctx.Path())
	}

	rep, err := n.representation(data, inner)
	if err != nil {
		return nil, err
	}

	m, err := model.New(typ)
	if err != nil {
		return nil, err
	}

	for _, field := range m.Dates() {
		raw, present := rep.Get(field)
		if !present || raw == nil || m.HasSetMutator(field) {
			continue
		}
		coerced, err := n.denormalizeValue(raw, serializer.TimeType(), format, inner.WithKey(field))
		if err != nil {
			return nil, err
		}
		rep.Set(field, coerced)
	}

	schema := m.Schema()
	rep.Range(func(field string, value any) bool {
		rel, isRelation := schema.RelationFor(field)
		if !isRelation {
			if err = m.SetAttribute(field, value); err != nil {
				err = errors.Wrapf(err, "set %q", field)
				return false
			}
			return true
		}

		if !isRepresentation(value) {
			n.logger.Debug("ignoring non-structured relation value",
				zap.String("model", schema.Name()),
				zap.String("relation", rel.Name),
				zap.String("path", inner.WithKey(field).Path()),
				zap.Any("value", value),
			)
			return true
		}

		var related any
		related, err = n.denormalizeValue(value, rel.Related, format, inner.WithKey(field))
		if err != nil {
			return false
		}
		relatedModel, _ := related.(model.Model)
		m.SetRelation(rel.Name, relatedModel)
		return true
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// representation copies data into an ordered map with attribute names, so
// the caller's value is never modified.
func (n *ModelNormalizer) representation(data any, ctx serializer.Context) (*ordered.Map[any], error) {
	var src *ordered.Map[any]
	switch v := data.(type) {
	case *ordered.Map[any]:
		src = v
	case map[string]any:
		src = ordered.New[any]()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			src.Set(k, v[k])
		}
	default:
		return nil, errors.Wrapf(apperrors.ErrUnsupportedType, "denormalize %q: expected a representation, got %T", ctx.Path(), data)
	}

	rep := ordered.New[any]()
	src.Range(func(key string, value any) bool {
		rep.Set(n.names.Denormalize(key), value)
		return true
	})
	return rep, nil
}

func (n *ModelNormalizer) denormalizeValue(value any, typ reflect.Type, format string, ctx serializer.Context) (any, error) {
	if n.denormalizer != nil {
		return n.denormalizer.Denormalize(value, typ, format, ctx)
	}
	if n.SupportsDenormalization(value, typ, format) {
		return n.Denormalize(value, typ, format, ctx)
	}
	return nil, errors.Wrapf(apperrors.ErrInvalidDelegate, "denormalize %q into %v: no serializer registered", ctx.Path(), typ)
}

func isRepresentation(value any) bool {
	switch value.(type) {
	case *ordered.Map[any], map[string]any:
		return true
	}
	return false
}
