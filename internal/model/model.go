// Package model holds the active-record models of the service: a bag of
// attributes, a set of loaded relations and visibility metadata, described
// by a per-type Schema.
package model

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/ordered"
)

// Model is the contract the normalizer relies on. Concrete models embed
// Base and implement DefineSchema; Base alone is not a Model.
type Model interface {
	// DefineSchema returns the type's schema. It must not depend on instance state.
	DefineSchema() *Schema

	Schema() *Schema
	Attributes() *ordered.Map[any]
	Visible() []string
	Hidden() []string
	Relations() *ordered.Map[Model]
	Dates() []string
	HasSetMutator(field string) bool
	Key() any

	GetAttribute(field string) (any, bool)
	SetAttribute(field string, value any) error
	SetRawAttribute(field string, value any)
	Relation(name string) (Model, bool)
	SetRelation(name string, related Model)

	base() *Base
}

var modelType = reflect.TypeFor[Model]()

// Base implements the storage side of Model.
type Base struct {
	self       Model
	schema     *Schema
	attributes *ordered.Map[any]
	relations  *ordered.Map[Model]
	visible    []string
	hidden     []string
}

func (b *Base) base() *Base { return b }

// Boot wires m's Base to its schema. Models built with New are already booted.
func Boot[T Model](m T) T {
	b := m.base()
	b.self = m
	b.schema = m.DefineSchema()
	if b.attributes == nil {
		b.attributes = ordered.New[any]()
	}
	if b.relations == nil {
		b.relations = ordered.New[Model]()
	}
	return m
}

// IsModelType reports whether typ can be built by New.
func IsModelType(typ reflect.Type) bool {
	return typ != nil &&
		typ.Kind() == reflect.Pointer &&
		typ.Elem().Kind() == reflect.Struct &&
		typ.Implements(modelType)
}

// New default-constructs a model of type typ (a pointer to a struct
// embedding Base).
func New(typ reflect.Type) (Model, error) {
	if !IsModelType(typ) {
		return nil, errors.Wrapf(apperrors.ErrConstruction, "%v is not a concrete model type", typ)
	}
	m, ok := reflect.New(typ.Elem()).Interface().(Model)
	if !ok || m.base() == nil {
		return nil, errors.Wrapf(apperrors.ErrConstruction, "%v does not embed model.Base by value", typ)
	}
	return Boot(m), nil
}

// TypeOf returns the dynamic type of m.
func TypeOf(m Model) reflect.Type {
	return reflect.TypeOf(m)
}

// IsNil reports whether m is nil or a typed nil pointer.
func IsNil(m Model) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Schema returns the schema bound by Boot.
func (b *Base) Schema() *Schema {
	if b.schema == nil {
		return NewSchema("")
	}
	return b.schema
}

// Attributes returns a copy of the attribute bag.
func (b *Base) Attributes() *ordered.Map[any] {
	return b.attributes.Clone()
}

// Visible returns the instance visible list, or the schema default.
func (b *Base) Visible() []string {
	if b.visible != nil {
		return append([]string(nil), b.visible...)
	}
	return b.Schema().Visible()
}

// Hidden returns the instance hidden list, or the schema default.
func (b *Base) Hidden() []string {
	if b.hidden != nil {
		return append([]string(nil), b.hidden...)
	}
	return b.Schema().Hidden()
}

// SetVisible replaces the visible list for this instance.
func (b *Base) SetVisible(fields ...string) {
	b.visible = append([]string{}, fields...)
}

// SetHidden replaces the hidden list for this instance.
func (b *Base) SetHidden(fields ...string) {
	b.hidden = append([]string{}, fields...)
}

// MakeVisible removes fields from the hidden list and, when a visible list
// is in use, adds them to it.
func (b *Base) MakeVisible(fields ...string) {
	b.hidden = lo.Without(b.Hidden(), fields...)
	if visible := b.Visible(); len(visible) > 0 {
		b.visible = lo.Uniq(append(visible, fields...))
	}
}

// MakeHidden adds fields to the hidden list.
func (b *Base) MakeHidden(fields ...string) {
	b.hidden = lo.Uniq(append(b.Hidden(), fields...))
}

// Relations returns a copy of the loaded relations. A nil value is a
// relation that was loaded and found empty.
func (b *Base) Relations() *ordered.Map[Model] {
	return b.relations.Clone()
}

// Dates returns the schema's date fields.
func (b *Base) Dates() []string {
	return b.Schema().Dates()
}

// HasSetMutator reports whether field has a mutator.
func (b *Base) HasSetMutator(field string) bool {
	return b.Schema().HasSetMutator(field)
}

// GetAttribute returns a computed getter's value or the stored attribute.
func (b *Base) GetAttribute(field string) (any, bool) {
	if getter, ok := b.Schema().Getter(field); ok && b.self != nil {
		return getter(b.self), true
	}
	return b.attributes.Get(field)
}

// SetAttribute assigns value through the field's mutator, or stores it as is.
func (b *Base) SetAttribute(field string, value any) error {
	if mutator, ok := b.Schema().Mutator(field); ok && b.self != nil {
		return mutator(b.self, value)
	}
	b.SetRawAttribute(field, value)
	return nil
}

// SetRawAttribute stores value without mutators or casts.
func (b *Base) SetRawAttribute(field string, value any) {
	if b.attributes == nil {
		b.attributes = ordered.New[any]()
	}
	b.attributes.Set(field, value)
}

// Relation returns a loaded relation.
func (b *Base) Relation(name string) (Model, bool) {
	return b.relations.Get(name)
}

// SetRelation stores a loaded relation. A nil related marks it loaded but empty.
func (b *Base) SetRelation(name string, related Model) {
	if b.relations == nil {
		b.relations = ordered.New[Model]()
	}
	if IsNil(related) {
		related = nil
	}
	b.relations.Set(name, related)
}

// Key returns the primary key value.
func (b *Base) Key() any {
	v, _ := b.attributes.Get(b.Schema().Key())
	return v
}

// ForeignKeyFor resolves the foreign key attribute that the loaded relation
// name makes redundant. Declared relations use their foreign key; otherwise
// the related model's default foreign key applies.
func ForeignKeyFor(owner Model, name string, related Model) string {
	if rel, ok := owner.Schema().RelationFor(name); ok && rel.ForeignKey != "" {
		return rel.ForeignKey
	}
	if IsNil(related) {
		return ""
	}
	return related.Schema().ForeignKey()
}
