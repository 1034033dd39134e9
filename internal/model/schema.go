package model

import (
	"reflect"
	"strings"

	"github.com/samber/lo"

	"modelnormalizer/internal/ordered"
)

// KeyType describes how a model's primary key is generated.
type KeyType int

const (
	// KeyUUID keys are generated as random UUIDs before insert.
	KeyUUID KeyType = iota
	// KeyIncrement keys are assigned by the database.
	KeyIncrement
)

// Mutator handles writes to a field instead of plain assignment.
type Mutator func(m Model, value any) error

// Getter computes a field that is not stored in the attribute bag.
type Getter func(m Model) any

// Relation describes a belongs-to association.
type Relation struct {
	// Name is the relation's field name in representations.
	Name string
	// ForeignKey is the attribute holding the related key. Empty means the
	// related schema's default foreign key.
	ForeignKey string
	// Related is the related model type, e.g. reflect.TypeFor[*Account]().
	Related reflect.Type
}

// Schema is the per-type capability descriptor of a model: which fields are
// dates, which are relations, and which have mutators or computed getters.
// A Schema is built once and never changed afterwards.
type Schema struct {
	name    string
	table   string
	key     string
	keyType KeyType
	dates   []string
	visible []string
	hidden  []string

	relations *ordered.Map[Relation]
	lookup    map[string]string
	mutators  map[string]Mutator
	getters   map[string]Getter
}

// SchemaOption configures a Schema.
type SchemaOption func(s *Schema)

// NewSchema builds the descriptor for the model called name (singular, snake_case).
func NewSchema(name string, opts ...SchemaOption) *Schema {
	s := &Schema{
		name:      name,
		table:     name + "s",
		key:       "id",
		keyType:   KeyUUID,
		relations: ordered.New[Relation](),
		lookup:    map[string]string{},
		mutators:  map[string]Mutator{},
		getters:   map[string]Getter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithTable overrides the table name.
func WithTable(table string) SchemaOption {
	return func(s *Schema) { s.table = table }
}

// WithKey sets the primary key column and how it is generated.
func WithKey(key string, keyType KeyType) SchemaOption {
	return func(s *Schema) {
		s.key = key
		s.keyType = keyType
	}
}

// WithTimestamps declares created_at and updated_at as date fields.
func WithTimestamps() SchemaOption {
	return WithDates("created_at", "updated_at")
}

// WithDates declares fields holding timestamps.
func WithDates(fields ...string) SchemaOption {
	return func(s *Schema) { s.dates = lo.Uniq(append(s.dates, fields...)) }
}

// WithVisible sets the default visible list.
func WithVisible(fields ...string) SchemaOption {
	return func(s *Schema) { s.visible = lo.Uniq(append(s.visible, fields...)) }
}

// WithHidden sets the default hidden list.
func WithHidden(fields ...string) SchemaOption {
	return func(s *Schema) { s.hidden = lo.Uniq(append(s.hidden, fields...)) }
}

// WithMutator routes writes of field through fn.
func WithMutator(field string, fn Mutator) SchemaOption {
	return func(s *Schema) { s.mutators[field] = fn }
}

// WithGetter declares a computed field.
func WithGetter(field string, fn Getter) SchemaOption {
	return func(s *Schema) { s.getters[field] = fn }
}

// BelongsTo declares a relation to the model type related. An empty
// foreignKey falls back to the related model's default foreign key.
func BelongsTo(name, foreignKey string, related reflect.Type) SchemaOption {
	return func(s *Schema) {
		s.relations.Set(name, Relation{Name: name, ForeignKey: foreignKey, Related: related})
		s.lookup[name] = name
		s.lookup[lookupKey(name)] = name
	}
}

// Name returns the singular model name.
func (s *Schema) Name() string { return s.name }

// Table returns the table name.
func (s *Schema) Table() string { return s.table }

// Key returns the primary key column.
func (s *Schema) Key() string { return s.key }

// KeyType returns how the primary key is generated.
func (s *Schema) KeyType() KeyType { return s.keyType }

// ForeignKey is the attribute name other models use to point at this one.
func (s *Schema) ForeignKey() string { return s.name + "_" + s.key }

// Dates returns the declared date fields.
func (s *Schema) Dates() []string { return append([]string(nil), s.dates...) }

// Visible returns the default visible list.
func (s *Schema) Visible() []string { return append([]string(nil), s.visible...) }

// Hidden returns the default hidden list.
func (s *Schema) Hidden() []string { return append([]string(nil), s.hidden...) }

// Relations returns the declared relations in declaration order.
func (s *Schema) Relations() []Relation {
	out := make([]Relation, 0, s.relations.Len())
	s.relations.Range(func(_ string, r Relation) bool {
		out = append(out, r)
		return true
	})
	return out
}

// RelationFor resolves a representation field to a relation. The field
// matches either the relation name itself or the relation name with
// separators removed, compared case-insensitively.
func (s *Schema) RelationFor(field string) (Relation, bool) {
	name, ok := s.lookup[field]
	if !ok {
		name, ok = s.lookup[lookupKey(field)]
	}
	if !ok {
		return Relation{}, false
	}
	return s.relations.Get(name)
}

// HasSetMutator reports whether writes of field go through a mutator.
func (s *Schema) HasSetMutator(field string) bool {
	_, ok := s.mutators[field]
	return ok
}

// Mutator returns the mutator declared for field.
func (s *Schema) Mutator(field string) (Mutator, bool) {
	fn, ok := s.mutators[field]
	return fn, ok
}

// Getter returns the computed getter declared for field.
func (s *Schema) Getter(field string) (Getter, bool) {
	fn, ok := s.getters[field]
	return fn, ok
}

func lookupKey(field string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(field))
}
