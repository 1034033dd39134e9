package model

import (
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/ordered"
)

// Visibility overrides the schema's visible and hidden lists. A nil slice
// keeps the schema default.
type Visibility struct {
	Visible []string `yaml:"visible"`
	Hidden  []string `yaml:"hidden"`
}

// Registry maps resource names (as used in URLs) to model types.
type Registry struct {
	mu         sync.RWMutex
	types      *ordered.Map[reflect.Type]
	visibility map[reflect.Type]Visibility
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:      ordered.New[reflect.Type](),
		visibility: map[reflect.Type]Visibility{},
	}
}

// NewDefaultRegistry registers the ledger models.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	// All of these are concrete models, Register cannot fail.
	_ = r.Register("accounts", reflect.TypeFor[*Account]())
	_ = r.Register("cards", reflect.TypeFor[*Card]())
	_ = r.Register("payments", reflect.TypeFor[*Payment]())
	_ = r.Register("payment_logs", reflect.TypeFor[*PaymentLog]())
	_ = r.Register("transfers", reflect.TypeFor[*Transfer]())
	return r
}

// Register binds resource to typ.
func (r *Registry) Register(resource string, typ reflect.Type) error {
	if !IsModelType(typ) {
		return errors.Wrapf(apperrors.ErrConstruction, "register %q", resource)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.types.Has(resource) {
		return errors.Wrapf(apperrors.ErrInvalidConfiguration, "resource %q registered twice", resource)
	}
	r.types.Set(resource, typ)
	return nil
}

// Type returns the model type bound to resource.
func (r *Registry) Type(resource string) (reflect.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	typ, ok := r.types.Get(resource)
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrUnknownResource, "%q", resource)
	}
	return typ, nil
}

// Resources lists registered resource names in registration order.
func (r *Registry) Resources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types.Keys()
}

// SetVisibility stores a visibility override for resource.
func (r *Registry) SetVisibility(resource string, v Visibility) error {
	typ, err := r.Type(resource)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.visibility[typ] = Visibility{
		Visible: uniqOrNil(v.Visible),
		Hidden:  uniqOrNil(v.Hidden),
	}
	return nil
}

// New constructs a model for resource with overrides applied.
func (r *Registry) New(resource string) (Model, error) {
	typ, err := r.Type(resource)
	if err != nil {
		return nil, err
	}
	m, err := New(typ)
	if err != nil {
		return nil, err
	}
	r.Apply(m)
	return m, nil
}

// Apply copies the registered visibility override of m's type onto m and,
// recursively, onto its loaded relations.
func (r *Registry) Apply(m Model) {
	r.apply(m, map[Model]bool{})
}

func (r *Registry) apply(m Model, seen map[Model]bool) {
	if IsNil(m) || seen[m] {
		return
	}
	seen[m] = true

	r.mu.RLock()
	v, ok := r.visibility[TypeOf(m)]
	r.mu.RUnlock()

	if ok {
		b := m.base()
		if v.Visible != nil {
			b.SetVisible(v.Visible...)
		}
		if v.Hidden != nil {
			b.SetHidden(v.Hidden...)
		}
	}

	m.Relations().Range(func(_ string, related Model) bool {
		r.apply(related, seen)
		return true
	})
}

func uniqOrNil(fields []string) []string {
	if fields == nil {
		return nil
	}
	return lo.Uniq(fields)
}
