package propertyaccess

import (
	"strings"

	"github.com/cockroachdb/errors"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/model"
)

// ModelAccessor understands models: a path segment on a model reads the
// computed getter or stored attribute first, then a loaded relation. Go
// methods on the model are never properties. A field the model does not
// know at all reads as nil, like a missing column. Values that are not
// models are read through the wrapped accessor.
type ModelAccessor struct {
	next ReflectAccessor
}

var _ Accessor = ModelAccessor{}

// NewModelAccessor returns the accessor used by the model normalizer.
func NewModelAccessor() ModelAccessor {
	return ModelAccessor{}
}

func (a ModelAccessor) GetValue(obj any, path string) (any, error) {
	return walk(obj, path, a.readSegment)
}

func (a ModelAccessor) IsReadable(obj any, path string) bool {
	cur := obj
	for _, segment := range splitPath(path) {
		m, ok := cur.(model.Model)
		if !ok || model.IsNil(m) {
			next, err := a.next.readSegment(cur, segment)
			if err != nil {
				return false
			}
			cur = next
			continue
		}
		value, found := a.readModel(m, segment)
		if !found {
			return false
		}
		cur = value
	}
	return path != ""
}

// SetValue writes through the model's mutators. A model value assigned to a
// declared relation is stored as that relation.
func (a ModelAccessor) SetValue(obj any, path string, value any) error {
	parentPath, last := splitLast(path)
	parent := obj
	if parentPath != "" {
		var err error
		if parent, err = a.GetValue(obj, parentPath); err != nil {
			return err
		}
	}

	m, ok := parent.(model.Model)
	if !ok || model.IsNil(m) {
		return a.next.writeSegment(parent, last, value)
	}
	if rel, isRelation := m.Schema().RelationFor(last); isRelation {
		related, isModel := value.(model.Model)
		if value != nil && !isModel {
			return errors.Wrapf(apperrors.ErrInvalidPropertyPath, "relation %q expects a model, got %T", last, value)
		}
		m.SetRelation(rel.Name, related)
		return nil
	}
	if err := m.SetAttribute(last, value); err != nil {
		return errors.Wrapf(err, "set %q", path)
	}
	return nil
}

func (a ModelAccessor) readSegment(obj any, name string) (any, error) {
	m, ok := obj.(model.Model)
	if !ok || model.IsNil(m) {
		return a.next.readSegment(obj, name)
	}
	if value, found := a.readModel(m, name); found {
		return value, nil
	}
	return nil, nil
}

func (a ModelAccessor) readModel(m model.Model, name string) (any, bool) {
	if value, ok := m.GetAttribute(name); ok {
		return value, true
	}
	if related, ok := m.Relation(name); ok {
		if model.IsNil(related) {
			return nil, true
		}
		return related, true
	}
	return nil, false
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
