// Package propertyaccess reads and writes values on objects by dotted path.
package propertyaccess

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/ordered"
)

// Accessor reads and writes a property path such as "card.account.email".
type Accessor interface {
	GetValue(obj any, path string) (any, error)
	SetValue(obj any, path string, value any) error
	IsReadable(obj any, path string) bool
}

// ReflectAccessor walks maps, ordered maps, struct fields (matched by json
// tag, then by name) and zero-argument getter methods.
type ReflectAccessor struct{}

var _ Accessor = ReflectAccessor{}

func (a ReflectAccessor) GetValue(obj any, path string) (any, error) {
	return walk(obj, path, a.readSegment)
}

func (a ReflectAccessor) IsReadable(obj any, path string) bool {
	_, err := a.GetValue(obj, path)
	return err == nil
}

func (a ReflectAccessor) SetValue(obj any, path string, value any) error {
	parentPath, last := splitLast(path)
	parent := obj
	if parentPath != "" {
		var err error
		if parent, err = a.GetValue(obj, parentPath); err != nil {
			return err
		}
	}
	return a.writeSegment(parent, last, value)
}

func (ReflectAccessor) readSegment(obj any, name string) (any, error) {
	switch v := obj.(type) {
	case nil:
		return nil, errors.Wrapf(apperrors.ErrInvalidPropertyPath, "cannot read %q from nil", name)
	case *ordered.Map[any]:
		if value, ok := v.Get(name); ok {
			return value, nil
		}
		return nil, errors.Wrapf(apperrors.ErrInvalidPropertyPath, "no key %q", name)
	case map[string]any:
		if value, ok := v[name]; ok {
			return value, nil
		}
		return nil, errors.Wrapf(apperrors.ErrInvalidPropertyPath, "no key %q", name)
	}

	rv := reflect.ValueOf(obj)
	if method, ok := getter(rv, name); ok {
		return method.Call(nil)[0].Interface(), nil
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, errors.Wrapf(apperrors.ErrInvalidPropertyPath, "cannot read %q from nil %v", name, rv.Type())
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		if field, ok := structField(rv, name); ok {
			return field.Interface(), nil
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			value := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
			if value.IsValid() {
				return value.Interface(), nil
			}
		}
	}
	return nil, errors.Wrapf(apperrors.ErrInvalidPropertyPath, "%T has no readable property %q", obj, name)
}

func (ReflectAccessor) writeSegment(obj any, name string, value any) error {
	switch v := obj.(type) {
	case *ordered.Map[any]:
		v.Set(name, value)
		return nil
	case map[string]any:
		v[name] = value
		return nil
	}

	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.Wrapf(apperrors.ErrInvalidPropertyPath, "cannot write %q on non-pointer %T", name, obj)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return errors.Wrapf(apperrors.ErrInvalidPropertyPath, "cannot write %q on %T", name, obj)
	}
	field, ok := structField(rv, name)
	if !ok || !field.CanSet() {
		return errors.Wrapf(apperrors.ErrInvalidPropertyPath, "%T has no writable property %q", obj, name)
	}

	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	in := reflect.ValueOf(value)
	switch {
	case in.Type().AssignableTo(field.Type()):
		field.Set(in)
	case in.Type().ConvertibleTo(field.Type()):
		field.Set(in.Convert(field.Type()))
	default:
		return errors.Wrapf(apperrors.ErrInvalidPropertyPath, "cannot assign %T to %q (%v)", value, name, field.Type())
	}
	return nil
}

// getter finds a zero-argument method named after the property, e.g.
// "card_number" or "cardNumber" both resolve CardNumber.
func getter(rv reflect.Value, name string) (reflect.Value, bool) {
	if !rv.IsValid() {
		return reflect.Value{}, false
	}
	method := rv.MethodByName(exportedName(name))
	if !method.IsValid() {
		return reflect.Value{}, false
	}
	if t := method.Type(); t.NumIn() != 0 || t.NumOut() == 0 {
		return reflect.Value{}, false
	}
	return method, true
}

func structField(rv reflect.Value, name string) (reflect.Value, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == name {
			return rv.Field(i), true
		}
	}
	if f := rv.FieldByName(exportedName(name)); f.IsValid() && f.CanInterface() {
		return f, true
	}
	return reflect.Value{}, false
}

func exportedName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' || r == '-' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func walk(obj any, path string, read func(any, string) (any, error)) (any, error) {
	if path == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidPropertyPath, "empty property path")
	}
	cur := obj
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, errors.Wrapf(apperrors.ErrInvalidPropertyPath, "empty segment in %q", path)
		}
		next, err := read(cur, segment)
		if err != nil {
			return nil, errors.Wrapf(err, "read %q", path)
		}
		cur = next
	}
	return cur, nil
}

func splitLast(path string) (string, string) {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}
