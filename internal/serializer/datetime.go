package serializer

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jinzhu/now"

	apperrors "modelnormalizer/internal/errors"
)

var (
	timeType    = reflect.TypeFor[time.Time]()
	timePtrType = reflect.TypeFor[*time.Time]()
)

// TimeType is the target type used to coerce raw values into timestamps.
func TimeType() reflect.Type { return timeType }

// DateTimeNormalizer converts time.Time to formatted strings and parses
// strings, unix timestamps and times back.
type DateTimeNormalizer struct {
	layout   string
	location *time.Location
}

// DateTimeOption configures a DateTimeNormalizer.
type DateTimeOption func(n *DateTimeNormalizer)

// WithLayout sets the output layout (default time.RFC3339).
func WithLayout(layout string) DateTimeOption {
	return func(n *DateTimeNormalizer) { n.layout = layout }
}

// WithLocation converts times into loc before formatting and parses
// zone-less strings in loc (default UTC).
func WithLocation(loc *time.Location) DateTimeOption {
	return func(n *DateTimeNormalizer) { n.location = loc }
}

// NewDateTimeNormalizer returns a normalizer for time.Time.
func NewDateTimeNormalizer(opts ...DateTimeOption) *DateTimeNormalizer {
	n := &DateTimeNormalizer{layout: time.RFC3339, location: time.UTC}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *DateTimeNormalizer) SupportsNormalization(data any, _ string) bool {
	switch data.(type) {
	case time.Time, *time.Time:
		return true
	}
	return false
}

func (n *DateTimeNormalizer) Normalize(data any, _ string, _ Context) (any, error) {
	switch t := data.(type) {
	case time.Time:
		return t.In(n.location).Format(n.layout), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return t.In(n.location).Format(n.layout), nil
	}
	return nil, errors.Wrapf(apperrors.ErrUnsupportedType, "%T is not a time", data)
}

func (n *DateTimeNormalizer) SupportsDenormalization(_ any, typ reflect.Type, _ string) bool {
	return typ == timeType || typ == timePtrType
}

// Denormalize parses data into a time.Time (or *time.Time when asked).
// Strings are tried against the configured layout, RFC3339Nano, and then the
// loose layouts understood by jinzhu/now. Numbers are unix seconds.
func (n *DateTimeNormalizer) Denormalize(data any, typ reflect.Type, _ string, ctx Context) (any, error) {
	t, err := n.parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "denormalize %q", ctx.Path())
	}
	if typ == timePtrType {
		return &t, nil
	}
	return t, nil
}

func (n *DateTimeNormalizer) parse(data any) (time.Time, error) {
	switch v := data.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, errors.Wrap(apperrors.ErrInvalidFormat, "nil time")
		}
		return *v, nil
	case []byte:
		return n.parseString(string(v))
	case string:
		return n.parseString(v)
	case json.Number:
		secs, err := v.Int64()
		if err != nil {
			return time.Time{}, errors.Wrapf(apperrors.ErrInvalidFormat, "timestamp %q", v.String())
		}
		return time.Unix(secs, 0).In(n.location), nil
	case int64:
		return time.Unix(v, 0).In(n.location), nil
	case int:
		return time.Unix(int64(v), 0).In(n.location), nil
	case float64:
		return time.Unix(int64(v), 0).In(n.location), nil
	}
	return time.Time{}, errors.Wrapf(apperrors.ErrInvalidFormat, "cannot read a time from %T", data)
}

func (n *DateTimeNormalizer) parseString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.Wrap(apperrors.ErrInvalidFormat, "empty string is not a valid date")
	}
	for _, layout := range []string{n.layout, time.RFC3339Nano} {
		if t, err := time.ParseInLocation(layout, s, n.location); err == nil {
			return t, nil
		}
	}
	t, err := now.ParseInLocation(n.location, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(apperrors.ErrInvalidFormat, "date %q", s)
	}
	return t, nil
}
