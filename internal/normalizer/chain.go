package normalizer

import (
	"modelnormalizer/internal/serializer"
)

// NewSerializer builds the chain used by the service: dates, decimals and
// UUIDs first, then models, with JSON encoding.
func NewSerializer(opts ...Option) (*serializer.Chain, error) {
	return serializer.New([]any{
		serializer.NewDateTimeNormalizer(),
		serializer.DecimalNormalizer{},
		serializer.UUIDNormalizer{},
		New(opts...),
	}, serializer.JSONEncoder{})
}
