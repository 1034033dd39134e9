package normalizer

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelnormalizer/internal/serializer"
)

func TestNewSerializer_RoundTrip(t *testing.T) {
	chain, err := NewSerializer(WithIgnoredAttributes("title"))
	require.NoError(t, err)

	payload := []byte(`{"title":"Hi","published_at":"2024-01-01T10:00:00Z","author":{"id":7}}`)
	got, err := chain.Deserialize(payload, reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)

	article := got.(*Article)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), article.GetTime("published_at"))

	out, err := chain.Serialize(article, serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	assert.Equal(t, `{"published_at":"2024-01-01T10:00:00Z","author":{"id":7}}`, string(out))
}
