package normalizer

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/model"
	"modelnormalizer/internal/ordered"
	"modelnormalizer/internal/serializer"
)

var authorSchema = model.NewSchema("author")

type Author struct{ model.Base }

func (a *Author) DefineSchema() *model.Schema { return authorSchema }

var articleSchema = model.NewSchema("article",
	model.WithDates("published_at", "archived_at"),
	model.BelongsTo("author", "author_id", reflect.TypeFor[*Author]()),
	model.BelongsTo("main_editor", "", reflect.TypeFor[*Author]()),
	model.WithMutator("archived_at", func(m model.Model, value any) error {
		m.SetRawAttribute("archived_at", fmt.Sprintf("archived:%v", value))
		return nil
	}),
	model.WithMutator("slug", func(m model.Model, value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("slug must be a string, got %T", value)
		}
		m.SetRawAttribute("slug", s)
		return nil
	}),
)

type Article struct{ model.Base }

func (a *Article) DefineSchema() *model.Schema { return articleSchema }

var categorySchema = model.NewSchema("category",
	model.BelongsTo("parent", "parent_id", reflect.TypeFor[*Category]()),
)

type Category struct{ model.Base }

func (c *Category) DefineSchema() *model.Schema { return categorySchema }

func newArticle(attrs ...any) *Article {
	a := model.Boot(&Article{})
	for i := 0; i+1 < len(attrs); i += 2 {
		a.SetRawAttribute(attrs[i].(string), attrs[i+1])
	}
	return a
}

func newAuthor(attrs ...any) *Author {
	a := model.Boot(&Author{})
	for i := 0; i+1 < len(attrs); i += 2 {
		a.SetRawAttribute(attrs[i].(string), attrs[i+1])
	}
	return a
}

func rep(pairs ...any) *ordered.Map[any] {
	m := ordered.New[any]()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1])
	}
	return m
}

func newChain(t *testing.T, opts ...Option) (*serializer.Chain, *ModelNormalizer) {
	t.Helper()
	n := New(opts...)
	chain, err := serializer.New([]any{
		serializer.NewDateTimeNormalizer(),
		serializer.DecimalNormalizer{},
		serializer.UUIDNormalizer{},
		n,
	}, serializer.JSONEncoder{})
	require.NoError(t, err)
	return chain, n
}

func TestSupportsNormalization(t *testing.T) {
	n := New()
	assert.True(t, n.SupportsNormalization(newArticle(), serializer.FormatJSON))
	assert.False(t, n.SupportsNormalization((*Article)(nil), serializer.FormatJSON))
	assert.False(t, n.SupportsNormalization(nil, serializer.FormatJSON))
	assert.False(t, n.SupportsNormalization(map[string]any{}, serializer.FormatJSON))
	assert.False(t, n.SupportsNormalization(Article{}, serializer.FormatJSON))
}

func TestSupportsDenormalization(t *testing.T) {
	n := New()
	tests := []struct {
		typ  reflect.Type
		want bool
	}{
		{reflect.TypeFor[*Article](), true},
		{reflect.TypeFor[*Author](), true},
		{reflect.TypeFor[Article](), false},
		{reflect.TypeFor[*model.Base](), false},
		{reflect.TypeFor[model.Model](), false},
		{reflect.TypeFor[map[string]any](), false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.SupportsDenormalization(nil, tt.typ, serializer.FormatJSON), "%v", tt.typ)
	}
}

func TestExtractAttributes(t *testing.T) {
	tests := []struct {
		name  string
		build func() model.Model
		opts  []Option
		want  []string
	}{
		{
			name: "attribute keys in order",
			build: func() model.Model {
				return newArticle("title", "Hi", "body", "...", "views", 3)
			},
			want: []string{"title", "body", "views"},
		},
		{
			name: "visible names appended after attributes",
			build: func() model.Model {
				a := newArticle("title", "Hi", "body", "...")
				a.SetVisible("summary", "title")
				return a
			},
			want: []string{"title", "body", "summary"},
		},
		{
			name: "hidden wins over visible",
			build: func() model.Model {
				a := newArticle("title", "Hi", "secret", "x")
				a.SetVisible("secret", "summary")
				a.SetHidden("secret", "summary")
				return a
			},
			want: []string{"title"},
		},
		{
			name: "loaded relation replaces its foreign key",
			build: func() model.Model {
				a := newArticle("title", "Hi", "body", "...", "author_id", 7)
				a.SetRelation("author", newAuthor("id", 7))
				return a
			},
			want: []string{"title", "body", "author"},
		},
		{
			name: "null relation leaves foreign key alone",
			build: func() model.Model {
				a := newArticle("title", "Hi", "author_id", 7)
				a.SetRelation("author", nil)
				return a
			},
			want: []string{"title", "author_id"},
		},
		{
			name: "undeclared foreign key falls back to related default",
			build: func() model.Model {
				a := newArticle("title", "Hi", "author_id", 7)
				a.SetRelation("main_editor", newAuthor("id", 7))
				return a
			},
			want: []string{"title", "main_editor"},
		},
		{
			name: "hidden relation is dropped",
			build: func() model.Model {
				a := newArticle("title", "Hi", "author_id", 7)
				a.SetRelation("author", newAuthor("id", 7))
				a.SetHidden("author")
				return a
			},
			want: []string{"title"},
		},
		{
			name: "ignored attributes",
			build: func() model.Model {
				return newArticle("title", "Hi", "body", "...", "views", 3)
			},
			opts: []Option{WithIgnoredAttributes("views")},
			want: []string{"title", "body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.build()
			before := m.Attributes().Keys()

			got := New(tt.opts...).ExtractAttributes(m)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, before, m.Attributes().Keys(), "extraction must not touch the model")
		})
	}
}

func TestExtractAttributes_AttributeSource(t *testing.T) {
	a := newArticle("title", "Hi", "body", "...")
	n := New(WithAttributeSource(func(m model.Model) *ordered.Map[any] {
		return rep("body", nil)
	}))
	assert.Equal(t, []string{"body"}, n.ExtractAttributes(a))
}

func TestNormalize_WithRelationsAndDates(t *testing.T) {
	chain, _ := newChain(t)

	author := newAuthor("id", 7, "name", "Ada")
	a := newArticle(
		"title", "Hi",
		"author_id", 7,
		"published_at", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	)
	a.SetRelation("author", author)

	got, err := chain.Serialize(a, serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	assert.Equal(t,
		`{"title":"Hi","published_at":"2024-01-01T00:00:00Z","author":{"id":7,"name":"Ada"}}`,
		string(got))
}

func TestNormalize_WithoutChain(t *testing.T) {
	n := New()
	a := newArticle("title", "Hi", "author_id", 7)
	a.SetRelation("author", newAuthor("id", 7))

	got, err := n.Normalize(a, serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)

	out := got.(*ordered.Map[any])
	assert.Equal(t, []string{"title", "author"}, out.Keys())
	nested, _ := out.Get("author")
	assert.Equal(t, []string{"id"}, nested.(*ordered.Map[any]).Keys())
}

func TestNormalize_VisibleOnlyFieldsReadAsNull(t *testing.T) {
	chain, _ := newChain(t)

	a := newArticle("title", "Hi", "secret", "s3cr3t")
	a.SetHidden("secret")
	a.SetVisible("subtitle", "attributes", "schema", "relations", "secret")

	got, err := chain.Serialize(a, serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	assert.Equal(t,
		`{"title":"Hi","subtitle":null,"attributes":null,"schema":null,"relations":null}`,
		string(got))
	assert.NotContains(t, string(got), "s3cr3t")
}

func TestNormalize_CircularReference(t *testing.T) {
	a := model.Boot(&Category{})
	b := model.Boot(&Category{})
	a.SetRawAttribute("id", 1)
	b.SetRawAttribute("id", 2)
	a.SetRelation("parent", b)
	b.SetRelation("parent", a)

	chain, _ := newChain(t)
	_, err := chain.Normalize(a, serializer.FormatJSON, serializer.Context{})
	assert.ErrorIs(t, err, apperrors.ErrCircularReference)

	chain, _ = newChain(t, WithCircularReferenceHandler(func(m model.Model, _ string, _ serializer.Context) (any, error) {
		v, _ := m.GetAttribute("id")
		return v, nil
	}))
	got, err := chain.Serialize(a, serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"parent":{"id":2,"parent":1}}`, string(got))
}

func TestNormalize_SharedModelIsNotACycle(t *testing.T) {
	author := newAuthor("id", 7)
	a := newArticle("title", "Hi")
	a.SetRelation("author", author)
	a.SetRelation("main_editor", author)

	chain, _ := newChain(t)
	got, err := chain.Serialize(a, serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Hi","author":{"id":7},"main_editor":{"id":7}}`, string(got))
}

func TestNormalize_NameConverter(t *testing.T) {
	chain, _ := newChain(t, WithNameConverter(serializer.SnakeToCamelNameConverter{}))
	a := newArticle("title", "Hi", "view_count", 3)

	got, err := chain.Serialize(a, serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Hi","viewCount":3}`, string(got))

	back, err := chain.Deserialize([]byte(`{"viewCount":3,"publishedAt":"2024-01-01T00:00:00Z"}`),
		reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	article := back.(*Article)
	assert.Equal(t, []string{"view_count", "published_at"}, article.Attributes().Keys())
	published, _ := article.GetAttribute("published_at")
	assert.IsType(t, time.Time{}, published)
}

func TestDenormalize_DateCoercion(t *testing.T) {
	chain, _ := newChain(t)
	input := rep("title", "Hi", "published_at", "2024-01-01T00:00:00Z")

	got, err := chain.Denormalize(input, reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	article := got.(*Article)

	title, ok := article.GetAttribute("title")
	require.True(t, ok)
	assert.Equal(t, "Hi", title)

	published, ok := article.GetAttribute("published_at")
	require.True(t, ok)
	require.IsType(t, time.Time{}, published)
	assert.True(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Equal(published.(time.Time)))

	raw, _ := input.Get("published_at")
	assert.Equal(t, "2024-01-01T00:00:00Z", raw, "input representation must not be modified")
}

func TestDenormalize_NullDateLeftUntouched(t *testing.T) {
	chain, _ := newChain(t)

	got, err := chain.Denormalize(rep("published_at", nil), reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)

	published, ok := got.(*Article).GetAttribute("published_at")
	assert.True(t, ok)
	assert.Nil(t, published)
}

func TestDenormalize_DateWithMutatorIsNotCoerced(t *testing.T) {
	chain, _ := newChain(t)

	got, err := chain.Denormalize(rep("archived_at", "2024-01-01"), reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)

	archived, _ := got.(*Article).GetAttribute("archived_at")
	assert.Equal(t, "archived:2024-01-01", archived)
}

func TestDenormalize_InvalidDate(t *testing.T) {
	chain, _ := newChain(t)

	_, err := chain.Denormalize(rep("published_at", "yesterday-ish"), reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidFormat)
}

func TestDenormalize_MutatorError(t *testing.T) {
	chain, _ := newChain(t)

	_, err := chain.Denormalize(rep("slug", 12), reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	assert.ErrorContains(t, err, "slug must be a string")
}

func TestDenormalize_Relations(t *testing.T) {
	chain, _ := newChain(t)

	tests := []struct {
		name     string
		key      string
		relation string
	}{
		{"declared name", "author", "author"},
		{"snake case relation", "main_editor", "main_editor"},
		{"separators stripped", "maineditor", "main_editor"},
		{"camel case", "mainEditor", "main_editor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := rep("title", "Hi", tt.key, rep("id", 7, "name", "Ada"))

			got, err := chain.Denormalize(input, reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
			require.NoError(t, err)
			article := got.(*Article)

			related, ok := article.Relation(tt.relation)
			require.True(t, ok)
			require.IsType(t, &Author{}, related)
			if diff := cmp.Diff(map[string]any{"id": 7, "name": "Ada"}, related.Attributes().ToMap()); diff != "" {
				t.Errorf("related attributes mismatch (-want +got):\n%s", diff)
			}

			_, stored := article.GetAttribute(tt.key)
			assert.False(t, stored, "relation key must not land in the attribute bag")
		})
	}
}

func TestDenormalize_PlainMapInput(t *testing.T) {
	chain, _ := newChain(t)

	input := map[string]any{
		"title":  "Hi",
		"body":   "...",
		"author": map[string]any{"id": 7},
	}
	got, err := chain.Denormalize(input, reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)

	article := got.(*Article)
	assert.Equal(t, []string{"body", "title"}, article.Attributes().Keys())
	related, ok := article.Relation("author")
	require.True(t, ok)
	assert.Equal(t, 7, related.(*Author).Key())
}

func TestDenormalize_ScalarRelationValueIsIgnored(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	chain, _ := newChain(t, WithLogger(zap.New(core)))

	got, err := chain.Denormalize(rep("title", "Hi", "author", 7), reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	article := got.(*Article)

	_, loaded := article.Relation("author")
	assert.False(t, loaded)
	_, stored := article.GetAttribute("author")
	assert.False(t, stored)
	_, stored = article.GetAttribute("author_id")
	assert.False(t, stored)

	entries := logs.FilterMessage("ignoring non-structured relation value").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "author", entries[0].ContextMap()["relation"])
}

func TestDenormalize_RoundTrip(t *testing.T) {
	chain, _ := newChain(t)

	original := newArticle("title", "Hi", "body", "...", "views", 3, "draft", false, "rating", nil)
	payload, err := chain.Serialize(original, serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)

	back, err := chain.Deserialize(payload, reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)

	got := back.(*Article).Attributes()
	assert.Equal(t, original.Attributes().Keys(), got.Keys())

	normalized, err := chain.Normalize(original, serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	roundTripped, err := chain.Denormalize(normalized, reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	if diff := cmp.Diff(original.Attributes().ToMap(), roundTripped.(*Article).Attributes().ToMap()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDenormalize_UnsupportedType(t *testing.T) {
	n := New()
	_, err := n.Denormalize(rep("title", "Hi"), reflect.TypeFor[*model.Base](), serializer.FormatJSON, serializer.Context{})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)

	_, err = n.Denormalize("title", reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)
}

func nestedCategories(depth int) *ordered.Map[any] {
	root := rep("id", 0)
	cur := root
	for i := 1; i < depth; i++ {
		next := rep("id", i)
		cur.Set("parent", next)
		cur = next
	}
	return root
}

func TestDenormalize_MaxDepth(t *testing.T) {
	chain, _ := newChain(t, WithMaxDepth(3))

	got, err := chain.Denormalize(nestedCategories(3), reflect.TypeFor[*Category](), serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	parent, _ := got.(*Category).Relation("parent")
	grandparent, _ := parent.Relation("parent")
	assert.Equal(t, 2, grandparent.(*Category).Key())

	_, err = chain.Denormalize(nestedCategories(4), reflect.TypeFor[*Category](), serializer.FormatJSON, serializer.Context{})
	assert.ErrorIs(t, err, apperrors.ErrMaxDepthExceeded)
	assert.ErrorContains(t, err, "parent.parent.parent")
}

func TestDenormalize_CircularRepresentation(t *testing.T) {
	chain, _ := newChain(t)

	input := rep("id", 1)
	input.Set("parent", rep("id", 2, "parent", input))

	_, err := chain.Denormalize(input, reflect.TypeFor[*Category](), serializer.FormatJSON, serializer.Context{})
	assert.ErrorIs(t, err, apperrors.ErrCircularReference)
}

func TestDenormalize_WithoutChainNeedsSerializerForDates(t *testing.T) {
	n := New()

	got, err := n.Denormalize(rep("title", "Hi", "author", rep("id", 7)), reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	require.NoError(t, err)
	_, ok := got.(*Article).Relation("author")
	assert.True(t, ok)

	_, err = n.Denormalize(rep("published_at", "2024-01-01"), reflect.TypeFor[*Article](), serializer.FormatJSON, serializer.Context{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidDelegate)
}

type encodeOnly struct{}

func (encodeOnly) Serialize(any, string, serializer.Context) ([]byte, error) { return nil, nil }
func (encodeOnly) Deserialize([]byte, reflect.Type, string, serializer.Context) (any, error) {
	return nil, nil
}

func TestSetSerializer_RejectsNonNormalizer(t *testing.T) {
	err := New().SetSerializer(encodeOnly{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidDelegate)
	assert.True(t, apperrors.IsConfigurationError(err))

	chain, err := serializer.New([]any{serializer.DecimalNormalizer{}})
	require.NoError(t, err)
	assert.NoError(t, New().SetSerializer(chain))
}
