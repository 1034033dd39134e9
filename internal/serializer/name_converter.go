package serializer

import (
	"strings"
	"unicode"
)

// NameConverter maps attribute names to wire names and back.
type NameConverter interface {
	Normalize(name string) string
	Denormalize(name string) string
}

// SnakeToCamelNameConverter exposes snake_case attributes as camelCase.
type SnakeToCamelNameConverter struct{}

var _ NameConverter = SnakeToCamelNameConverter{}

// Normalize turns "merchant_account_id" into "merchantAccountId".
func (SnakeToCamelNameConverter) Normalize(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	b.Grow(len(name))
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(part)
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// Denormalize turns "merchantAccountId" into "merchant_account_id".
func (SnakeToCamelNameConverter) Denormalize(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type identityNameConverter struct{}

func (identityNameConverter) Normalize(name string) string   { return name }
func (identityNameConverter) Denormalize(name string) string { return name }

// IdentityNameConverter leaves names untouched.
var IdentityNameConverter NameConverter = identityNameConverter{}
