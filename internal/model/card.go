package model

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	apperrors "modelnormalizer/internal/errors"
)

var (
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{2})$`)
	cvvPattern    = regexp.MustCompile(`^\d{3,4}$`)
)

var cardSchema = NewSchema("card",
	WithTimestamps(),
	WithDates("deleted_at"),
	WithHidden("deleted_at"),
	WithVisible("expired"),
	BelongsTo("account", "account_id", reflect.TypeFor[*Account]()),
	WithMutator("card_number", func(m Model, value any) error {
		number, ok := value.(string)
		if !ok {
			m.SetRawAttribute("card_number", value)
			return nil
		}
		if err := ValidateCardNumber(number); err != nil {
			return err
		}
		m.SetRawAttribute("card_number", MaskCardNumber(number))
		return nil
	}),
	WithMutator("card_expiry", func(m Model, value any) error {
		if expiry, ok := value.(string); ok && !expiryPattern.MatchString(expiry) {
			return errors.Wrapf(apperrors.ErrInvalidFormat, "card expiry %q is not MM/YY", expiry)
		}
		m.SetRawAttribute("card_expiry", value)
		return nil
	}),
	WithGetter("expired", func(m Model) any {
		return m.(*Card).Expired(time.Now())
	}),
)

// Card represents a payment card linked to an account.
type Card struct {
	Base
}

// NewCard returns an empty card.
func NewCard() *Card {
	return Boot(&Card{})
}

// DefineSchema implements Model.
func (c *Card) DefineSchema() *Schema { return cardSchema }

// CardNumber returns the masked card number.
func (c *Card) CardNumber() string { return c.GetString("card_number") }

// CardExpiry returns the MM/YY expiry.
func (c *Card) CardExpiry() string { return c.GetString("card_expiry") }

// Balance returns the card balance.
func (c *Card) Balance() decimal.Decimal { return c.GetDecimal("balance") }

// Account returns the loaded owning account, if any.
func (c *Card) Account() *Account {
	related, _ := c.Relation("account")
	account, _ := related.(*Account)
	return account
}

// Expired reports whether the MM/YY expiry lies before the month of now.
// Unparseable expiries count as expired.
func (c *Card) Expired(now time.Time) bool {
	parts := strings.Split(c.CardExpiry(), "/")
	if len(parts) != 2 {
		return true
	}

	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return true
	}

	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return true
	}
	if year < 100 {
		year += 2000
	}

	expiry := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return expiry.Before(current)
}

// ValidateCardNumber checks length and Luhn checksum of a card number.
// Spaces and dashes are ignored; already masked numbers are accepted.
func ValidateCardNumber(number string) error {
	number = strings.ReplaceAll(strings.ReplaceAll(number, " ", ""), "-", "")
	if strings.HasPrefix(number, "****") {
		return nil
	}
	if len(number) < 13 || len(number) > 19 {
		return errors.Wrap(apperrors.ErrInvalidFormat, "card number must have 13 to 19 digits")
	}

	sum := 0
	isEven := false

	// Process from right to left
	for i := len(number) - 1; i >= 0; i-- {
		digit, err := strconv.Atoi(string(number[i]))
		if err != nil {
			return errors.Wrap(apperrors.ErrInvalidFormat, "card number must be numeric")
		}

		if isEven {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}

		sum += digit
		isEven = !isEven
	}

	if sum%10 != 0 {
		return errors.Wrap(apperrors.ErrInvalidFormat, "card number fails the Luhn check")
	}
	return nil
}

// MaskCardNumber keeps the last four digits of a card number.
func MaskCardNumber(number string) string {
	number = strings.ReplaceAll(strings.ReplaceAll(number, " ", ""), "-", "")
	if strings.HasPrefix(number, "****") {
		return number
	}
	if len(number) < 4 {
		return "****"
	}
	return "****" + number[len(number)-4:]
}
