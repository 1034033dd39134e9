package model

import (
	"fmt"
	"strings"
)

var accountSchema = NewSchema("account",
	WithTimestamps(),
	WithDates("deleted_at"),
	WithHidden("password_hash", "deleted_at"),
	WithVisible("display_name"),
	WithMutator("email", func(m Model, value any) error {
		email, ok := value.(string)
		if !ok {
			m.SetRawAttribute("email", value)
			return nil
		}
		m.SetRawAttribute("email", strings.ToLower(strings.TrimSpace(email)))
		return nil
	}),
	WithGetter("display_name", func(m Model) any {
		a := m.(*Account)
		if a.Email() == "" {
			return a.Name()
		}
		return fmt.Sprintf("%s <%s>", a.Name(), a.Email())
	}),
)

// Account represents a merchant or user account in the payment system.
type Account struct {
	Base
}

// NewAccount returns an empty account.
func NewAccount() *Account {
	return Boot(&Account{})
}

// DefineSchema implements Model.
func (a *Account) DefineSchema() *Schema { return accountSchema }

// Name returns the account holder name.
func (a *Account) Name() string { return a.GetString("name") }

// Email returns the normalized email address.
func (a *Account) Email() string { return a.GetString("email") }

// IsMerchant reports whether the account receives card payments.
func (a *Account) IsMerchant() bool { return a.GetBool("is_merchant") }

// Active reports whether the account may transact.
func (a *Account) Active() bool { return a.GetBool("active") }
