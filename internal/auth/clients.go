package auth

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/bcrypt"

	apperrors "modelnormalizer/internal/errors"
)

const bcryptCost = 10

// Clients holds the API clients allowed to obtain tokens, keyed by client ID
// with bcrypt-hashed secrets.
type Clients struct {
	secrets map[string][]byte
}

// NewClients returns an empty client list.
func NewClients() *Clients {
	return &Clients{secrets: map[string][]byte{}}
}

// AddHashed registers a client with an existing bcrypt hash.
func (c *Clients) AddHashed(clientID, hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return errors.Wrapf(apperrors.ErrInvalidConfiguration, "client %q: secret is not a bcrypt hash", clientID)
	}
	c.secrets[clientID] = []byte(hash)
	return nil
}

// Add registers a client with a plain secret, hashing it first.
func (c *Clients) Add(clientID, secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return errors.Wrap(err, "hash client secret")
	}
	c.secrets[clientID] = hash
	return nil
}

// Verify checks a client secret.
func (c *Clients) Verify(clientID, secret string) error {
	hash, ok := c.secrets[clientID]
	if !ok {
		return apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return apperrors.ErrInvalidCredentials
	}
	return nil
}
