package auth

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooLong      = errors.New("auth: password must be at most 72 bytes")
	ErrCredentialUnreadable = errors.New("auth: password digests are not readable")
)

// Credential holds a bcrypt digest. It can be verified against a plaintext
// and handed to the database driver, but never read back as a value.
type Credential struct {
	digest []byte
}

func (c Credential) IsZero() bool {
	return len(c.digest) == 0
}

// Verify reports whether plaintext hashes to the stored digest.
func (c Credential) Verify(plaintext string) bool {
	if c.IsZero() {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.digest, []byte(plaintext)) == nil
}

func (c Credential) String() string {
	return "[REDACTED]"
}

func (c Credential) GoString() string {
	return "auth.Credential{[REDACTED]}"
}

func (c Credential) MarshalJSON() ([]byte, error) {
	return nil, ErrCredentialUnreadable
}

func (c Credential) MarshalText() ([]byte, error) {
	return nil, ErrCredentialUnreadable
}

// Value implements driver.Valuer so the digest can be persisted.
func (c Credential) Value() (driver.Value, error) {
	if c.IsZero() {
		return nil, nil
	}
	return string(c.digest), nil
}

// Scan implements sql.Scanner so the digest can be loaded from storage.
func (c *Credential) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.digest = nil
	case string:
		c.digest = []byte(v)
	case []byte:
		c.digest = append([]byte(nil), v...)
	default:
		return fmt.Errorf("auth: cannot scan %T into credential", src)
	}
	return nil
}

// Hasher turns plaintext passwords into salted bcrypt credentials.
type Hasher struct {
	cost int

	decoyOnce sync.Once
	decoy     Credential
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(plaintext string) (Credential, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return Credential{}, ErrPasswordTooLong
		}
		return Credential{}, fmt.Errorf("auth: hash password: %w", err)
	}

	return Credential{digest: digest}, nil
}

// VerifyMissing spends the same work as a real verification and always
// fails. Login calls it for unknown usernames so response timing does not
// reveal which usernames exist.
func (h *Hasher) VerifyMissing(plaintext string) bool {
	h.decoyOnce.Do(func() {
		digest, err := bcrypt.GenerateFromPassword([]byte("decoy-password"), h.cost)
		if err == nil {
			h.decoy = Credential{digest: digest}
		}
	})
	h.decoy.Verify(plaintext)
	return false
}
