package models

import (
	"database/sql/driver"

	"github.com/wuwenbin0122/recipebox/internal/auth"
)

// User represents an application user record. The password credential is
// write-only: it can be set from a plaintext and verified, never read.
type User struct {
	ID       int64
	Username string
	ImageURL *string
	Bio      *string

	password auth.Credential
}

// RestoreUser rebuilds a persisted user together with its stored credential.
func RestoreUser(id int64, username string, imageURL, bio *string, password auth.Credential) *User {
	return &User{
		ID:       id,
		Username: username,
		ImageURL: imageURL,
		Bio:      bio,
		password: password,
	}
}

// SetPasswordFromPlaintext hashes plaintext and attaches the digest. The
// plaintext is not retained.
func (u *User) SetPasswordFromPlaintext(hasher *auth.Hasher, plaintext string) error {
	credential, err := hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	u.password = credential
	return nil
}

func (u *User) VerifyPassword(plaintext string) bool {
	return u.password.Verify(plaintext)
}

// PasswordValuer exposes the credential only as a database argument.
func (u *User) PasswordValuer() driver.Valuer {
	return u.password
}
