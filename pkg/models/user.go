package models

import (
	"github.com/catto/models/pkg/schema"
	"github.com/catto/models/pkg/token"
)

// UserData holds the declared fields of a user.
type UserData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// User is a CI user and their sealed SCM token.
type User struct {
	Record

	data   UserData
	sealer token.Sealer
}

// Compile-time interface check.
var _ Entity = (*User)(nil)

func newUser(cfg *RecordConfig, sealer token.Sealer) (*User, error) {
	u := &User{sealer: sealer}
	if err := u.init(schema.User, cfg, &u.data); err != nil {
		return nil, err
	}

	return u, nil
}

func (u *User) Username() string { return u.data.Username }

// Token returns the sealed token.
func (u *User) Token() string { return u.data.Token }

// SealToken seals plain and stores it as the user's token.
func (u *User) SealToken(plain string) error {
	sealed, err := u.sealer.Seal(plain)
	if err != nil {
		return err
	}

	u.data.Token = sealed
	u.set(schema.UserToken, sealed)

	return nil
}

// UnsealToken returns the plaintext token. A user without a token yields an
// empty string.
func (u *User) UnsealToken() (string, error) {
	if u.data.Token == "" {
		return "", nil
	}

	return u.sealer.Unseal(u.data.Token)
}
