package models

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Account is the single shared team credential the auth gate checks against.
type Account struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// Password Helper (Standard)
type Password struct {
	Plaintext *string
	Hash      string
}

func (p *Password) Set(plaintextPassword string) error {
	return p.SetWithCost(plaintextPassword, bcrypt.DefaultCost)
}

// SetWithCost hashes with an explicit bcrypt cost. Tests use bcrypt.MinCost.
func (p *Password) SetWithCost(plaintextPassword string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), cost)
	if err != nil {
		return err
	}
	p.Hash = string(hash)
	p.Plaintext = &plaintextPassword
	return nil
}

func (p *Password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(p.Hash), []byte(plaintextPassword))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
