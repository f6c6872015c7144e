package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const MinInstructionsLength = 50

var ErrInvalidRecipe = errors.New("models: invalid recipe")

type Recipe struct {
	ID                int64
	Title             string
	Instructions      string
	MinutesToComplete int
	UserID            *int64

	// User is the owner, populated by lookups that join users.
	User *User
}

// Validate checks the field rules every persisted recipe must satisfy.
func (r *Recipe) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title must be present", ErrInvalidRecipe)
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Instructions)) < MinInstructionsLength {
		return fmt.Errorf("%w: instructions must be at least %d characters long", ErrInvalidRecipe, MinInstructionsLength)
	}
	if r.UserID == nil {
		return fmt.Errorf("%w: owner must be set", ErrInvalidRecipe)
	}
	return nil
}
