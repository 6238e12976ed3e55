package domain

import (
	"strconv"
	"strings"
	"time"
)

// Role classifies an account within the Luka Points program.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCompany Role = "company"
	RoleStudent Role = "student"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCompany, RoleStudent:
		return true
	}
	return false
}

// AccountRef is the opaque identifier naming a balance-holding entity.
// Depending on the backend it wraps an email address or a numeric account
// id; callers must never depend on which shape is inside.
type AccountRef string

// RefFromEmail normalizes an email address into an account reference.
func RefFromEmail(email string) AccountRef {
	return AccountRef(strings.ToLower(strings.TrimSpace(email)))
}

// RefFromID normalizes a numeric account id into an account reference.
func RefFromID(id int64) AccountRef {
	return AccountRef(strconv.FormatInt(id, 10))
}

// NewAccountRef normalizes an externally supplied identifier (QR payload,
// URL segment, form field) into an account reference.
func NewAccountRef(s string) AccountRef {
	return AccountRef(strings.ToLower(strings.TrimSpace(s)))
}

func (r AccountRef) String() string { return string(r) }

// IsZero reports whether the reference is empty.
func (r AccountRef) IsZero() bool { return r == "" }

// NumericID returns the wrapped numeric account id, if the reference
// holds one.
func (r AccountRef) NumericID() (int64, bool) {
	id, err := strconv.ParseInt(string(r), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Account is a balance-holding entity. Balance is an integer number of
// Luka Points and must never go negative as a result of a transfer.
type Account struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Balance      int64     `json:"balance"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Ref returns the canonical (numeric) reference for the account.
func (a *Account) Ref() AccountRef {
	return RefFromID(a.ID)
}
