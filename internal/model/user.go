package model

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// User is an account that owns items and receives notifications.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Bio          string    `json:"bio"`
	Phone        string    `json:"phone"`
	Location     string    `json:"location"`
	Avatar       string    `json:"avatar"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// ValidatePassword checks the password length policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return NewValidationError("password", fmt.Sprintf("must be at least %d characters long", MinPasswordLength))
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email looks like a single mailbox address.
func ValidateEmail(email string) error {
	if email == "" {
		return NewValidationError("email", "required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return NewValidationError("email", "invalid email address")
	}
	return nil
}

// ProfilePatch is a sparse update of the caller's own profile.
type ProfilePatch struct {
	Name     Optional[string]
	Email    Optional[string]
	Bio      Optional[string]
	Phone    Optional[string]
	Location Optional[string]
	Avatar   Optional[string]
	Password Optional[string]
}

// Validate rejects present-but-invalid values. Name and email cannot be cleared.
func (p ProfilePatch) Validate() error {
	var errs []FieldError
	if v, ok := p.Name.Get(); ok && strings.TrimSpace(v) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "cannot be empty"})
	}
	if v, ok := p.Email.Get(); ok {
		if err := ValidateEmail(NormalizeEmail(v)); err != nil {
			errs = append(errs, FieldError{Field: "email", Message: "invalid email address"})
		}
	}
	if v, ok := p.Password.Get(); ok && len(v) < MinPasswordLength {
		errs = append(errs, FieldError{Field: "password", Message: fmt.Sprintf("must be at least %d characters long", MinPasswordLength)})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// Diff lists changed profile fields as "field: old → new".
func (u User) Diff(updated User) []string {
	var changes []string
	changes = appendChange(changes, "name", u.Name, updated.Name)
	changes = appendChange(changes, "email", u.Email, updated.Email)
	changes = appendChange(changes, "bio", u.Bio, updated.Bio)
	changes = appendChange(changes, "phone", u.Phone, updated.Phone)
	changes = appendChange(changes, "location", u.Location, updated.Location)
	return changes
}
