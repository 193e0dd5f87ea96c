package domain

import "errors"

var (
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the email/password combination is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingCredentials is returned when email or password is empty on login.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidEmail is returned when a new email does not contain an "@".
	ErrInvalidEmail = errors.New("invalid email")
	// ErrPasswordTooShort is returned when a new password is shorter than MinPasswordLength.
	ErrPasswordTooShort = errors.New("password too short")
)

// MinPasswordLength is the minimum length of a trimmed password on profile edit.
const MinPasswordLength = 3

// User is a stored account. Passwords are kept in plaintext on purpose.
type User struct {
	ID       UserID `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
