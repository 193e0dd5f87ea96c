package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UserID identifies a user. The database file may carry ids as JSON numbers or
// strings; UserID keeps track of which so that a rewrite preserves the form.
type UserID struct {
	value   string
	numeric bool
}

// NewUserID returns a string user id.
func NewUserID(value string) UserID {
	return UserID{value: value}
}

// NewNumericUserID returns a user id that is serialised as a JSON number.
func NewNumericUserID(value int64) UserID {
	return UserID{value: strconv.FormatInt(value, 10), numeric: true}
}

// ParseUserID restores a user id from its string form and numeric flag.
func ParseUserID(value string, numeric bool) UserID {
	return UserID{value: value, numeric: numeric}
}

// String returns the id's textual value.
func (id UserID) String() string {
	return id.value
}

// Numeric reports whether the id is serialised as a JSON number.
func (id UserID) Numeric() bool {
	return id.numeric
}

// IsZero reports whether the id is unset.
func (id UserID) IsZero() bool {
	return id.value == ""
}

// Equal compares ids by value, ignoring their serialised form.
func (id UserID) Equal(other UserID) bool {
	return id.value == other.value
}

// MarshalJSON implements json.Marshaler.
func (id UserID) MarshalJSON() ([]byte, error) {
	if id.numeric && id.value != "" {
		return []byte(id.value), nil
	}

	//nolint:wrapcheck
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		*id = UserID{}

		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return fmt.Errorf("unmarshal user id: %w", err)
		}

		*id = UserID{value: value}

		return nil
	}

	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("unmarshal user id: %w", err)
	}

	*id = UserID{value: number.String(), numeric: true}

	return nil
}
