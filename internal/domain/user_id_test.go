package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/csrf-target/internal/domain"
)

func TestUserID_PreservesJSONForm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		wantValue   string
		wantNumeric bool
	}{
		{
			name:        "numeric id",
			input:       `{"id":1,"email":"a@b.c","password":"x"}`,
			wantValue:   "1",
			wantNumeric: true,
		},
		{
			name:        "string id",
			input:       `{"id":"u-1","email":"a@b.c","password":"x"}`,
			wantValue:   "u-1",
			wantNumeric: false,
		},
		{
			name:        "numeric-looking string id",
			input:       `{"id":"42","email":"a@b.c","password":"x"}`,
			wantValue:   "42",
			wantNumeric: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var user domain.User
			require.NoError(t, json.Unmarshal([]byte(tt.input), &user))
			assert.Equal(t, tt.wantValue, user.ID.String())
			assert.Equal(t, tt.wantNumeric, user.ID.Numeric())

			out, err := json.Marshal(user)
			require.NoError(t, err)
			assert.JSONEq(t, tt.input, string(out))
		})
	}
}

func TestUserID_RejectsObjects(t *testing.T) {
	t.Parallel()

	var id domain.UserID
	assert.Error(t, json.Unmarshal([]byte(`{"nested":true}`), &id))
}
