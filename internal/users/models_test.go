package users

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserJSONRoundTrip(t *testing.T) {
	user := User{
		UID:         "u1",
		Username:    "alice",
		Email:       "a@x.com",
		DateOfBirth: "1990-01-01",
		Gender:      "female",
		Region:      "Lviv",
		Photo:       "https://example.com/alice.png",
	}

	data, err := json.Marshal(user)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dateOfBirth":"1990-01-01"`)

	var decoded User
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, user, decoded)
}

func TestUserValidate(t *testing.T) {
	assert.NoError(t, (&User{UID: "u1"}).Validate())

	err := (&User{Username: "alice"}).Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "uid", verr.Field)
	assert.Equal(t, "is required", verr.Message)

	err = (&User{UID: strings.Repeat("x", 129)}).Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must be at most 128 characters", verr.Message)

	var nilUser *User
	assert.Error(t, nilUser.Validate())
}

func TestUserUpdateFields(t *testing.T) {
	fields, err := UserUpdate{"username": "bob", "dateOfBirth": "2000-02-02"}.Fields()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"username": "bob", "dateOfBirth": "2000-02-02"}, fields)
	assert.Equal(t, []string{"dateOfBirth", "username"}, sortedFieldNames(fields))

	tests := map[string]UserUpdate{
		"empty":         {},
		"unknown field": {"password": "secret"},
		"uid":           {"uid": "other"},
		"non string":    {"region": 42.0},
	}
	for name, update := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := update.Fields()
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
		})
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "not_found", ErrorKind(NewNotFoundError("u1")))
	assert.Equal(t, "already_exists", ErrorKind(NewDuplicateUserError("u1")))
	assert.Equal(t, "validation_failed", ErrorKind(NewValidationError("uid", "", "is required")))
	assert.Equal(t, StoreErrorTypeConstraintViolation, ErrorKind(NewStoreConstraintError("save", "pg", errors.New("dup"))))
	assert.Equal(t, "unknown", ErrorKind(errors.New("boom")))
}

func TestStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStoreConnectionError("ping", "pg", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage error [connection_failed] during ping on pg: failed to connect to storage (caused by: connection refused)", err.Error())
	assert.False(t, IsConstraintViolation(err))
	assert.True(t, IsConstraintViolation(NewStoreConstraintError("save", "pg", cause)))
	assert.Equal(t, "User already exists", NewDuplicateUserError("u1").Error())
}
