package users

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// User represents an account holder. UID is the external, stable identifier
// and the logical primary key in every store.
type User struct {
	UID         string `json:"uid" firestore:"uid" validate:"required,max=128"`
	Username    string `json:"username" firestore:"username"`
	Email       string `json:"email" firestore:"email"`
	DateOfBirth string `json:"dateOfBirth" firestore:"dateOfBirth"`
	Gender      string `json:"gender" firestore:"gender"`
	Region      string `json:"region" firestore:"region"`
	Photo       string `json:"photo" firestore:"photo"`
}

// UserUpdate maps JSON field names of User to their new values.
type UserUpdate map[string]any

// updatableFields maps the JSON name of every mutable User field to its
// column in the relational store. uid is immutable.
var updatableFields = map[string]string{
	"username":    "username",
	"email":       "email",
	"dateOfBirth": "date_of_birth",
	"gender":      "gender",
	"region":      "region",
	"photo":       "photo",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the fields required to persist the user
func (u *User) Validate() error {
	if u == nil {
		return NewValidationError("user", nil, "user is required")
	}
	if err := validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return NewValidationError(fe.Field(), fe.Value(), validationMessage(fe))
		}
		return NewValidationError("user", u.UID, err.Error())
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Fields validates the update against the User schema and returns the
// string values keyed by JSON field name.
func (u UserUpdate) Fields() (map[string]string, error) {
	if len(u) == 0 {
		return nil, NewValidationError("update", nil, "at least one field is required")
	}

	fields := make(map[string]string, len(u))
	for name, value := range u {
		if name == "uid" {
			return nil, NewValidationError(name, value, "uid cannot be updated")
		}
		if _, ok := updatableFields[name]; !ok {
			return nil, NewValidationError(name, value, "unknown field")
		}
		str, ok := value.(string)
		if !ok {
			return nil, NewValidationError(name, value, "must be a string")
		}
		fields[name] = str
	}
	return fields, nil
}

// sortedFieldNames returns the keys of fields in a stable order
func sortedFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func requireUID(uid string) error {
	if strings.TrimSpace(uid) == "" {
		return NewValidationError("uid", uid, "is required")
	}
	return nil
}
