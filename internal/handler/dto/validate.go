// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/taskflow/taskflow/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// messages maps "<json field>.<rule>" to the client-facing message.
var messages = map[string]string{
	"name.required":            "Name required",
	"name.min":                 "Name 2-50 chars",
	"name.max":                 "Name 2-50 chars",
	"email.required":           "Email required",
	"email.email":              "Invalid email",
	"email.max":                "Invalid email",
	"password.required":        "Password required",
	"password.min":             "Password min 6 chars",
	"password.max":             "Password max 128 chars",
	"role.oneof":               "Invalid role",
	"currentPassword.required": "Current password required",
	"newPassword.required":     "New password required",
	"newPassword.min":          "Password min 6 chars",
	"newPassword.max":          "Password max 128 chars",
	"title.required":           "Title required",
	"title.min":                "Title 3-100 chars",
	"title.max":                "Title 3-100 chars",
	"description.max":          "Description max 500 chars",
	"status.oneof":             "Invalid status",
	"priority.oneof":           "Invalid priority",
}

// Validate checks v's struct tags. All failures are reported in one
// validation error, messages joined with ". ".
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation("Invalid request body").Wrap(err)
	}

	seen := make(map[string]bool, len(fieldErrs))
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "Invalid " + fe.Field()
		}
		if !seen[msg] {
			seen[msg] = true
			msgs = append(msgs, msg)
		}
	}
	return apperr.Validation(strings.Join(msgs, ". "))
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
