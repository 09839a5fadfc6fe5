// Package validation checks request payloads before they reach persistence.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes a single rejected field.
type FieldError struct {
	Value    string `json:"value"`
	Msg      string `json:"msg"`
	Param    string `json:"param"`
	Location string `json:"location"`
}

// Errors is the accumulated list of field errors for one payload.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i := range e {
		msgs[i] = e[i].Msg
	}
	return strings.Join(msgs, "; ")
}

// TodoInput is the body accepted by create and update.
type TodoInput struct {
	Title       string `json:"title" validate:"required,min=4"`
	Description string `json:"description" validate:"required,min=4"`
}

// RegisterInput is the body accepted by user registration.
type RegisterInput struct {
	Name     string `json:"name" validate:"required" msg:"Please add name"`
	Email    string `json:"email" validate:"required,email" msg:"Please include a valid email"`
	Password string `json:"password" validate:"required,min=6" msg:"Please enter a password with 6 or more characters" redact:"true"`
}

// LoginInput is the body accepted by login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email" msg:"Please include a valid email"`
	Password string `json:"password" validate:"required" msg:"Password is required" redact:"true"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Check validates a body struct and returns every failing field, or nil.
func Check(payload any) Errors {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Errors{{Msg: err.Error(), Location: "body"}}
	}

	typ := reflect.Indirect(reflect.ValueOf(payload)).Type()
	out := make(Errors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field, _ := typ.FieldByName(fe.StructField())
		value := fmt.Sprint(fe.Value())
		if field.Tag.Get("redact") == "true" {
			value = ""
		}
		out = append(out, FieldError{
			Value:    value,
			Msg:      message(field, fe),
			Param:    fe.Field(),
			Location: "body",
		})
	}
	return out
}

func message(field reflect.StructField, fe validator.FieldError) string {
	if msg := field.Tag.Get("msg"); msg != "" {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s should not be empty", fe.Field())
	case "min":
		return fmt.Sprintf("%s should contain atleast %s characters", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s should be a valid email", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
