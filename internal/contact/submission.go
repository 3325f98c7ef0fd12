// Package contact implements the contact form endpoint.
package contact

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Submission is the JSON body of POST /api/contact.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Normalize trims every field.
func (s Submission) Normalize() Submission {
	return Submission{
		Name:    strings.TrimSpace(s.Name),
		Email:   strings.TrimSpace(s.Email),
		Message: strings.TrimSpace(s.Message),
	}
}

// Validate checks the trimmed field constraints. The returned error is a
// validation.Errors keyed by JSON field name.
func (s Submission) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required, validation.RuneLength(2, 120)),
		validation.Field(&s.Email, validation.Required, validation.RuneLength(1, 256), is.EmailFormat),
		validation.Field(&s.Message, validation.Required, validation.RuneLength(12, 5000)),
	)
}

// FieldErrors flattens a validation error into field -> message.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	errs, ok := err.(validation.Errors)
	if !ok {
		if err != nil {
			out["_"] = err.Error()
		}
		return out
	}
	for field, fe := range errs {
		if fe != nil {
			out[field] = fe.Error()
		}
	}
	return out
}
