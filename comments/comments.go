// Package comments implements the comment form: required-field
// validation, the per-form submission state machine, and the endpoint that
// receives new comments.
package comments

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInFlight is returned by Form.Submit while an earlier submission of the
// same form has not finished.
var ErrInFlight = errors.New("comments: submission already in flight")

// Input is what a reader types into the comment form. PostID travels in a
// hidden field and is not validated here.
type Input struct {
	PostID  string `json:"_id" form:"_id"`
	Name    string `json:"name" form:"name" validate:"required"`
	Email   string `json:"email" form:"email" validate:"required"`
	Comment string `json:"comment" form:"comment" validate:"required"`
}

// Fields lists the validated fields in form order.
var Fields = []string{"name", "email", "comment"}

var messages = map[string]string{
	"name":    "Name is required",
	"email":   "Email is required",
	"comment": "Comment is required",
}

// FieldErrors maps a field name (as in Fields) to its message.
type FieldErrors map[string]string

// Messages returns the messages in form order.
func (fe FieldErrors) Messages() []string {
	out := make([]string, 0, len(fe))
	for _, f := range Fields {
		if m, ok := fe[f]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (fe FieldErrors) Error() string {
	return "comments: " + strings.Join(fe.Messages(), ", ")
}

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

// Validate checks the required fields and returns nil when all are present.
func Validate(in Input) FieldErrors {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"comment": err.Error()}
	}
	fe := make(FieldErrors, len(verrs))
	for _, ve := range verrs {
		field := ve.Field()
		msg, ok := messages[field]
		if !ok {
			msg = field + " is invalid"
		}
		fe[field] = msg
	}
	return fe
}
