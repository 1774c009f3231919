package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ErrorResponse struct {
	FailedField string `json:"failed_field"`
	Tag         string `json:"tag"`
	Value       string `json:"value"`
}

func (e *ErrorResponse) String() string {
	if e.Value == "" {
		return fmt.Sprintf("%s failed %s", e.FailedField, e.Tag)
	}
	return fmt.Sprintf("%s failed %s=%s", e.FailedField, e.Tag, e.Value)
}

// Errors is returned by Validate when at least one field fails.
type Errors []*ErrorResponse

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.String())
	}
	return strings.Join(parts, "; ")
}

var validate = validator.New()

func ValidateStruct(data interface{}) []*ErrorResponse {
	var out []*ErrorResponse
	err := validate.Struct(data)
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []*ErrorResponse{{FailedField: "", Tag: err.Error()}}
		}
		for _, err := range fieldErrs {
			var element ErrorResponse
			element.FailedField = err.StructNamespace()
			element.Tag = err.Tag()
			element.Value = err.Param()
			out = append(out, &element)
		}
	}
	return out
}

// Validate is ValidateStruct returning an error, nil when data is valid.
func Validate(data interface{}) error {
	if errs := ValidateStruct(data); len(errs) > 0 {
		return Errors(errs)
	}
	return nil
}
