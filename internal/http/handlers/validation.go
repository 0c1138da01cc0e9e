// Request validation helpers.
//
// Binding errors from gin's validator are translated into a field-keyed
// details map so that 400 responses tell the client which field failed and
// why, instead of a bare "invalid request" string. Field names in the map
// are the JSON names, not the Go struct names.
package handlers

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// Report validation failures under the wire name of the field.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// validationDetails flattens a binding error into {field: [issues]}.
// Non-validator errors (malformed JSON, wrong types) produce a nil map;
// the caller falls back to a plain 400 message.
func validationDetails(err error) map[string][]string {
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	details := make(map[string][]string, len(vErrs))
	for _, fe := range vErrs {
		details[fe.Field()] = append(details[fe.Field()], fieldIssue(fe))
	}
	return details
}

// fieldIssue renders one validation failure as a short client-facing string.
func fieldIssue(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
