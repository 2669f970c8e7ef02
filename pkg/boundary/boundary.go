// Package boundary defines Quarry's external wire contract: the
// request/response types a caller exchanges with the run-trigger and chat
// endpoints, validated with go-playground/validator/v10, plus the typed
// SSE event union a chat stream emits, encoded with Tangerg/lynx/sse.
//
// Its file layout (trigger.go, chat.go, stream.go) follows a
// handler-per-resource shape, but this package stops at the types and
// their validation/encoding — the HTTP routing and service wiring live
// in cmd/quarry.
package boundary

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance; go-playground/validator/v10
// recommends caching one instance per struct type it parses, not
// constructing one per call.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("connector_name", validateConnectorName); err != nil {
		panic(fmt.Sprintf("boundary: register connector_name validator: %v", err))
	}
	return v
}

// validateConnectorName is a small, purpose-built check rather than a
// generic regex library dependency.
func validateConnectorName(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// FieldError is one field's validation failure, rendered for the client.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field failure from one Validate call, so
// a caller sees every broken field at once rather than one at a time;
// JSON-serializable for an API response rather than a startup log line.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// translate converts validator.ValidationErrors into the wire-facing
// ValidationError, one FieldError per failing tag.
func translate(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationError{Errors: []FieldError{{Field: "", Message: err.Error()}}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Namespace(), Message: fieldMessage(fe)})
	}
	return &ValidationError{Errors: out}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "connector_name":
		return "must contain only letters, digits, underscores, and hyphens"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
