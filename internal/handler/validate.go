package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidate()

// errTrailingData rejects bodies holding more than one JSON value
var errTrailingData = errors.New("unexpected data after JSON body")

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RequestValidator adapts go-playground/validator to echo.Validator
type RequestValidator struct{}

// Validate implements echo.Validator
func (RequestValidator) Validate(i interface{}) error {
	return validate.Struct(i)
}

// bindAndValidate binds the request body into req and checks its validate
// tags. JSON bodies carrying fields req does not declare are rejected. On
// failure the problem response has already been written and the returned
// error is the result of writing it.
func bindAndValidate(c echo.Context, req interface{}) (bool, error) {
	if err := bindBody(c, req); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, errTrailingData) {
			return false, NewValidationError(c, "Malformed JSON", nil)
		}
		return false, NewValidationError(c, "Invalid request body", nil)
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return false, NewValidationError(c, "Invalid request body", nil)
		}
		fields := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, ValidationError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return false, NewValidationError(c, "Validation failed", fields)
	}
	return true, nil
}

func bindBody(c echo.Context, req interface{}) error {
	r := c.Request()
	if !strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return c.Bind(req)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Field is required"
	case "email":
		return "Must be a valid email address"
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("Must be a date in %s format", fe.Param())
	case "uuid":
		return "Must be a valid UUID"
	case "numeric":
		return "Must be a number"
	case "excluded_with":
		return fmt.Sprintf("Cannot be combined with %s", fe.Param())
	}
	return fmt.Sprintf("Failed %s validation", fe.Tag())
}
