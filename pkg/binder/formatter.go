package binder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
)

const (
	absPathTag  = "abspath"
	isbnTag     = "isbn"
	maxTag      = "max"
	minTag      = "min"
	oneofTag    = "oneof"
	requiredTag = "required"
	templateTag = "template"
	urlTag      = "url"
)

// describeType names a Go type the way a JSON client would think of it.
func describeType(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array of " + describeType(t.Elem()) + "s"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return t.String()
	}
}

func formatUnmarshalTypeError(err *json.UnmarshalTypeError) string {
	field := strings.Trim(err.Field, ".")
	if field == "" {
		return fmt.Sprintf("request body should be of type %s", describeType(err.Type))
	}
	return fmt.Sprintf("%q should be of type %s", field, describeType(err.Type))
}

func formatSchemaConversionError(err schema.ConversionError) string {
	return fmt.Sprintf("%q should be of type %s", err.Key, describeType(err.Type))
}

// isNumeric reports whether min and max compare the value itself rather than
// its length.
func isNumeric(k reflect.Kind) bool {
	//exhaustive:ignore
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func formatBound(err validator.FieldError, comparison string) string {
	field := err.Field()
	if isNumeric(err.Kind()) {
		return fmt.Sprintf("%q must be %s %s", field, comparison, err.Param())
	}
	unit := "character"
	if err.Kind() == reflect.Slice {
		unit = "element"
	}
	if err.Param() != "1" {
		unit += "s"
	}
	return fmt.Sprintf("%q length must be %s %s %s", field, comparison, err.Param(), unit)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case absPathTag:
		return fmt.Sprintf("%q must be an absolute path", field)
	case isbnTag:
		return fmt.Sprintf("%q is not a valid ISBN-10 or ISBN-13", field)
	case templateTag:
		return fmt.Sprintf("%q is not a valid path template; use tokens like {Author}/{Title}.{ext} relative to the library root", field)
	case urlTag:
		return fmt.Sprintf("%q is not a valid http or https URL", field)
	case maxTag:
		return formatBound(err, "less than or equal to")
	case minTag:
		return formatBound(err, "greater than or equal to")
	case oneofTag:
		valids := []string{}
		for _, p := range strings.Fields(err.Param()) {
			valids = append(valids, fmt.Sprintf("%q", p))
		}
		return fmt.Sprintf("%q must be one of the following: %s", field, strings.Join(valids, ", "))
	case requiredTag:
		return fmt.Sprintf("%q is required", field)
	default:
		if err.Param() != "" {
			return fmt.Sprintf("%q failed the %s=%s check", field, err.Tag(), err.Param())
		}
		return fmt.Sprintf("%q failed the %s check", field, err.Tag())
	}
}
