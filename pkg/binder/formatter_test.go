package binder

import (
	"reflect"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/stretchr/testify/assert"
)

type mockFieldError struct {
	tag   string
	field string
	param string
	kind  reflect.Kind
}

func (e *mockFieldError) Error() string           { return "Mock Field Error" }
func (e *mockFieldError) Tag() string             { return e.tag }
func (e *mockFieldError) ActualTag() string       { return e.tag }
func (e *mockFieldError) Namespace() string       { return "" }
func (e *mockFieldError) StructNamespace() string { return "" }
func (e *mockFieldError) Field() string           { return e.field }
func (e *mockFieldError) StructField() string     { return "" }
func (e *mockFieldError) Value() interface{}      { return "" }
func (e *mockFieldError) Param() string           { return e.param }
func (e *mockFieldError) Kind() reflect.Kind {
	if e.kind == 0 {
		return reflect.String
	}
	return e.kind
}
func (e *mockFieldError) Type() reflect.Type               { return reflect.TypeOf("") }
func (e *mockFieldError) Translate(_ ut.Translator) string { return "" }

func TestFormatValidationError(t *testing.T) {
	cases := []struct {
		name  string
		tag   string
		field string
		param string
		kind  reflect.Kind
		msg   string
	}{
		{"string max plural", maxTag, "title", "300", reflect.String, `"title" length must be less than or equal to 300 characters`},
		{"string max singular", maxTag, "initial", "1", reflect.String, `"initial" length must be less than or equal to 1 character`},
		{"string min plural", minTag, "extensions", "2", reflect.String, `"extensions" length must be greater than or equal to 2 characters`},
		{"string min singular", minTag, "title", "1", reflect.String, `"title" length must be greater than or equal to 1 character`},
		{"int max", maxTag, "limit", "100", reflect.Int, `"limit" must be less than or equal to 100`},
		{"int64 max", maxTag, "published_year", "9999", reflect.Int64, `"published_year" must be less than or equal to 9999`},
		{"uint max", maxTag, "workers", "1", reflect.Uint, `"workers" must be less than or equal to 1`},
		{"int min", minTag, "limit", "1", reflect.Int, `"limit" must be greater than or equal to 1`},
		{"float max", maxTag, "confidence", "1", reflect.Float64, `"confidence" must be less than or equal to 1`},
		{"slice max plural", maxTag, "item_ids", "5", reflect.Slice, `"item_ids" length must be less than or equal to 5 elements`},
		{"slice min singular", minTag, "authors", "1", reflect.Slice, `"authors" length must be greater than or equal to 1 element`},
		{"oneof", oneofTag, "mode", "reference copy move", 0, `"mode" must be one of the following: "reference", "copy", "move"`},
		{"required", requiredTag, "root_path", "", 0, `"root_path" is required`},
		{"abspath", absPathTag, "path", "", 0, `"path" must be an absolute path`},
		{"isbn", isbnTag, "isbn", "", 0, `"isbn" is not a valid ISBN-10 or ISBN-13`},
		{"template", templateTag, "template", "", 0, `"template" is not a valid path template; use tokens like {Author}/{Title}.{ext} relative to the library root`},
		{"url", urlTag, "cover_url", "", 0, `"cover_url" is not a valid http or https URL`},
		{"other tag with param", "len", "code", "2", 0, `"code" failed the len=2 check`},
		{"other tag", "uuid", "job_id", "", 0, `"job_id" failed the uuid check`},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			err := mockFieldError{tag: tt.tag, field: tt.field, param: tt.param, kind: tt.kind}
			assert.Equal(t, tt.msg, formatValidationError(&err))
		})
	}
}

func TestDescribeType(t *testing.T) {
	cases := []struct {
		value interface{}
		want  string
	}{
		{"", "string"},
		{true, "boolean"},
		{0, "integer"},
		{uint8(0), "integer"},
		{0.5, "number"},
		{[]string{}, "array of strings"},
		{[]int{}, "array of integers"},
		{map[string]int{}, "object"},
		{struct{}{}, "object"},
	}
	for _, tt := range cases {
		assert.Equal(t, tt.want, describeType(reflect.TypeOf(tt.value)))
	}

	year := 1965
	assert.Equal(t, "integer", describeType(reflect.TypeOf(&year)))
	assert.Equal(t, "value", describeType(nil))
}
