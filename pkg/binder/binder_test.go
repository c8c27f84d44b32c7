package binder

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type params struct {
	Hello string `json:"hello" mod:"trim" validate:"max=9"`
	Omit  string `json:"-"`
}

var (
	goodJSON             = `{"hello":" world "}`
	unknownFieldsErrJSON = `{"hello":"world","foo":"bar"}`
	typeErrJSON          = `{"hello":123}`
	validationErrJSON    = `{"hello":"0123456789"}`
)

func TestNew(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)
	assert.NotNil(t, b)

	t.Run("only allows application/json bodies", func(tt *testing.T) {
		c := newContext(goodJSON, echo.MIMEApplicationXML)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "Unsupported Media Type")

		c = newContext("hello=world", echo.MIMEApplicationForm)
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "Unsupported Media Type")
	})

	t.Run("disallows unknown fields", func(tt *testing.T) {
		c := newContext(unknownFieldsErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `Unknown Parameter "foo"`)
	})

	t.Run("returns a good message for type errors", func(tt *testing.T) {
		c := newContext(typeErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `"hello" should be of type string`)
	})

	t.Run("use mod tag to modify params", func(tt *testing.T) {
		c := newContext(goodJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		require.NoError(tt, err)
		assert.Equal(tt, "world", p.Hello)
	})

	t.Run("use validate tag to validate params", func(tt *testing.T) {
		c := newContext(validationErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "length must be less than or equal to 9 characters")
	})
}

func TestBind_Query(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	type listParams struct {
		Limit  int     `query:"limit" json:"limit" default:"24" validate:"min=1,max=100"`
		Status *string `query:"status" json:"status,omitempty" validate:"omitempty,oneof=active missing"`
	}

	t.Run("applies defaults", func(tt *testing.T) {
		p := listParams{}
		require.NoError(tt, b.Bind(&p, newQueryContext("/files")))
		assert.Equal(tt, 24, p.Limit)
		assert.Nil(tt, p.Status)
	})

	t.Run("decodes query params", func(tt *testing.T) {
		p := listParams{}
		require.NoError(tt, b.Bind(&p, newQueryContext("/files?limit=5&status=missing")))
		assert.Equal(tt, 5, p.Limit)
		require.NotNil(tt, p.Status)
		assert.Equal(tt, "missing", *p.Status)
	})

	t.Run("reports conversion errors", func(tt *testing.T) {
		p := listParams{}
		err := b.Bind(&p, newQueryContext("/files?limit=many"))
		require.Error(tt, err)
		assert.Contains(tt, err.Error(), `"limit" should be of type integer`)
	})

	t.Run("reports unknown params", func(tt *testing.T) {
		p := listParams{}
		err := b.Bind(&p, newQueryContext("/files?sort=path"))
		require.Error(tt, err)
		assert.Contains(tt, err.Error(), `Unknown Parameter "sort"`)
	})

	t.Run("validates query params", func(tt *testing.T) {
		p := listParams{}
		err := b.Bind(&p, newQueryContext("/files?status=gone"))
		require.Error(tt, err)
		assert.Contains(tt, err.Error(), `"status" must be one of the following: "active", "missing"`)
	})
}

func TestBind_EmptyBody(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	type optionalParams struct {
		Overwrite bool `json:"overwrite"`
	}

	c := newContext("", echo.MIMEApplicationJSON)
	err = b.Bind(&optionalParams{}, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Request body can't be empty")

	c = newContext("", echo.MIMEApplicationJSON)
	c.Set("disallow_empty_body", false)
	require.NoError(t, b.Bind(&optionalParams{}, c))
}

func newQueryContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(echo.GET, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func newContext(payload, mime string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(echo.POST, "/", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, mime)
	rr := httptest.NewRecorder()
	return e.NewContext(req, rr)
}

type enrichParams struct {
	ISBN     string `json:"isbn" validate:"isbn"`
	Template string `json:"template" validate:"template"`
	Path     string `json:"path" validate:"abspath"`
}

func TestBind_DomainValidators(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	t.Run("accepts a valid ISBN and template", func(tt *testing.T) {
		c := newContext(`{"isbn":"978-0-306-40615-7","template":"{Author}/{Title}.{ext}"}`, echo.MIMEApplicationJSON)
		p := enrichParams{}
		require.NoError(tt, b.Bind(&p, c))
	})

	t.Run("rejects a bad ISBN checksum", func(tt *testing.T) {
		c := newContext(`{"isbn":"9780306406158"}`, echo.MIMEApplicationJSON)
		p := enrichParams{}
		err := b.Bind(&p, c)
		require.Error(tt, err)
		assert.Contains(tt, err.Error(), `"isbn" is not a valid ISBN`)
	})

	t.Run("rejects a relative path", func(tt *testing.T) {
		c := newContext(`{"path":"books/dune.epub"}`, echo.MIMEApplicationJSON)
		p := enrichParams{}
		err := b.Bind(&p, c)
		require.Error(tt, err)
		assert.Contains(tt, err.Error(), `"path" must be an absolute path`)
	})

	t.Run("rejects a template escaping the root", func(tt *testing.T) {
		c := newContext(`{"template":"../{Title}.{ext}"}`, echo.MIMEApplicationJSON)
		p := enrichParams{}
		err := b.Bind(&p, c)
		require.Error(tt, err)
		assert.Contains(tt, err.Error(), `"template" is not a valid path template`)
	})
}
